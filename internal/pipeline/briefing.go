package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/rallybrief/internal/bulletin"
	"github.com/IshaanNene/rallybrief/internal/media"
	"github.com/IshaanNene/rallybrief/internal/observability"
	"github.com/IshaanNene/rallybrief/internal/storage"
	"github.com/IshaanNene/rallybrief/internal/types"
)

// NewsRunner performs a news run.
type NewsRunner interface {
	Run(ctx context.Context) (*NewsReport, error)
}

// BulletinFetcher downloads today's bulletin PDF.
type BulletinFetcher interface {
	FetchToday(ctx context.Context, now time.Time) (*bulletin.Result, error)
	PDFPath() string
}

// Analyzer queries the language model.
type Analyzer interface {
	Analyze(ctx context.Context, pdfText, newsText string) (*types.Analysis, error)
	Model() string
}

// Forwarder delivers the analysis downstream.
type Forwarder interface {
	Enabled() bool
	Send(ctx context.Context, payload json.RawMessage) error
}

// TextLoader reads the saved news file.
type TextLoader interface {
	Load(path string) (string, error)
}

// RunOptions selects which stages of a briefing run do work.
type RunOptions struct {
	// SkipNews reuses the existing news file instead of crawling.
	SkipNews bool `json:"skip_news"`

	// SkipDownload reuses the PDF on disk when one exists.
	SkipDownload bool `json:"skip_download"`

	// SkipForward keeps the analysis local.
	SkipForward bool `json:"skip_forward"`
}

// BriefingReport describes one briefing run. Stages fill it in as they go.
type BriefingReport struct {
	RunID     string           `json:"run_id"`
	Date      string           `json:"date"`
	Options   RunOptions       `json:"options"`
	Stages    []StageResult    `json:"stages"`
	News      *NewsReport      `json:"news,omitempty"`
	Bulletin  *bulletin.Result `json:"bulletin,omitempty"`
	PDFPath   string           `json:"pdf_path,omitempty"`
	PDFHash   string           `json:"pdf_hash,omitempty"`
	Analysis  *types.Analysis  `json:"analysis,omitempty"`
	Forwarded bool             `json:"forwarded"`
	Recorded  bool             `json:"recorded"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Error     string           `json:"error,omitempty"`
}

// Stage returns the result of the named stage.
func (r *BriefingReport) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Deps are the collaborators of a BriefingPipeline.
type Deps struct {
	News      NewsRunner
	Bulletin  BulletinFetcher
	Analyzer  Analyzer
	Texts     TextLoader
	NewsPath  string
	Forwarder Forwarder
	Store     storage.RecordStore
	Metrics   *observability.Metrics
}

// BriefingOption configures a BriefingPipeline.
type BriefingOption func(*BriefingPipeline)

// WithClock overrides the time source.
func WithClock(now func() time.Time) BriefingOption {
	return func(p *BriefingPipeline) { p.now = now }
}

// WithLocation sets the timezone that decides the briefing date.
func WithLocation(loc *time.Location) BriefingOption {
	return func(p *BriefingPipeline) { p.loc = loc }
}

// WithPDFReader replaces the PDF text extractor.
func WithPDFReader(read func(path string) (string, error)) BriefingOption {
	return func(p *BriefingPipeline) { p.readPDF = read }
}

// BriefingPipeline runs news, bulletin, analyze, forward and record stages.
// Runs are serialized.
type BriefingPipeline struct {
	deps    Deps
	chain   *Chain
	now     func() time.Time
	loc     *time.Location
	readPDF func(string) (string, error)
	logger  *slog.Logger

	mu sync.Mutex
}

// NewBriefingPipeline wires the stages.
func NewBriefingPipeline(deps Deps, logger *slog.Logger, opts ...BriefingOption) *BriefingPipeline {
	p := &BriefingPipeline{
		deps:    deps,
		now:     time.Now,
		loc:     time.Local,
		readPDF: media.ExtractPDFText,
		logger:  logger.With("component", "briefing_pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.chain = NewChain("briefing", logger)
	p.chain.Use(Optional(newsStage{p}))
	p.chain.Use(bulletinStage{p})
	p.chain.Use(analyzeStage{p})
	p.chain.Use(forwardStage{p})
	p.chain.Use(Optional(recordStage{p}))
	return p
}

// Run executes one briefing run. A failed required stage is returned as a
// *types.StageError alongside the partial report.
func (p *BriefingPipeline) Run(ctx context.Context, opts RunOptions) (*BriefingReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	report := &BriefingReport{
		RunID:     uuid.NewString(),
		Date:      now.In(p.loc).Format("2006-01-02"),
		Options:   opts,
		StartedAt: now,
	}
	log := p.logger.With("run_id", report.RunID, "date", report.Date)
	log.Info("briefing run started",
		"skip_news", opts.SkipNews,
		"skip_download", opts.SkipDownload,
		"skip_forward", opts.SkipForward,
	)

	err := p.chain.Process(ctx, report, func(stage string, d time.Duration, err error) {
		p.deps.Metrics.ObserveStage("briefing", stage, d, err)
	})
	report.Duration = time.Since(report.StartedAt)

	state := StateDone
	if err != nil {
		state = StateFailed
		report.Error = err.Error()
		log.Error("briefing run failed", "error", err, "duration", report.Duration)
	} else {
		log.Info("briefing run complete",
			"forwarded", report.Forwarded,
			"recorded", report.Recorded,
			"duration", report.Duration,
		)
	}
	p.deps.Metrics.RunFinished("briefing", state.String())
	return report, err
}

type newsStage struct{ p *BriefingPipeline }

func (newsStage) Name() string { return "news" }

func (s newsStage) Run(ctx context.Context, run *BriefingReport) error {
	if run.Options.SkipNews {
		return Skip("reusing saved news file")
	}
	if s.p.deps.News == nil {
		return Skip("news crawl not configured")
	}
	report, err := s.p.deps.News.Run(ctx)
	run.News = report
	return err
}

type bulletinStage struct{ p *BriefingPipeline }

func (bulletinStage) Name() string { return "bulletin" }

func (s bulletinStage) Run(ctx context.Context, run *BriefingReport) error {
	b := s.p.deps.Bulletin
	if b == nil {
		return fmt.Errorf("bulletin: %w", types.ErrNotConfigured)
	}
	path := b.PDFPath()
	if run.Options.SkipDownload && fileExists(path) {
		run.PDFPath = path
		return Skip("using existing PDF")
	}

	res, err := b.FetchToday(ctx, s.p.now())
	if err != nil {
		s.p.deps.Metrics.Downloaded(0, err)
		return err
	}
	s.p.deps.Metrics.Downloaded(res.Download.Size, nil)
	run.Bulletin = res
	run.PDFPath = res.Download.LocalPath
	run.PDFHash = res.Download.Hash
	return nil
}

type analyzeStage struct{ p *BriefingPipeline }

func (analyzeStage) Name() string { return "analyze" }

func (s analyzeStage) Run(ctx context.Context, run *BriefingReport) error {
	if s.p.deps.Analyzer == nil {
		return fmt.Errorf("analyzer: %w", types.ErrNotConfigured)
	}
	if run.PDFPath == "" {
		return fmt.Errorf("%w: no PDF for analysis", types.ErrNoPDF)
	}

	pdfText, err := s.p.readPDF(run.PDFPath)
	if err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}

	newsText := s.p.loadNews()
	start := time.Now()
	analysis, err := s.p.deps.Analyzer.Analyze(ctx, pdfText, newsText)
	s.p.deps.Metrics.LLMCall(s.p.deps.Analyzer.Model(), time.Since(start), err)
	if err != nil {
		return err
	}
	run.Analysis = analysis
	return nil
}

// loadNews returns the saved news text, or "" when none is available.
func (p *BriefingPipeline) loadNews() string {
	if p.deps.Texts == nil || p.deps.NewsPath == "" {
		return ""
	}
	text, err := p.deps.Texts.Load(p.deps.NewsPath)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			p.logger.Warn("read news file", "path", p.deps.NewsPath, "error", err)
		}
		return ""
	}
	return text
}

type forwardStage struct{ p *BriefingPipeline }

func (forwardStage) Name() string { return "forward" }

func (s forwardStage) Run(ctx context.Context, run *BriefingReport) error {
	f := s.p.deps.Forwarder
	if run.Options.SkipForward {
		return Skip("forwarding disabled for this run")
	}
	if f == nil || !f.Enabled() {
		return Skip("no forward target configured")
	}
	err := f.Send(ctx, run.Analysis.JSON)
	s.p.deps.Metrics.Forwarded(err)
	if err != nil {
		return err
	}
	run.Forwarded = true
	return nil
}

type recordStage struct{ p *BriefingPipeline }

func (recordStage) Name() string { return "record" }

func (s recordStage) Run(ctx context.Context, run *BriefingReport) error {
	store := s.p.deps.Store
	if store == nil {
		return Skip("no record store configured")
	}
	if _, nop := store.(storage.NopStore); nop {
		return Skip("no record store configured")
	}
	if err := store.Record(ctx, s.p.briefing(run)); err != nil {
		return err
	}
	run.Recorded = true
	return nil
}

func (p *BriefingPipeline) briefing(run *BriefingReport) *types.Briefing {
	b := &types.Briefing{
		ID:        run.RunID,
		Date:      run.Date,
		PDFPath:   run.PDFPath,
		PDFHash:   run.PDFHash,
		Forwarded: run.Forwarded,
		CreatedAt: p.now().UTC(),
	}
	if run.News != nil {
		b.ArticleURL = run.News.ArticleURL
		b.NewsLines = run.News.Lines
	}
	if run.Bulletin != nil {
		b.PostURL = run.Bulletin.PostURL
	}
	if run.Analysis != nil {
		b.Analysis = run.Analysis.JSON
	}
	return b
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
