// Package pipeline sequences the crawl, download, analysis and delivery
// steps of a briefing run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/rallybrief/internal/monitor"
	"github.com/IshaanNene/rallybrief/internal/observability"
	"github.com/IshaanNene/rallybrief/internal/types"
)

// Resolver finds today's article URL.
type Resolver interface {
	Find(ctx context.Context) (types.Resolution, error)
}

// Extractor pulls the marker lines out of an article.
type Extractor interface {
	Extract(ctx context.Context, url string) (types.ExtractionResult, error)
}

// Sink persists the extracted lines.
type Sink interface {
	Save(path string, lines []string) error
}

// ChangeDetector reports lines that differ from the previous run.
type ChangeDetector interface {
	Detect(key string, lines []string) ([]monitor.Change, error)
}

// NewsReport describes one news run.
type NewsReport struct {
	RunID      string                   `json:"run_id"`
	State      State                    `json:"state"`
	ArticleURL string                   `json:"article_url,omitempty"`
	Tried      []int                    `json:"tried_offsets,omitempty"`
	Lines      []string                 `json:"lines,omitempty"`
	Strategy   string                   `json:"strategy,omitempty"`
	Failure    types.FailureKind        `json:"failure,omitempty"`
	Path       string                   `json:"path"`
	Content    string                   `json:"content,omitempty"`
	Changes    []monitor.Change         `json:"changes,omitempty"`
	Timings    map[string]time.Duration `json:"timings"`
	Error      string                   `json:"error,omitempty"`
	StartedAt  time.Time                `json:"started_at"`
	Duration   time.Duration            `json:"duration"`
}

// Success reports whether the run reached DONE.
func (r *NewsReport) Success() bool { return r.State == StateDone }

// NewsPipeline runs resolve, extract and save in sequence. Each browser step
// acquires and releases its own session before the next begins.
type NewsPipeline struct {
	resolver  Resolver
	extractor Extractor
	sink      Sink
	path      string
	changes   ChangeDetector
	metrics   *observability.Metrics
	logger    *slog.Logger

	state atomic.Int32
}

// NewNewsPipeline creates a NewsPipeline writing to path. metrics may be nil.
func NewNewsPipeline(resolver Resolver, extractor Extractor, sink Sink, path string, metrics *observability.Metrics, logger *slog.Logger) *NewsPipeline {
	return &NewsPipeline{
		resolver:  resolver,
		extractor: extractor,
		sink:      sink,
		path:      path,
		metrics:   metrics,
		logger:    logger.With("component", "news_pipeline"),
	}
}

// SetChangeDetector enables change reporting against the previous run's lines.
func (p *NewsPipeline) SetChangeDetector(d ChangeDetector) { p.changes = d }

// Path returns the output file path.
func (p *NewsPipeline) Path() string { return p.path }

// State returns the state of the most recent run.
func (p *NewsPipeline) State() State { return State(p.state.Load()) }

// Run executes one news run. The error is non-nil exactly when the report's
// state is FAILED.
func (p *NewsPipeline) Run(ctx context.Context) (*NewsReport, error) {
	report := &NewsReport{
		RunID:     uuid.NewString(),
		State:     StateStart,
		Path:      p.path,
		Timings:   make(map[string]time.Duration),
		StartedAt: time.Now(),
	}
	log := p.logger.With("run_id", report.RunID)
	p.transition(report, StateStart)

	err := p.run(ctx, report, log)
	report.Duration = time.Since(report.StartedAt)

	if err != nil {
		p.transition(report, StateFailed)
		report.Error = err.Error()
		log.Error("news run failed", "error", err, "duration", report.Duration)
	} else {
		p.transition(report, StateDone)
		log.Info("news run complete",
			"lines", len(report.Lines),
			"path", p.path,
			"duration", report.Duration,
		)
	}
	p.metrics.RunFinished("news", report.State.String())
	return report, err
}

func (p *NewsPipeline) run(ctx context.Context, report *NewsReport, log *slog.Logger) error {
	// Resolve
	p.transition(report, StateResolving)
	var res types.Resolution
	err := p.stage(report, "resolve", func() error {
		var err error
		res, err = p.resolver.Find(ctx)
		report.Tried = res.Tried
		p.metrics.ResolveTried(len(res.Tried), res.Found())
		if err != nil {
			return err
		}
		if !res.Found() {
			return fmt.Errorf("%w: no article after %d attempt(s)", types.ErrNotFound, len(res.Tried))
		}
		return nil
	})
	if err != nil {
		return err
	}
	report.ArticleURL = res.URL
	log.Info("article found", "url", res.URL, "offset", res.Offset)

	// Extract
	p.transition(report, StateExtracting)
	var result types.ExtractionResult
	err = p.stage(report, "extract", func() error {
		var err error
		result, err = p.extractor.Extract(ctx, res.URL)
		if err != nil {
			return err
		}
		if !result.OK() {
			report.Failure = result.Failure
			return fmt.Errorf("%w: %s", types.ErrEmptyResult, result.Failure)
		}
		return nil
	})
	if err != nil {
		return err
	}
	report.Lines = result.Lines
	report.Strategy = result.Strategy
	p.metrics.Extracted(result.Strategy, len(result.Lines))

	// Save
	p.transition(report, StateSaving)
	err = p.stage(report, "save", func() error {
		return p.sink.Save(p.path, result.Lines)
	})
	if err != nil {
		return err
	}
	report.Content = joinLines(result.Lines)

	if p.changes != nil {
		changes, err := p.changes.Detect(p.path, result.Lines)
		if err != nil {
			log.Warn("change detection failed", "error", err)
		}
		report.Changes = changes
	}
	return nil
}

func (p *NewsPipeline) stage(report *NewsReport, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)

	report.Timings[name] = d
	p.metrics.ObserveStage("news", name, d, err)
	p.logger.Debug("stage finished", "run_id", report.RunID, "stage", name, "duration", d)

	if err != nil {
		var se *types.StageError
		if errors.As(err, &se) {
			return err
		}
		return &types.StageError{Stage: name, Err: err}
	}
	return nil
}

func (p *NewsPipeline) transition(report *NewsReport, s State) {
	report.State = s
	p.state.Store(int32(s))
}

func joinLines(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}
