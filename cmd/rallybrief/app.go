package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/IshaanNene/rallybrief/internal/ai"
	"github.com/IshaanNene/rallybrief/internal/api"
	"github.com/IshaanNene/rallybrief/internal/article"
	"github.com/IshaanNene/rallybrief/internal/bulletin"
	"github.com/IshaanNene/rallybrief/internal/config"
	"github.com/IshaanNene/rallybrief/internal/fetcher"
	"github.com/IshaanNene/rallybrief/internal/forward"
	"github.com/IshaanNene/rallybrief/internal/media"
	"github.com/IshaanNene/rallybrief/internal/monitor"
	"github.com/IshaanNene/rallybrief/internal/observability"
	"github.com/IshaanNene/rallybrief/internal/pipeline"
	"github.com/IshaanNene/rallybrief/internal/search"
	"github.com/IshaanNene/rallybrief/internal/storage"
)

// app holds every component wired from one configuration.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	loc     *time.Location
	metrics *observability.Metrics

	http     *fetcher.HTTPFetcher
	texts    *storage.TextSink
	store    storage.RecordStore
	news     *pipeline.NewsPipeline
	bulletin *bulletin.Service
	briefing *pipeline.BriefingPipeline
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	loc, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		loc:    loc,
		texts:  storage.NewTextSink(logger),
	}
	if cfg.Metrics.Enabled {
		a.metrics = observability.NewMetrics(logger)
	}

	// Browser sessions are launched per step and released before the next.
	browser := fetcher.NewBrowserManager(fetcher.NewBrowserConfig(cfg.Browser), logger)

	a.http, err = fetcher.NewHTTPFetcher(&cfg.Fetcher, logger)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	a.store, err = storage.NewRecordStore(&cfg.Storage, logger)
	if err != nil {
		a.http.Close()
		return nil, fmt.Errorf("create record store: %w", err)
	}

	// News
	resolver := search.NewResolver(browser, &cfg.Search, logger, search.WithLocation(loc))
	extractor := article.NewExtractor(browser, &cfg.Article, logger)
	a.news = pipeline.NewNewsPipeline(resolver, extractor, a.texts, cfg.Storage.NewsPath, a.metrics, logger)
	if cfg.Storage.SnapshotDir != "" {
		a.news.SetChangeDetector(monitor.NewChangeDetector(cfg.Storage.SnapshotDir, logger))
	}

	// Bulletin
	downloader := media.NewDownloader(a.http.Client(), cfg.Bulletin.MaxSizeMB, logger)
	board := bulletin.NewBoard(browser, &cfg.Bulletin, loc, logger)
	attachments := bulletin.NewAttachments(a.http, downloader, &cfg.Bulletin, logger)
	a.bulletin = bulletin.NewService(board, attachments, logger)

	// Analysis and delivery
	llm := ai.NewLLMClient(ai.NewLLMConfig(cfg.AI), logger)
	analyzer := ai.NewAnalyzer(llm, cfg.AI.Model, cfg.AI.PromptDir, cfg.AI.PromptFile, logger)
	forwarder := forward.NewForwarder(&cfg.Forward, logger)

	a.briefing = pipeline.NewBriefingPipeline(pipeline.Deps{
		News:      a.news,
		Bulletin:  a.bulletin,
		Analyzer:  analyzer,
		Texts:     a.texts,
		NewsPath:  cfg.Storage.NewsPath,
		Forwarder: forwarder,
		Store:     a.store,
		Metrics:   a.metrics,
	}, logger, pipeline.WithLocation(loc))

	return a, nil
}

func (a *app) apiServer() *api.Server {
	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	return api.NewServer(a.cfg.Server.Port, api.Services{
		News:          a.news,
		Texts:         a.texts,
		Bulletin:      a.bulletin,
		Briefing:      a.briefing,
		Metrics:       a.metrics,
		MetricsPath:   metricsPath,
		UploadDir:     a.cfg.Bulletin.PDFDir,
		UploadName:    a.cfg.Bulletin.PDFName,
		MaxUploadSize: a.cfg.Bulletin.MaxSizeMB * 1024 * 1024,
		Version:       config.Version,
	}, a.logger)
}

func (a *app) pdfPath() string {
	return filepath.Join(a.cfg.Bulletin.PDFDir, a.cfg.Bulletin.PDFName)
}

func (a *app) close() error {
	return errors.Join(a.store.Close(), a.http.Close())
}
