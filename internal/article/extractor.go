// Package article extracts marker lines from a publisher's article page.
package article

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/rallybrief/internal/config"
	"github.com/IshaanNene/rallybrief/internal/fetcher"
	"github.com/IshaanNene/rallybrief/internal/types"
)

// Extractor loads an article in a browser session and extracts its marker lines.
type Extractor struct {
	provider   fetcher.SessionProvider
	cfg        *config.ArticleConfig
	strategies []Strategy
	logger     *slog.Logger
}

// NewExtractor creates an Extractor using the default strategies.
func NewExtractor(provider fetcher.SessionProvider, cfg *config.ArticleConfig, logger *slog.Logger) *Extractor {
	return &Extractor{
		provider:   provider,
		cfg:        cfg,
		strategies: DefaultStrategies(),
		logger:     logger.With("component", "article"),
	}
}

// Extract navigates to url and returns its marker lines. Timeouts, missing
// containers and empty results come back as failed results; only session
// acquisition and cancellation are errors.
func (e *Extractor) Extract(ctx context.Context, url string) (types.ExtractionResult, error) {
	start := time.Now()
	log := e.logger.With("url", url)

	sess, err := e.provider.Acquire(ctx)
	if err != nil {
		return types.Failed(url, types.FailureNavigate), err
	}
	defer func() {
		if err := sess.Release(); err != nil {
			log.Warn("release session", "error", err)
		}
	}()

	if err := sess.Navigate(ctx, url); err != nil {
		if ctx.Err() != nil {
			return types.Failed(url, types.FailureNavigate), ctx.Err()
		}
		log.Warn("article navigation failed", "error", err)
		if errors.Is(err, types.ErrTimeout) {
			return types.Failed(url, types.FailureTimeout), nil
		}
		return types.Failed(url, types.FailureNavigate), nil
	}

	if err := sess.WaitElement(ctx, e.cfg.ContainerSelector, e.cfg.WaitTimeout); err != nil {
		if ctx.Err() != nil {
			return types.Failed(url, types.FailureTimeout), ctx.Err()
		}
		log.Warn("article container not found", "selector", e.cfg.ContainerSelector, "error", err)
		if errors.Is(err, types.ErrTimeout) {
			return types.Failed(url, types.FailureTimeout), nil
		}
		return types.Failed(url, types.FailureStructure), nil
	}

	html, err := sess.HTML(ctx)
	if err != nil {
		log.Warn("read article html", "error", err)
		return types.Failed(url, types.FailureStructure), nil
	}

	result := e.ExtractHTML(url, html)
	log.Info("article extracted",
		"lines", len(result.Lines),
		"strategy", result.Strategy,
		"failure", string(result.Failure),
		"duration", time.Since(start),
	)
	return result, nil
}

// ExtractHTML runs the strategies over an already loaded document.
func (e *Extractor) ExtractHTML(url, html string) types.ExtractionResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return types.Failed(url, types.FailureStructure)
	}

	container := doc.Find(e.cfg.ContainerSelector).First()
	if container.Length() == 0 {
		return types.Failed(url, types.FailureStructure)
	}

	lines, name := Run(container, e.cfg.Marker, e.strategies)
	return types.Extracted(url, name, lines)
}
