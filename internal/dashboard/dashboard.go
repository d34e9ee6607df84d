// Package dashboard serves a status page for briefing runs.
package dashboard

import (
	"log/slog"
	"net/http"
)

// Dashboard serves the status page. The page polls /api/health for metric
// counters and /api/runs for recent runs.
type Dashboard struct {
	version string
	logger  *slog.Logger
}

// New creates a Dashboard.
func New(version string, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		version: version,
		logger:  logger.With("component", "dashboard"),
	}
}

// ServeHTTP writes the page.
func (d *Dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTemplate.Execute(w, struct{ Version string }{d.version}); err != nil {
		d.logger.Warn("render dashboard", "error", err)
	}
}
