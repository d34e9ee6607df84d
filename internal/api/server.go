// Package api exposes the briefing runs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/IshaanNene/rallybrief/internal/dashboard"
	"github.com/IshaanNene/rallybrief/internal/media"
	"github.com/IshaanNene/rallybrief/internal/observability"
	"github.com/IshaanNene/rallybrief/internal/pipeline"
	"github.com/IshaanNene/rallybrief/internal/types"
)

// maxRuns bounds the run history kept in memory.
const maxRuns = 50

// NewsRunner performs a news run.
type NewsRunner interface {
	Run(ctx context.Context) (*pipeline.NewsReport, error)
	Path() string
}

// BriefingRunner performs a briefing run.
type BriefingRunner interface {
	Run(ctx context.Context, opts pipeline.RunOptions) (*pipeline.BriefingReport, error)
}

// Services are the operations the API exposes. Nil members answer 503.
type Services struct {
	News     NewsRunner
	Texts    pipeline.TextLoader
	Bulletin pipeline.BulletinFetcher
	Briefing BriefingRunner
	Metrics  *observability.Metrics

	// MetricsPath is where the Prometheus handler is mounted; empty disables it.
	MetricsPath string

	// UploadDir and UploadName locate the PDF written by uploads.
	UploadDir     string
	UploadName    string
	MaxUploadSize int64

	Version string
	Now     func() time.Time
}

// Server provides a REST API for triggering and inspecting runs.
type Server struct {
	mux    *http.ServeMux
	port   int
	svc    Services
	logger *slog.Logger

	srvMu sync.Mutex
	srv   *http.Server

	// Run tracking
	runs   map[string]*Run
	order  []string
	runsMu sync.RWMutex
}

// Run tracks a briefing run started through the API.
type Run struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Report     any       `json:"report"`
	Error      string    `json:"error,omitempty"`
}

type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Result any    `json:"result,omitempty"`
}

// NewServer creates a new API server.
func NewServer(port int, svc Services, logger *slog.Logger) *Server {
	if svc.Now == nil {
		svc.Now = time.Now
	}
	if svc.Version == "" {
		svc.Version = "dev"
	}
	s := &Server{
		mux:    http.NewServeMux(),
		port:   port,
		svc:    svc,
		logger: logger.With("component", "api_server"),
		runs:   make(map[string]*Run),
	}

	s.registerRoutes()
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Start starts the API server in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.srvMu.Lock()
	s.srv = srv
	s.srvMu.Unlock()

	s.logger.Info("API server starting", "addr", addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.srv
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("GET /{$}", dashboard.New(s.svc.Version, s.logger))

	// Health
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// News
	s.mux.HandleFunc("POST /api/news", s.handleRunNews)
	s.mux.HandleFunc("GET /api/news", s.handleGetNews)

	// Bulletin PDF
	s.mux.HandleFunc("POST /api/pdf/fetch", s.handleFetchPDF)
	s.mux.HandleFunc("POST /api/pdf/upload", s.handleUploadPDF)

	// Analysis
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("POST /api/auto", s.handleAuto)

	// Runs
	s.mux.HandleFunc("GET /api/runs", s.handleListRuns)
	s.mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)

	if s.svc.MetricsPath != "" && s.svc.Metrics != nil {
		s.mux.Handle("GET "+s.svc.MetricsPath, s.svc.Metrics.Handler())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.svc.Version,
		"time":    s.svc.Now().Format(time.RFC3339),
		"metrics": s.svc.Metrics.Snapshot(),
	})
}

func (s *Server) handleRunNews(w http.ResponseWriter, r *http.Request) {
	if s.svc.News == nil {
		s.unavailable(w, "news")
		return
	}
	start := s.svc.Now()
	report, err := s.svc.News.Run(r.Context())
	if report != nil {
		s.track(report.RunID, "news", start, report, err)
	}
	if err != nil {
		s.errorResponse(w, err, report)
		return
	}
	s.jsonResponse(w, http.StatusOK, response{
		Status:  "success",
		Message: fmt.Sprintf("saved %d line(s)", len(report.Lines)),
		Result:  report,
	})
}

func (s *Server) handleGetNews(w http.ResponseWriter, r *http.Request) {
	if s.svc.News == nil || s.svc.Texts == nil {
		s.unavailable(w, "news")
		return
	}
	text, err := s.svc.Texts.Load(s.svc.News.Path())
	if err != nil {
		s.errorResponse(w, err, nil)
		return
	}
	s.jsonResponse(w, http.StatusOK, response{
		Status:  "success",
		Message: "news file",
		Result:  map[string]string{"path": s.svc.News.Path(), "content": text},
	})
}

func (s *Server) handleFetchPDF(w http.ResponseWriter, r *http.Request) {
	if s.svc.Bulletin == nil {
		s.unavailable(w, "bulletin")
		return
	}
	res, err := s.svc.Bulletin.FetchToday(r.Context(), s.svc.Now())
	if err != nil {
		s.svc.Metrics.Downloaded(0, err)
		s.errorResponse(w, err, nil)
		return
	}
	s.svc.Metrics.Downloaded(res.Download.Size, nil)
	s.jsonResponse(w, http.StatusOK, response{
		Status:  "success",
		Message: "PDF downloaded",
		Result:  res,
	})
}

func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	if s.svc.UploadDir == "" || s.svc.UploadName == "" {
		s.unavailable(w, "upload")
		return
	}
	if s.svc.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.svc.MaxUploadSize+1<<20)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			s.errorResponse(w, err, nil)
			return
		}
		s.jsonResponse(w, http.StatusBadRequest, errorResponse{Error: "missing multipart field \"file\""})
		return
	}
	defer file.Close()

	path, err := media.SaveUpload(file, header.Filename, s.svc.UploadDir, s.svc.UploadName, s.svc.MaxUploadSize)
	if err != nil {
		s.errorResponse(w, err, nil)
		return
	}
	s.logger.Info("pdf uploaded", "filename", header.Filename, "path", path)
	s.jsonResponse(w, http.StatusOK, response{
		Status:  "success",
		Message: "PDF uploaded",
		Result:  map[string]string{"path": path},
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	s.runBriefing(w, r, "analyze", pipeline.RunOptions{SkipNews: true, SkipDownload: true}, false)
}

func (s *Server) handleAuto(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.RunOptions
	if err := decodeOptional(r.Body, &opts); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}
	s.runBriefing(w, r, "auto", opts, true)
}

// runBriefing runs the briefing pipeline. Unless download is allowed, a
// missing PDF is answered with 404 before anything runs.
func (s *Server) runBriefing(w http.ResponseWriter, r *http.Request, kind string, opts pipeline.RunOptions, download bool) {
	if s.svc.Briefing == nil {
		s.unavailable(w, kind)
		return
	}
	if !download {
		if s.svc.Bulletin == nil {
			s.unavailable(w, kind)
			return
		}
		if ok, _ := media.IsPDF(s.svc.Bulletin.PDFPath()); !ok {
			s.jsonResponse(w, http.StatusNotFound, errorResponse{Error: "no PDF available; fetch or upload one first"})
			return
		}
	}

	start := s.svc.Now()
	report, err := s.svc.Briefing.Run(r.Context(), opts)
	if report != nil {
		s.track(report.RunID, kind, start, report, err)
	}
	if err != nil {
		s.errorResponse(w, err, report)
		return
	}

	msg := "analysis complete"
	if report.Forwarded {
		msg = "analysis complete and forwarded"
	}
	s.jsonResponse(w, http.StatusOK, response{Status: "success", Message: msg, Result: report})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.runsMu.RLock()
	defer s.runsMu.RUnlock()

	runs := make([]*Run, 0, len(s.runs))
	for _, id := range s.order {
		runs = append(runs, s.runs[id])
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	s.jsonResponse(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.runsMu.RLock()
	run, ok := s.runs[id]
	s.runsMu.RUnlock()

	if !ok {
		s.jsonResponse(w, http.StatusNotFound, errorResponse{Error: "run not found"})
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

func (s *Server) track(id, kind string, start time.Time, report any, err error) {
	if id == "" {
		return
	}
	run := &Run{
		ID:         id,
		Kind:       kind,
		Status:     "success",
		StartedAt:  start,
		FinishedAt: s.svc.Now(),
		Report:     report,
	}
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
	}

	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	if _, exists := s.runs[id]; !exists {
		s.order = append(s.order, id)
	}
	s.runs[id] = run
	for len(s.order) > maxRuns {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Server) unavailable(w http.ResponseWriter, what string) {
	s.jsonResponse(w, http.StatusServiceUnavailable, errorResponse{Error: what + " not configured"})
}

func (s *Server) errorResponse(w http.ResponseWriter, err error, result any) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.jsonResponse(w, status, errorResponse{Error: err.Error(), Result: result})
}

func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, media.ErrNotPDF):
		return http.StatusBadRequest
	case errors.Is(err, media.ErrTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrNoPDF):
		return http.StatusNotFound
	case errors.Is(err, types.ErrNotConfigured), types.IsAcquireError(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, types.ErrEmptyResult), errors.Is(err, types.ErrNoJSON):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, types.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decodeOptional decodes a JSON body into v; an empty body leaves v unchanged.
func decodeOptional(body io.Reader, v any) error {
	err := json.NewDecoder(body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
