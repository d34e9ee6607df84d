package bulletin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/rallybrief/internal/media"
)

// Result describes a completed bulletin fetch.
type Result struct {
	PostURL  string                `json:"post_url"`
	PDFURL   string                `json:"pdf_url"`
	Download *media.DownloadResult `json:"download"`
}

// Service runs the whole bulletin flow: find the post, find the PDF, download it.
type Service struct {
	board       *Board
	attachments *Attachments
	logger      *slog.Logger
}

// NewService creates a Service.
func NewService(board *Board, attachments *Attachments, logger *slog.Logger) *Service {
	return &Service{
		board:       board,
		attachments: attachments,
		logger:      logger.With("component", "bulletin"),
	}
}

// PDFPath is where FetchToday stores the PDF.
func (s *Service) PDFPath() string {
	return s.attachments.PDFPath()
}

// FetchToday downloads the PDF attached to today's post.
func (s *Service) FetchToday(ctx context.Context, now time.Time) (*Result, error) {
	start := time.Now()

	postURL, err := s.board.FindTodayPost(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("find post: %w", err)
	}

	pdfURL, err := s.attachments.FindPDF(ctx, postURL)
	if err != nil {
		return nil, fmt.Errorf("find attachment: %w", err)
	}

	dl, err := s.attachments.Download(ctx, pdfURL, postURL)
	if err != nil {
		return nil, fmt.Errorf("download attachment: %w", err)
	}

	s.logger.Info("bulletin pdf ready",
		"post", postURL,
		"path", dl.LocalPath,
		"duration", time.Since(start),
	)
	return &Result{PostURL: postURL, PDFURL: pdfURL, Download: dl}, nil
}
