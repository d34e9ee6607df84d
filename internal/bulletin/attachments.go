package bulletin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"

	"github.com/IshaanNene/rallybrief/internal/config"
	"github.com/IshaanNene/rallybrief/internal/fetcher"
	"github.com/IshaanNene/rallybrief/internal/media"
	"github.com/IshaanNene/rallybrief/internal/types"
)

var attachRe = regexp.MustCompile(`attachfileDownload\('([^']+)',\s*'([^']+)'\)`)

// postFetchRetries bounds extra attempts at the post page after a
// retryable failure.
const postFetchRetries = 2

// Attachments finds and downloads the PDF attached to a post.
type Attachments struct {
	fetcher    fetcher.Fetcher
	downloader *media.Downloader
	cfg        *config.BulletinConfig
	newBackOff func() backoff.BackOff
	logger     *slog.Logger
}

func defaultPostBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// NewAttachments creates an Attachments helper.
func NewAttachments(f fetcher.Fetcher, d *media.Downloader, cfg *config.BulletinConfig, logger *slog.Logger) *Attachments {
	return &Attachments{
		fetcher:    f,
		downloader: d,
		cfg:        cfg,
		newBackOff: defaultPostBackOff,
		logger:     logger.With("component", "bulletin_attachments"),
	}
}

// PDFPath is where the downloaded notice is stored.
func (a *Attachments) PDFPath() string {
	return filepath.Join(a.cfg.PDFDir, a.cfg.PDFName)
}

// FindPDF returns the download URL of the first PDF attachment on postURL.
func (a *Attachments) FindPDF(ctx context.Context, postURL string) (string, error) {
	req, err := types.NewRequest(postURL)
	if err != nil {
		return "", err
	}
	req.WithReferer(a.cfg.BoardURL)

	resp, err := a.fetchPost(ctx, req)
	if err != nil {
		return "", err
	}

	doc, err := resp.Document()
	if err != nil {
		return "", fmt.Errorf("parse post: %w", err)
	}

	attachNo, ok := FindAttachment(doc, a.cfg.AttachSelector)
	if !ok {
		return "", fmt.Errorf("%w on %s", types.ErrNoPDF, postURL)
	}

	u, err := url.Parse(a.cfg.DownloadURL)
	if err != nil {
		return "", fmt.Errorf("download url: %w", err)
	}
	q := u.Query()
	q.Set("attachNo", attachNo)
	u.RawQuery = q.Encode()

	a.logger.Info("pdf attachment found", "post", postURL, "attach_no", attachNo)
	return u.String(), nil
}

// fetchPost fetches the post page, retrying failures that fetcher.IsRetryable
// accepts.
func (a *Attachments) fetchPost(ctx context.Context, req *types.Request) (*types.Response, error) {
	var resp *types.Response
	op := func() error {
		r, err := a.fetcher.Fetch(ctx, req)
		if err == nil && !r.IsSuccess() {
			err = &types.FetchError{
				URL:        req.URLString(),
				StatusCode: r.StatusCode,
				Err:        fmt.Errorf("post page not available"),
				Retryable:  r.StatusCode >= 500,
			}
		}
		if err != nil {
			if !fetcher.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(a.newBackOff(), postFetchRetries), ctx)
	notify := func(err error, wait time.Duration) {
		a.logger.Warn("post page fetch failed, retrying", "url", req.URLString(), "error", err, "wait", wait)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return resp, nil
}

// FindAttachment returns the attachment number of the first link under
// selector whose text names a .pdf file and whose onclick calls
// attachfileDownload.
func FindAttachment(doc *goquery.Document, selector string) (string, bool) {
	var attachNo string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(s.Text()), ".pdf") {
			return true
		}
		onclick, _ := s.Attr("onclick")
		m := attachRe.FindStringSubmatch(onclick)
		if m == nil {
			return true
		}
		attachNo = m[2]
		return false
	})
	return attachNo, attachNo != ""
}

// Download fetches pdfURL into the configured PDF path.
func (a *Attachments) Download(ctx context.Context, pdfURL, referer string) (*media.DownloadResult, error) {
	headers := http.Header{}
	headers.Set("Accept", "application/pdf")
	if referer != "" {
		headers.Set("Referer", referer)
	}

	return a.downloader.DownloadTo(ctx, pdfURL, a.PDFPath(), headers, media.RequirePDF)
}
