package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/rallybrief/internal/types"
)

// MediaType classifies the type of media.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaDocument MediaType = "document"
	MediaHTML     MediaType = "html"
	MediaOther    MediaType = "other"
)

// DownloadResult tracks a downloaded file.
type DownloadResult struct {
	URL         string        `json:"url"`
	LocalPath   string        `json:"local_path"`
	Filename    string        `json:"filename"`
	Size        int64         `json:"size"`
	ContentType string        `json:"content_type"`
	MediaType   MediaType     `json:"media_type"`
	Hash        string        `json:"hash"`
	Duration    time.Duration `json:"duration"`
}

// Downloader streams remote files to disk.
type Downloader struct {
	client     *http.Client
	maxSize    int64
	downloaded atomic.Int64
	logger     *slog.Logger
}

// NewDownloader creates a downloader. A nil client gets a 60s default.
func NewDownloader(client *http.Client, maxSizeMB int64, logger *slog.Logger) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Downloader{
		client:  client,
		maxSize: maxSizeMB * 1024 * 1024,
		logger:  logger.With("component", "media_downloader"),
	}
}

// Validator inspects a completed download before it replaces the target.
// path is the temporary file holding the body.
type Validator func(path, contentType string) error

// DownloadTo fetches rawURL into localPath, replacing any existing file.
// The body is hashed while written to a temporary file that is renamed into
// place only after a complete, non-empty download that passes every validator.
// On failure the existing file is left untouched.
func (d *Downloader) DownloadTo(ctx context.Context, rawURL, localPath string, headers http.Header, validators ...Validator) (*DownloadResult, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &types.FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
			Retryable:  resp.StatusCode >= 500,
		}
	}

	if d.maxSize > 0 && resp.ContentLength > d.maxSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, resp.ContentLength, d.maxSize)
	}

	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(localPath)+".part-*")
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	hasher := sha256.New()
	writer := io.MultiWriter(tmp, hasher)

	var reader io.Reader = resp.Body
	if d.maxSize > 0 {
		// one extra byte detects bodies over the limit without Content-Length
		reader = io.LimitReader(resp.Body, d.maxSize+1)
	}

	size, err := io.Copy(writer, reader)
	closeErr := tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close file: %w", closeErr)
	}
	if d.maxSize > 0 && size > d.maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, d.maxSize)
	}
	if size == 0 {
		return nil, fmt.Errorf("download %s: %w", rawURL, types.ErrEmptyResponse)
	}

	contentType := resp.Header.Get("Content-Type")
	for _, validate := range validators {
		if err := validate(tmpName, contentType); err != nil {
			return nil, fmt.Errorf("download %s: %w", rawURL, err)
		}
	}

	if err := os.Rename(tmpName, localPath); err != nil {
		return nil, fmt.Errorf("move download into place: %w", err)
	}

	hash := hex.EncodeToString(hasher.Sum(nil))
	d.downloaded.Add(1)

	result := &DownloadResult{
		URL:         rawURL,
		LocalPath:   localPath,
		Filename:    filepath.Base(localPath),
		Size:        size,
		ContentType: contentType,
		MediaType:   classifyMedia(contentType),
		Hash:        hash,
		Duration:    time.Since(start),
	}

	d.logger.Info("file downloaded",
		"url", rawURL,
		"path", localPath,
		"size", humanSize(size),
		"type", result.MediaType,
		"hash", hash[:16],
		"duration", result.Duration,
	)

	return result, nil
}

// Downloaded returns the number of completed downloads.
func (d *Downloader) Downloaded() int64 {
	return d.downloaded.Load()
}

// --- Helpers ---

func classifyMedia(contentType string) MediaType {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MediaImage
	case strings.HasPrefix(ct, "text/html"):
		return MediaHTML
	case strings.HasPrefix(ct, "application/pdf"),
		strings.HasPrefix(ct, "application/octet-stream"),
		strings.HasPrefix(ct, "application/msword"),
		strings.HasPrefix(ct, "application/vnd."):
		return MediaDocument
	default:
		return MediaOther
	}
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
