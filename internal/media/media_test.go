package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/IshaanNene/rallybrief/internal/media/mediatest"
	"github.com/IshaanNene/rallybrief/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestDownloadTo(t *testing.T) {
	body := mediatest.MinimalPDF("Protest notice")
	var gotAccept, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotReferer = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	d := NewDownloader(srv.Client(), 10, testLogger)
	path := filepath.Join(t.TempDir(), "pdf", "notice.pdf")
	headers := http.Header{}
	headers.Set("Accept", "application/pdf")
	headers.Set("Referer", "https://board.example/post/1")

	res, err := d.DownloadTo(context.Background(), srv.URL+"/download?attachNo=42", path, headers)
	if err != nil {
		t.Fatalf("download: %v", err)
	}

	sum := sha256.Sum256(body)
	if res.Hash != hex.EncodeToString(sum[:]) {
		t.Errorf("hash mismatch")
	}
	if res.Size != int64(len(body)) || res.MediaType != MediaDocument {
		t.Errorf("unexpected result %+v", res)
	}
	if gotAccept != "application/pdf" || gotReferer != "https://board.example/post/1" {
		t.Errorf("headers not forwarded: accept=%q referer=%q", gotAccept, gotReferer)
	}

	data, _ := os.ReadFile(path)
	if !bytes.Equal(data, body) {
		t.Error("file content differs from response body")
	}
	if d.Downloaded() != 1 {
		t.Errorf("expected 1 download, got %d", d.Downloaded())
	}
}

func TestDownloadToFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		maxMB   int64
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) }, 10},
		{"empty body", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }, 10},
		{"too large", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(bytes.Repeat([]byte("x"), 1024*1024+10))
		}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			dir := t.TempDir()
			path := filepath.Join(dir, "out.pdf")
			if err := os.WriteFile(path, []byte("previous"), 0o644); err != nil {
				t.Fatal(err)
			}

			d := NewDownloader(srv.Client(), tt.maxMB, testLogger)
			if _, err := d.DownloadTo(context.Background(), srv.URL, path, nil); err == nil {
				t.Fatal("expected error")
			}

			data, _ := os.ReadFile(path)
			if string(data) != "previous" {
				t.Errorf("failed download must not replace the file, got %q", data)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 1 {
				t.Errorf("expected temp files cleaned up, got %d entries", len(entries))
			}
		})
	}
}

func TestDownloadToTooLarge(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"content length", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", "2097152")
			_, _ = w.Write(bytes.Repeat([]byte("x"), 2*1024*1024))
		}},
		{"streamed", func(w http.ResponseWriter, r *http.Request) {
			w.(http.Flusher).Flush()
			_, _ = w.Write(bytes.Repeat([]byte("x"), 1024*1024+10))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			d := NewDownloader(srv.Client(), 1, testLogger)
			_, err := d.DownloadTo(context.Background(), srv.URL, filepath.Join(t.TempDir(), "x.pdf"), nil)
			if !errors.Is(err, ErrTooLarge) {
				t.Errorf("expected ErrTooLarge, got %v", err)
			}
		})
	}
}

func TestDownloadToValidatorKeepsExistingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>session expired</html>"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "notice.pdf")
	good := mediatest.MinimalPDF("yesterday")
	if err := os.WriteFile(path, good, 0o644); err != nil {
		t.Fatal(err)
	}

	d := NewDownloader(srv.Client(), 10, testLogger)
	_, err := d.DownloadTo(context.Background(), srv.URL, path, nil, RequirePDF)
	if !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}
	if !strings.Contains(err.Error(), "text/html") {
		t.Errorf("error should name the content type: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !bytes.Equal(data, good) {
		t.Errorf("existing file replaced by %q", data)
	}
	if d.Downloaded() != 0 {
		t.Errorf("rejected download counted: %d", d.Downloaded())
	}
}

func TestRequirePDF(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "a.pdf")
	htmlPath := filepath.Join(dir, "b.pdf")
	_ = os.WriteFile(pdfPath, mediatest.MinimalPDF("x"), 0o644)
	_ = os.WriteFile(htmlPath, []byte("<html></html>"), 0o644)

	if err := RequirePDF(pdfPath, "application/pdf"); err != nil {
		t.Errorf("valid PDF rejected: %v", err)
	}
	if err := RequirePDF(htmlPath, ""); !errors.Is(err, ErrNotPDF) {
		t.Errorf("expected ErrNotPDF, got %v", err)
	}
	if err := RequirePDF(filepath.Join(dir, "missing.pdf"), ""); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestDownloadToStatusIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewDownloader(srv.Client(), 10, testLogger)
	_, err := d.DownloadTo(context.Background(), srv.URL, filepath.Join(t.TempDir(), "x.pdf"), nil)

	var fe *types.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusServiceUnavailable || !fe.Retryable {
		t.Errorf("expected retryable 503 FetchError, got %v", err)
	}
}

func TestExtractPDFText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notice.pdf")
	if err := os.WriteFile(path, mediatest.MinimalPDF("Gwanghwamun 13:00", "Yeouido 15:00"), 0o644); err != nil {
		t.Fatal(err)
	}

	text, err := ExtractPDFText(path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	for _, want := range []string{"Gwanghwamun 13:00", "Yeouido 15:00"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in %q", want, text)
		}
	}
}

func TestExtractPDFTextRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	_ = os.WriteFile(path, []byte("<html>login required</html>"), 0o644)

	if _, err := ExtractPDFText(path); !errors.Is(err, ErrNotPDF) {
		t.Errorf("expected ErrNotPDF, got %v", err)
	}
}

func TestSaveUpload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pdf")
	body := mediatest.MinimalPDF("upload")

	dest, err := SaveUpload(bytes.NewReader(body), "Notice.PDF", dir, "protest-info-pdf.pdf", 1<<20)
	if err != nil {
		t.Fatalf("save upload: %v", err)
	}
	if dest != filepath.Join(dir, "protest-info-pdf.pdf") {
		t.Errorf("unexpected destination %q", dest)
	}

	info, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected 0600, got %o", perm)
	}
}

func TestSaveUploadRejects(t *testing.T) {
	dir := t.TempDir()

	if _, err := SaveUpload(strings.NewReader("%PDF-1.4"), "notes.txt", dir, "x.pdf", 0); !errors.Is(err, ErrNotPDF) {
		t.Errorf("expected extension rejection, got %v", err)
	}
	if _, err := SaveUpload(strings.NewReader("plain text"), "fake.pdf", dir, "x.pdf", 0); !errors.Is(err, ErrNotPDF) {
		t.Errorf("expected header rejection, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "x.pdf")); !os.IsNotExist(err) {
		t.Error("rejected upload must not be stored")
	}
}
