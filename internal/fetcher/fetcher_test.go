package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/rallybrief/internal/config"
	"github.com/IshaanNene/rallybrief/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestLaunchFlags(t *testing.T) {
	bc := NewBrowserConfig(config.DefaultConfig().Browser)

	got := make(map[string]string)
	for _, f := range bc.LaunchFlags() {
		got[f.Name] = f.Value
	}

	if got["disable-blink-features"] != "AutomationControlled" {
		t.Errorf("expected automation markers disabled, got %q", got["disable-blink-features"])
	}
	if got["window-size"] != "1920,1080" {
		t.Errorf("expected fixed window size, got %q", got["window-size"])
	}
	if _, ok := got["no-sandbox"]; !ok {
		t.Error("expected no-sandbox flag")
	}
}

func TestBrowserConfigIsolated(t *testing.T) {
	cfg := config.DefaultConfig().Browser
	bc := NewBrowserConfig(cfg)
	cfg.UserAgents[0] = "mutated"
	if bc.UserAgents[0] == "mutated" {
		t.Error("browser config shares the user agent slice with its source")
	}
}

func TestPickUserAgentDeterministic(t *testing.T) {
	bc := &BrowserConfig{UserAgents: []string{"ua-a", "ua-b", "ua-c", "ua-d"}}

	first := make([]string, 10)
	rng := rand.New(rand.NewSource(42))
	for i := range first {
		first[i] = bc.PickUserAgent(rng)
	}

	rng = rand.New(rand.NewSource(42))
	for i := range first {
		if got := bc.PickUserAgent(rng); got != first[i] {
			t.Fatalf("pick %d: expected %q with same seed, got %q", i, first[i], got)
		}
	}

	if (&BrowserConfig{}).PickUserAgent(rng) != "" {
		t.Error("expected empty user agent for empty list")
	}
}

func TestStealthJS(t *testing.T) {
	bc := NewBrowserConfig(config.DefaultConfig().Browser)
	js := bc.StealthJS()
	if !strings.Contains(js, "webdriver") {
		t.Error("expected webdriver override in stealth script")
	}
	if !strings.Contains(js, "'ko-KR'") {
		t.Error("expected configured language in stealth script")
	}
}

func newTestFetcher(t *testing.T) *HTTPFetcher {
	t.Helper()
	cfg := config.DefaultConfig().Fetcher
	f, err := NewHTTPFetcher(&cfg, testLogger)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestHTTPFetchHeaders(t *testing.T) {
	var gotReferer, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		gotLang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><p>ok</p></body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	req, err := types.NewRequest(srv.URL + "/post")
	if err != nil {
		t.Fatal(err)
	}
	req.WithReferer("https://board.example/list")

	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !resp.IsSuccess() {
		t.Errorf("expected success, got %d", resp.StatusCode)
	}
	if gotReferer != "https://board.example/list" {
		t.Errorf("expected referer to be forwarded, got %q", gotReferer)
	}
	if !strings.HasPrefix(gotLang, "ko-KR") {
		t.Errorf("expected Korean accept-language, got %q", gotLang)
	}

	doc, err := resp.Document()
	if err != nil {
		t.Fatal(err)
	}
	if doc.Find("p").Text() != "ok" {
		t.Errorf("unexpected document text %q", doc.Find("p").Text())
	}
}

func TestHTTPFetchDecompress(t *testing.T) {
	const body = "▲ City Hall 10:00"

	tests := []struct {
		encoding string
		encode   func([]byte) []byte
	}{
		{"gzip", func(b []byte) []byte {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			_, _ = zw.Write(b)
			_ = zw.Close()
			return buf.Bytes()
		}},
		{"br", func(b []byte) []byte {
			var buf bytes.Buffer
			bw := brotli.NewWriter(&buf)
			_, _ = bw.Write(b)
			_ = bw.Close()
			return buf.Bytes()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", tt.encoding)
				_, _ = w.Write(tt.encode([]byte(body)))
			}))
			defer srv.Close()

			f := newTestFetcher(t)
			req, _ := types.NewRequest(srv.URL)
			resp, err := f.Fetch(context.Background(), req)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if string(resp.Body) != body {
				t.Errorf("expected %q, got %q", body, resp.Body)
			}
		})
	}
}

func TestHTTPFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	req, _ := types.NewRequest(srv.URL)
	_, err := f.Fetch(context.Background(), req)

	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.StatusCode != http.StatusBadGateway || !fe.Retryable {
		t.Errorf("expected retryable 502, got %d retryable=%v", fe.StatusCode, fe.Retryable)
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable should report true for 5xx")
	}
}

func TestHTTPFetchRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	req, _ := types.NewRequest(srv.URL)
	_, err := f.Fetch(context.Background(), req)

	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.RetryAfter != 7*time.Second {
		t.Errorf("expected 7s retry-after, got %s", fe.RetryAfter)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 5 * time.Second},
		{"3", 3 * time.Second},
		{"600", 120 * time.Second},
		{"garbage", 5 * time.Second},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.header); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %s, want %s", tt.header, got, tt.want)
		}
	}
}

func TestMapTimeout(t *testing.T) {
	err := mapTimeout(context.DeadlineExceeded)
	if !errors.Is(err, types.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	other := errors.New("boom")
	if mapTimeout(other) != other {
		t.Error("non-deadline errors should pass through")
	}
}
