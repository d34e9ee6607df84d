// Package forward delivers the analysis JSON to the downstream server.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/IshaanNene/rallybrief/internal/config"
	"github.com/IshaanNene/rallybrief/internal/types"
)

// Forwarder POSTs analysis results to the configured target.
type Forwarder struct {
	target     string
	client     *http.Client
	maxRetries int
	newBackOff func() backoff.BackOff
	logger     *slog.Logger
}

// Option customizes a Forwarder.
type Option func(*Forwarder)

// WithBackOff replaces the exponential backoff used between attempts.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(f *Forwarder) { f.newBackOff = fn }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Forwarder) { f.client = c }
}

// NewForwarder creates a Forwarder for cfg.TargetURL.
func NewForwarder(cfg *config.ForwardConfig, logger *slog.Logger, opts ...Option) *Forwarder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	f := &Forwarder{
		target:     strings.TrimSpace(cfg.TargetURL),
		client:     &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			return b
		},
		logger: logger.With("component", "forwarder"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Enabled reports whether a target URL is configured.
func (f *Forwarder) Enabled() bool { return f.target != "" }

// Target returns the configured target URL.
func (f *Forwarder) Target() string { return f.target }

// Send POSTs payload as application/json. Network errors and 5xx responses
// are retried up to the configured count; 4xx responses are not.
func (f *Forwarder) Send(ctx context.Context, payload json.RawMessage) error {
	if !f.Enabled() {
		return fmt.Errorf("forward target: %w", types.ErrNotConfigured)
	}
	if !json.Valid(payload) {
		return fmt.Errorf("forward payload: %w", types.ErrNoJSON)
	}

	retries := f.maxRetries
	if retries < 0 {
		retries = 0
	}

	attempt := 0
	op := func() error {
		attempt++
		return f.post(ctx, payload)
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Warn("forward failed, retrying",
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(f.newBackOff(), uint64(retries)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return fmt.Errorf("forward to %s after %d attempt(s): %w", f.target, attempt, err)
	}

	f.logger.Info("analysis forwarded", "target", f.target, "bytes", len(payload), "attempts", attempt)
	return nil
}

func (f *Forwarder) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.target, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%w: %v", types.ErrInvalidURL, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return &types.FetchError{URL: f.target, Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	fe := &types.FetchError{
		URL:        f.target,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("%s", strings.TrimSpace(string(msg))),
		Retryable:  resp.StatusCode >= 500,
	}
	if !fe.Retryable {
		return backoff.Permanent(fe)
	}
	return fe
}
