package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout       = errors.New("wait timed out")
	ErrNotFound      = errors.New("no matching result")
	ErrEmptyResult   = errors.New("empty result")
	ErrEmptyResponse = errors.New("empty response body")
	ErrInvalidURL    = errors.New("invalid URL")
	ErrNoPDF         = errors.New("no PDF attachment found")
	ErrNoJSON        = errors.New("no JSON object in model reply")
	ErrNotConfigured = errors.New("not configured")
)

// AcquireError reports a browser process that could not be started or connected.
// It is the only failure that crosses component boundaries as an error.
type AcquireError struct {
	Stage string
	Err   error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquire browser (%s): %v", e.Stage, e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// FetchError wraps errors that occur during HTTP fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// StorageError wraps errors that occur while persisting output.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// StageError wraps the error that stopped a pipeline stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsAcquireError reports whether err was caused by a failed browser launch.
func IsAcquireError(err error) bool {
	var ae *AcquireError
	return errors.As(err, &ae)
}
