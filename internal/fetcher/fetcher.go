package fetcher

import (
	"context"
	"time"

	"github.com/IshaanNene/rallybrief/internal/types"
)

// Fetcher retrieves plain HTTP resources.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error
}

// SessionProvider hands out browser sessions. Every successful Acquire must be
// paired with exactly one Session.Release.
type SessionProvider interface {
	Acquire(ctx context.Context) (Session, error)
}

// Session is a single configured browser page.
type Session interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// WaitElement blocks until selector matches or timeout elapses.
	// A timeout is reported as types.ErrTimeout.
	WaitElement(ctx context.Context, selector string, timeout time.Duration) error

	// HTML returns the current document markup.
	HTML(ctx context.Context) (string, error)

	// ClickText clicks the first element matching selector whose text
	// contains text, and waits for the resulting navigation.
	ClickText(ctx context.Context, selector, text string) error

	// URL returns the current page URL.
	URL(ctx context.Context) (string, error)

	// Release closes the page and the browser process.
	Release() error
}
