// Package fetchertest provides an in-memory browser for tests.
package fetchertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/rallybrief/internal/fetcher"
	"github.com/IshaanNene/rallybrief/internal/types"
)

// Provider is a fetcher.SessionProvider serving canned HTML by URL prefix.
type Provider struct {
	mu         sync.Mutex
	pages      map[string]string
	clicks     map[string]string
	timeouts   map[string]bool
	acquireErr error
	sessions   []*Session
	visited    []string
}

// NewProvider returns an empty Provider. Unknown URLs render an empty document.
func NewProvider() *Provider {
	return &Provider{
		pages:    make(map[string]string),
		clicks:   make(map[string]string),
		timeouts: make(map[string]bool),
	}
}

// SetPage serves html for every URL starting with prefix. The longest
// matching prefix wins.
func (p *Provider) SetPage(prefix, html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages[prefix] = html
}

// SetClickTarget makes ClickText on an element containing text navigate to url.
func (p *Provider) SetClickTarget(text, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks[text] = url
}

// TimeoutOn makes every WaitElement for selector time out.
func (p *Provider) TimeoutOn(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeouts[selector] = true
}

// FailAcquire makes every Acquire fail with a launch error.
func (p *Provider) FailAcquire(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquireErr = err
}

// Acquire implements fetcher.SessionProvider.
func (p *Provider) Acquire(ctx context.Context) (fetcher.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, &types.AcquireError{Stage: "launch", Err: err}
	}
	if p.acquireErr != nil {
		return nil, &types.AcquireError{Stage: "launch", Err: p.acquireErr}
	}
	s := &Session{provider: p}
	p.sessions = append(p.sessions, s)
	return s, nil
}

// Sessions returns every session handed out so far.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// Acquired returns the number of successful Acquire calls.
func (p *Provider) Acquired() int {
	return len(p.Sessions())
}

// Released returns the number of sessions released at least once.
func (p *Provider) Released() int {
	n := 0
	for _, s := range p.Sessions() {
		if s.ReleaseCount() > 0 {
			n++
		}
	}
	return n
}

// Visited returns every URL navigated to, in order.
func (p *Provider) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.visited))
	copy(out, p.visited)
	return out
}

func (p *Provider) lookup(url string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	best, html := -1, "<html><body></body></html>"
	for prefix, page := range p.pages {
		if strings.HasPrefix(url, prefix) && len(prefix) > best {
			best, html = len(prefix), page
		}
	}
	return html
}

// Session is a fake fetcher.Session.
type Session struct {
	provider *Provider

	mu       sync.Mutex
	url      string
	html     string
	released int
}

// Navigate implements fetcher.Session.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.provider.mu.Lock()
	s.provider.visited = append(s.provider.visited, url)
	s.provider.mu.Unlock()

	html := s.provider.lookup(url)
	s.mu.Lock()
	s.url, s.html = url, html
	s.mu.Unlock()
	return nil
}

// WaitElement implements fetcher.Session. Absent selectors time out at once.
func (s *Session) WaitElement(ctx context.Context, selector string, timeout time.Duration) error {
	s.provider.mu.Lock()
	forced := s.provider.timeouts[selector]
	s.provider.mu.Unlock()
	if forced {
		return fmt.Errorf("%w: %s after %s", types.ErrTimeout, selector, timeout)
	}

	doc, err := s.document()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s after %s", types.ErrTimeout, selector, timeout)
	}
	return nil
}

// HTML implements fetcher.Session.
func (s *Session) HTML(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.html, nil
}

// ClickText implements fetcher.Session.
func (s *Session) ClickText(ctx context.Context, selector, text string) error {
	doc, err := s.document()
	if err != nil {
		return err
	}
	var found bool
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		found = strings.Contains(sel.Text(), text)
		return !found
	})
	if !found {
		return fmt.Errorf("%w: no %q containing %q", types.ErrTimeout, selector, text)
	}

	s.provider.mu.Lock()
	target, ok := s.provider.clicks[text]
	s.provider.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Navigate(ctx, target)
}

// URL implements fetcher.Session.
func (s *Session) URL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, nil
}

// Release implements fetcher.Session. Every call is counted.
func (s *Session) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
	return nil
}

// ReleaseCount returns how many times Release was called.
func (s *Session) ReleaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *Session) document() (*goquery.Document, error) {
	s.mu.Lock()
	html := s.html
	s.mu.Unlock()
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}
