// Package search finds the publisher's schedule article in search results.
package search

import (
	"context"
	"log/slog"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/rallybrief/internal/config"
	"github.com/IshaanNene/rallybrief/internal/fetcher"
	"github.com/IshaanNene/rallybrief/internal/types"
)

// Resolver looks up the article URL for a given day.
type Resolver struct {
	provider fetcher.SessionProvider
	cfg      *config.SearchConfig
	loc      *time.Location
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
	logger   *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the time source used to compute "today".
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLocation sets the timezone that decides the calendar date.
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) { r.loc = loc }
}

// WithRand sets the randomness source for pauses.
func WithRand(rng *rand.Rand) Option {
	return func(r *Resolver) { r.rng = rng }
}

// WithSleep replaces the pause implementation.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(r *Resolver) { r.sleep = sleep }
}

// NewResolver creates a Resolver.
func NewResolver(provider fetcher.SessionProvider, cfg *config.SearchConfig, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		provider: provider,
		cfg:      cfg,
		loc:      time.Local,
		now:      time.Now,
		sleep:    sleepContext,
		logger:   logger.With("component", "search"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r
}

// Resolve searches for the article dated offset days from today.
// Not found is ("", false, nil); only session acquisition and cancellation
// are errors.
func (r *Resolver) Resolve(ctx context.Context, offset int) (string, bool, error) {
	date := r.now().In(r.loc).AddDate(0, 0, offset)
	query := Query(r.cfg.QueryTemplate, r.cfg.DateLayout, date)
	searchURL, err := SearchURL(r.cfg.EngineURL, query)
	if err != nil {
		return "", false, err
	}

	log := r.logger.With("offset", offset, "query", query)

	sess, err := r.provider.Acquire(ctx)
	if err != nil {
		return "", false, err
	}
	defer func() {
		if err := sess.Release(); err != nil {
			log.Warn("release session", "error", err)
		}
	}()

	if err := sess.Navigate(ctx, searchURL); err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		log.Warn("search navigation failed", "error", err)
		return "", false, nil
	}

	if err := r.sleep(ctx, r.pause()); err != nil {
		return "", false, err
	}

	if r.cfg.ReadySelector != "" {
		if err := sess.WaitElement(ctx, r.cfg.ReadySelector, r.cfg.ReadyTimeout); err != nil {
			if ctx.Err() != nil {
				return "", false, ctx.Err()
			}
			log.Info("search results not ready", "selector", r.cfg.ReadySelector, "error", err)
			return "", false, nil
		}
	}

	html, err := sess.HTML(ctx)
	if err != nil {
		log.Warn("read search page", "error", err)
		return "", false, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Warn("parse search page", "error", err)
		return "", false, nil
	}

	base, _ := url.Parse(searchURL)
	link, selector, ok := FindArticle(doc, r.cfg.Selectors, r.cfg.PublisherDomain, base)
	if !ok {
		log.Info("no publisher link in search results")
		return "", false, nil
	}

	log.Info("article resolved", "url", link, "selector", selector)
	return link, true, nil
}

// Find runs Resolve under the configured date-offset retry policy.
func (r *Resolver) Find(ctx context.Context) (types.Resolution, error) {
	r.rngMu.Lock()
	seed := r.rng.Int63()
	r.rngMu.Unlock()

	policy := Policy{
		MaxAttempts: r.cfg.MaxAttempts,
		DelayMin:    r.cfg.RetryDelayMin,
		DelayMax:    r.cfg.RetryDelayMax,
		Rand:        rand.New(rand.NewSource(seed)),
		Notify: func(err error, wait time.Duration) {
			r.logger.Info("no article yet, retrying with an earlier date", "wait", wait)
		},
	}
	return Retry(ctx, policy, r.Resolve)
}

// FindArticle applies selectors in order and returns the first link whose
// host contains domain, along with the selector that matched.
func FindArticle(doc *goquery.Document, selectors []string, domain string, base *url.URL) (string, string, bool) {
	domain = strings.ToLower(domain)
	for _, selector := range selectors {
		var found string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, ok := s.Attr("href")
			if !ok {
				return true
			}
			u := normalizeLink(href, base)
			if u == nil || !strings.Contains(strings.ToLower(u.Hostname()), domain) {
				return true
			}
			found = u.String()
			return false
		})
		if found != "" {
			return found, selector, true
		}
	}
	return "", "", false
}

// normalizeLink resolves href against base and unwraps search engine
// redirect links of the form /url?q=<target>.
func normalizeLink(href string, base *url.URL) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return nil
	}
	u, err := url.Parse(href)
	if err != nil {
		return nil
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Path == "/url" {
		for _, key := range []string{"q", "url"} {
			if target := u.Query().Get(key); target != "" {
				return normalizeLink(target, nil)
			}
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	return u
}

func (r *Resolver) pause() time.Duration {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return between(r.rng, r.cfg.PauseMin, r.cfg.PauseMax)
}

// between returns a uniformly random duration in [lo, hi].
func between(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Int63n(int64(hi-lo)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
