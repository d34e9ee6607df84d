// Package bulletin locates today's notice on the police bulletin board and
// downloads its PDF attachment.
package bulletin

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/rallybrief/internal/config"
	"github.com/IshaanNene/rallybrief/internal/fetcher"
	"github.com/IshaanNene/rallybrief/internal/types"
)

// Board finds posts on the bulletin board with a browser session.
type Board struct {
	provider fetcher.SessionProvider
	cfg      *config.BulletinConfig
	loc      *time.Location
	logger   *slog.Logger
}

// NewBoard creates a Board. Dates in post titles are read in loc.
func NewBoard(provider fetcher.SessionProvider, cfg *config.BulletinConfig, loc *time.Location, logger *slog.Logger) *Board {
	if loc == nil {
		loc = time.Local
	}
	return &Board{
		provider: provider,
		cfg:      cfg,
		loc:      loc,
		logger:   logger.With("component", "bulletin_board"),
	}
}

// FindTodayPost returns the URL of the first post whose title carries the
// date of now. No such post is types.ErrNotFound.
func (b *Board) FindTodayPost(ctx context.Context, now time.Time) (string, error) {
	stamp := now.In(b.loc).Format(b.cfg.TitleDateLayout)
	log := b.logger.With("date", stamp)

	sess, err := b.provider.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := sess.Release(); err != nil {
			log.Warn("release session", "error", err)
		}
	}()

	if err := sess.Navigate(ctx, b.cfg.BoardURL); err != nil {
		return "", fmt.Errorf("open board: %w", err)
	}
	if err := sess.WaitElement(ctx, b.cfg.TableSelector, b.cfg.WaitTimeout); err != nil {
		return "", fmt.Errorf("board table: %w", err)
	}

	html, err := sess.HTML(ctx)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse board: %w", err)
	}

	link, ok := findPost(doc, b.cfg.SubjectSelector, stamp)
	if !ok {
		log.Info("no post for today")
		return "", fmt.Errorf("%w: no post titled with %s", types.ErrNotFound, stamp)
	}

	if href := link.href; isNavigable(href) {
		base, _ := url.Parse(b.cfg.BoardURL)
		ref, err := url.Parse(href)
		if err == nil {
			postURL := base.ResolveReference(ref).String()
			log.Info("post found", "url", postURL)
			return postURL, nil
		}
	}

	// javascript links only navigate when clicked
	clickText := link.text
	if clickText == "" {
		clickText = stamp
	}
	if err := sess.ClickText(ctx, b.cfg.SubjectSelector, clickText); err != nil {
		return "", fmt.Errorf("open post: %w", err)
	}
	postURL, err := sess.URL(ctx)
	if err != nil {
		return "", err
	}
	log.Info("post found", "url", postURL, "via", "click")
	return postURL, nil
}

type postLink struct {
	text string
	href string
}

// findPost returns the first subject link whose title attribute or text
// contains stamp.
func findPost(doc *goquery.Document, selector, stamp string) (postLink, bool) {
	var found postLink
	var ok bool
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title, _ := s.Attr("title")
		text := strings.TrimSpace(s.Text())
		if !strings.Contains(title, stamp) && !strings.Contains(text, stamp) {
			return true
		}
		href, _ := s.Attr("href")
		found = postLink{text: text, href: strings.TrimSpace(href)}
		ok = true
		return false
	})
	return found, ok
}

func isNavigable(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	return !strings.HasPrefix(strings.ToLower(href), "javascript:")
}
