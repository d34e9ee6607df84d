package search

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Query embeds date, formatted with layout, into template at {date}.
func Query(template, layout string, date time.Time) string {
	return strings.ReplaceAll(template, "{date}", date.Format(layout))
}

// SearchURL returns engineURL with query set as the q parameter.
func SearchURL(engineURL, query string) (string, error) {
	u, err := url.Parse(engineURL)
	if err != nil {
		return "", fmt.Errorf("parse engine url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
