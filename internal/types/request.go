package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request is a plain HTTP page or file request.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Method is the HTTP method. Defaults to GET.
	Method string

	// Headers are sent in addition to the fetcher defaults.
	Headers http.Header

	// Timeout overrides the fetcher timeout when positive.
	Timeout time.Duration
}

// NewRequest creates a GET request for rawURL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidURL, rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w %q: scheme must be http or https", ErrInvalidURL, rawURL)
	}

	return &Request{
		URL:     u,
		Method:  http.MethodGet,
		Headers: make(http.Header),
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Domain returns the hostname of the request URL.
func (r *Request) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}

// WithReferer sets the Referer header and returns the request.
func (r *Request) WithReferer(referer string) *Request {
	if referer != "" {
		r.Headers.Set("Referer", referer)
	}
	return r
}
