// Package transport constructs the HTTP client handed to the sync engine.
// The engine itself only needs something that can Do a request; proxy,
// timeout and redirect policy are decided here.
package transport

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultTimeout bounds one request, body included.
	DefaultTimeout = 5 * time.Minute
	// DefaultMaxRedirects is how many redirects a request may follow.
	DefaultMaxRedirects = 10
)

type options struct {
	proxy        string
	timeout      time.Duration
	maxRedirects int
}

// Option configures New.
type Option func(*options)

// WithProxy routes requests through the proxy at rawURL. An empty string
// means direct connections.
func WithProxy(rawURL string) Option {
	return func(o *options) { o.proxy = rawURL }
}

// WithTimeout sets the per-request timeout. Zero or less keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMaxRedirects sets the redirect limit. Negative values keep the default.
func WithMaxRedirects(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRedirects = n
		}
	}
}

// New returns an *http.Client configured by opts.
func New(opts ...Option) (*http.Client, error) {
	o := options{timeout: DefaultTimeout, maxRedirects: DefaultMaxRedirects}
	for _, opt := range opts {
		opt(&o)
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = nil
	if o.proxy != "" {
		u, err := url.Parse(o.proxy)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy url %q: %w", o.proxy, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("proxy url %q must include a scheme and host", o.proxy)
		}
		tr.Proxy = http.ProxyURL(u)
	}

	limit := o.maxRedirects
	return &http.Client{
		Transport: tr,
		Timeout:   o.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > limit {
				return errors.New("stopped after too many redirects")
			}
			return nil
		},
	}, nil
}
