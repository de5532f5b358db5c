package httpclient

import (
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16
	UserAgent              = "hls-stitch/1.0"
)

var defaultClient *http.Client

func init() {
	defaultClient = &http.Client{
		Timeout:   DefaultTimeout,
		Transport: newTransport(),
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}
}

// Default returns the shared tuned HTTP client.
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client with the given timeout and the same transport as Default (or a copy).
func WithTimeout(timeout time.Duration) *http.Client {
	t, ok := defaultClient.Transport.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: timeout}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: t.Clone(),
	}
}

// Options shapes the client used for one download job. Zero values mean "no limit".
type Options struct {
	// Timeout bounds each request end to end. 0 = DefaultTimeout; <0 = none.
	Timeout time.Duration
	// MaxConnsPerHost caps in-flight requests per scheme+host.
	MaxConnsPerHost int
	// RequestsPerSecond caps the request rate per scheme+host; Burst defaults to 1.
	RequestsPerSecond float64
	Burst             int
	// Cookies enables a public-suffix aware cookie jar so cookies set on the
	// manifest response are sent with segment requests on the same site.
	Cookies bool
}

// New builds a client for opts. The transport chain is
// rate limit -> host semaphore -> pooled http.Transport.
func New(opts Options) *http.Client {
	var rt http.RoundTripper = newTransport()
	if opts.MaxConnsPerHost > 0 {
		rt = &semTransport{next: rt, sem: NewHostSemaphore(opts.MaxConnsPerHost)}
	}
	if opts.RequestsPerSecond > 0 {
		rt = NewRateLimited(rt, opts.RequestsPerSecond, opts.Burst)
	}
	timeout := opts.Timeout
	switch {
	case timeout == 0:
		timeout = DefaultTimeout
	case timeout < 0:
		timeout = 0
	}
	c := &http.Client{Timeout: timeout, Transport: rt}
	if opts.Cookies {
		jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		c.Jar = jar
	}
	return c
}
