package httpclient

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimited is a RoundTripper that paces requests per scheme+host with a token bucket.
// Waiting honours the request context, so a cancelled job stops queueing immediately.
type RateLimited struct {
	next  http.RoundTripper
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimited wraps next. rps <= 0 disables limiting; burst < 1 is treated as 1.
func NewRateLimited(next http.RoundTripper, rps float64, burst int) *RateLimited {
	if next == nil {
		next = http.DefaultTransport
	}
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimited{
		next:     next,
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (t *RateLimited) limiterFor(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[host]
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.limiters[host] = l
	}
	return l
}

func (t *RateLimited) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiterFor(req.URL.Scheme + "://" + req.URL.Host).Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}
