package account

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimitedTransport paces requests before handing them to Next. Placed
// beneath an httpcache.Transport it only delays requests that reach the
// network.
type RateLimitedTransport struct {
	Next    http.RoundTripper
	Limiter *rate.Limiter
}

// NewRateLimitedTransport paces next to rps requests per second with the
// given burst. A nil next means http.DefaultTransport.
func NewRateLimitedTransport(next http.RoundTripper, rps float64, burst int) (*RateLimitedTransport, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("invalid rate limit %v/%d", rps, burst)
	}
	if next == nil {
		next = http.DefaultTransport
	}
	return &RateLimitedTransport{
		Next:    next,
		Limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}, nil
}

// RoundTrip implements http.RoundTripper.
func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.Limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.Next.RoundTrip(req)
}
