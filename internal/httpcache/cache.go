// Package httpcache is a disk-backed HTTP response cache with a fixed TTL,
// installed as an http.RoundTripper.
package httpcache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/illallangi/cloudflare-tools/internal/logging"
)

const (
	// DefaultTTL is how long a response stays fresh after it was fetched.
	DefaultTTL = time.Hour

	// HeaderExpires carries the RFC 3339 time a response stops being fresh.
	HeaderExpires = "X-Cache-Expires"

	// HeaderFromCache is set to "1" on responses served from the store.
	HeaderFromCache = "X-From-Cache"
)

// keyHeaders are the request headers that change what the API returns.
var keyHeaders = []string{"Authorization", "Accept"}

// keyNamespace scopes cache keys to this package.
var keyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/illallangi/cloudflare-tools/httpcache"))

// Key derives the cache key for req from its method, full URL and the
// headers in keyHeaders. Header values are hashed, never stored.
func Key(req *http.Request) string {
	var b strings.Builder
	b.WriteString(req.Method)
	b.WriteByte(' ')
	b.WriteString(req.URL.String())
	for _, name := range keyHeaders {
		b.WriteByte('\n')
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strings.Join(req.Header.Values(name), ","))
	}
	return uuid.NewSHA1(keyNamespace, []byte(b.String())).String()
}

// Transport serves fresh GET responses from a Store and stores 200 OK
// responses from the next RoundTripper.
type Transport struct {
	Next   http.RoundTripper
	Store  Store
	TTL    time.Duration
	Logger *logging.Logger
	Now    func() time.Time
}

// NewTransport returns a Transport over next (http.DefaultTransport when nil).
func NewTransport(next http.RoundTripper, store Store, ttl time.Duration) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{
		Next:   next,
		Store:  store,
		TTL:    ttl,
		Logger: logging.GetGlobalLogger(),
		Now:    time.Now,
	}
}

// NewClient returns an *http.Client that sends requests through t.
func NewClient(t *Transport) *http.Client {
	return &http.Client{Transport: t}
}

func (t *Transport) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Transport) logger() *logging.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return logging.GetGlobalLogger()
}

func (t *Transport) next() http.RoundTripper {
	if t.Next != nil {
		return t.Next
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || t.Store == nil {
		return t.next().RoundTrip(req)
	}

	start := t.now()
	key := Key(req)

	entry, err := t.Store.Get(req.Context(), key)
	switch {
	case err == nil:
		if expires := entry.FetchedAt.Add(t.TTL); start.Before(expires) {
			t.logger().LogHTTPRequest(req.Method, req.URL.String(), entry.StatusCode, "hit", t.now().Sub(start).String())
			return cachedResponse(req, entry, expires), nil
		}
	case errors.Is(err, ErrNotFound):
	default:
		t.logger().Warn("Cache lookup failed for %s: %v", req.URL.Redacted(), err)
	}

	resp, err := t.next().RoundTrip(req)
	if err != nil {
		return nil, err
	}
	fetchedAt := t.now()
	t.logger().LogHTTPRequest(req.Method, req.URL.String(), resp.StatusCode, "miss", fetchedAt.Sub(start).String())

	if resp.StatusCode != http.StatusOK || t.TTL <= 0 {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.Header.Set(HeaderExpires, fetchedAt.Add(t.TTL).UTC().Format(time.RFC3339Nano))

	err = t.Store.Put(req.Context(), key, &Entry{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		FetchedAt:  fetchedAt,
	})
	if err != nil {
		t.logger().Warn("Failed to store response for %s: %v", req.URL.Redacted(), err)
	}

	return resp, nil
}

func cachedResponse(req *http.Request, e *Entry, expires time.Time) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set(HeaderExpires, expires.UTC().Format(time.RFC3339Nano))
	header.Set(HeaderFromCache, "1")
	header.Set("Content-Length", strconv.Itoa(len(e.Body)))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode)),
		StatusCode:    e.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// Expires reads the freshness deadline the Transport attached to resp.
func Expires(resp *http.Response) (time.Time, bool) {
	v := resp.Header.Get(HeaderExpires)
	if v == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
