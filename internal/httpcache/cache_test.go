package httpcache

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illallangi/cloudflare-tools/internal/logging"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "cache", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestTransport(t *testing.T, ttl time.Duration) (*Transport, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	tr := NewTransport(nil, openStore(t), ttl)
	tr.Now = clock.Now
	tr.Logger = logging.NewWriterLogger(io.Discard, logging.LevelError)
	return tr, clock
}

func countingServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func get(t *testing.T, client *http.Client, url, token string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestTransportServesFreshEntries(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{"result":[]}`)
	tr, clock := newTestTransport(t, time.Hour)
	client := NewClient(tr)

	first, body := get(t, client, srv.URL+"/tunnels", "token")
	assert.Equal(t, `{"result":[]}`, body)
	assert.Empty(t, first.Header.Get(HeaderFromCache))
	expires, ok := Expires(first)
	require.True(t, ok)
	assert.True(t, clock.now.Add(time.Hour).Equal(expires))

	clock.Advance(30 * time.Minute)
	second, body := get(t, client, srv.URL+"/tunnels", "token")
	assert.Equal(t, `{"result":[]}`, body)
	assert.Equal(t, "1", second.Header.Get(HeaderFromCache))
	assert.Equal(t, "application/json", second.Header.Get("Content-Type"))
	cachedExpires, ok := Expires(second)
	require.True(t, ok)
	assert.True(t, expires.Equal(cachedExpires))

	assert.EqualValues(t, 1, atomic.LoadInt32(hits))
}

func TestTransportRefetchesAfterTTL(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{}`)
	tr, clock := newTestTransport(t, time.Hour)
	client := NewClient(tr)

	get(t, client, srv.URL, "token")
	clock.Advance(time.Hour)
	resp, _ := get(t, client, srv.URL, "token")

	assert.Empty(t, resp.Header.Get(HeaderFromCache))
	assert.EqualValues(t, 2, atomic.LoadInt32(hits))

	expires, ok := Expires(resp)
	require.True(t, ok)
	assert.True(t, clock.now.Add(time.Hour).Equal(expires))
}

func TestTransportDoesNotStoreErrors(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError, http.StatusAccepted} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv, hits := countingServer(t, status, `{"success":false}`)
			tr, _ := newTestTransport(t, time.Hour)
			client := NewClient(tr)

			resp, _ := get(t, client, srv.URL, "token")
			assert.Equal(t, status, resp.StatusCode)
			_, ok := Expires(resp)
			assert.False(t, ok)

			get(t, client, srv.URL, "token")
			assert.EqualValues(t, 2, atomic.LoadInt32(hits))
		})
	}
}

func TestTransportZeroTTLDisablesStorage(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{}`)
	tr, _ := newTestTransport(t, 0)
	client := NewClient(tr)

	get(t, client, srv.URL, "token")
	get(t, client, srv.URL, "token")

	assert.EqualValues(t, 2, atomic.LoadInt32(hits))
}

func TestTransportKeysOnAuthorization(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{}`)
	tr, _ := newTestTransport(t, time.Hour)
	client := NewClient(tr)

	get(t, client, srv.URL, "one")
	get(t, client, srv.URL, "two")
	get(t, client, srv.URL, "one")

	assert.EqualValues(t, 2, atomic.LoadInt32(hits))
}

func TestTransportPassesThroughNonGet(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{}`)
	tr, _ := newTestTransport(t, time.Hour)
	client := NewClient(tr)

	for i := 0; i < 2; i++ {
		resp, err := client.Post(srv.URL, "application/json", bytes.NewBufferString(`{}`))
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.EqualValues(t, 2, atomic.LoadInt32(hits))
}

func TestKey(t *testing.T) {
	newReq := func(method, url, token string) *http.Request {
		req, err := http.NewRequest(method, url, nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req
	}

	base := Key(newReq(http.MethodGet, "https://api.example.com/a?x=1", "t"))

	assert.Equal(t, base, Key(newReq(http.MethodGet, "https://api.example.com/a?x=1", "t")))
	assert.NotEqual(t, base, Key(newReq(http.MethodGet, "https://api.example.com/a?x=2", "t")))
	assert.NotEqual(t, base, Key(newReq(http.MethodHead, "https://api.example.com/a?x=1", "t")))
	assert.NotEqual(t, base, Key(newReq(http.MethodGet, "https://api.example.com/a?x=1", "u")))
	assert.NotContains(t, base, "Bearer")

	withTrace := newReq(http.MethodGet, "https://api.example.com/a?x=1", "t")
	withTrace.Header.Set("X-Request-ID", "abc")
	assert.Equal(t, base, Key(withTrace))
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fetched := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "old", &Entry{
		Method: "GET", URL: "https://x/old", StatusCode: 200,
		Header: http.Header{"Content-Type": {"application/json"}}, Body: []byte("old"), FetchedAt: fetched,
	}))
	require.NoError(t, store.Put(ctx, "new", &Entry{
		Method: "GET", URL: "https://x/new", StatusCode: 200, FetchedAt: fetched.Add(2 * time.Hour),
	}))

	got, err := store.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "https://x/old", got.URL)
	assert.Equal(t, []byte("old"), got.Body)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.True(t, fetched.Equal(got.FetchedAt))

	// Overwrites are idempotent upserts.
	require.NoError(t, store.Put(ctx, "old", &Entry{
		Method: "GET", URL: "https://x/old", StatusCode: 200, Body: []byte("replaced"), FetchedAt: fetched,
	}))
	got, err = store.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), got.Body)

	purged, err := store.Purge(ctx, fetched.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	cleared, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, cleared)

	_, err = store.Get(ctx, "new")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "k", &Entry{Method: "GET", URL: "u", StatusCode: 200, Body: []byte("b"), FetchedAt: time.Now()}))
	require.NoError(t, store.Close())

	store, err = OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, path, store.Path())

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got.Body)
}
