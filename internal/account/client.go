// Package account reads tunnels and their ingress rules from the
// Cloudflare v4 API for a single account.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/illallangi/cloudflare-tools/internal/httpcache"
	"github.com/illallangi/cloudflare-tools/internal/logging"
)

// DefaultBaseURL is the Cloudflare v4 API root.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4/"

type credentials struct {
	APIToken  string `validate:"required"`
	AccountID string `validate:"required"`
}

var validate = validator.New()

// Client issues authenticated read requests for one account.
type Client struct {
	apiToken   string
	accountID  string
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logging.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient sets the HTTP client, typically one whose transport is an
// httpcache.Transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithBaseURL overrides the API root.
func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid base url: %w", err)
		}
		if !u.IsAbs() {
			return fmt.Errorf("invalid base url %q: must be absolute", raw)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		c.baseURL = u
		return nil
	}
}

// WithRateLimit paces requests to rps per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("invalid rate limit %v/%d", rps, burst)
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) error {
		c.logger = l
		return nil
	}
}

// WithClock sets the time source used for _expires when the response
// carries no cache deadline.
func WithClock(now func() time.Time) Option {
	return func(c *Client) error {
		c.now = now
		return nil
	}
}

// New creates a Client. It fails with a *ConfigurationError when either
// credential is empty.
func New(apiToken, accountID string, opts ...Option) (*Client, error) {
	if err := validate.Struct(credentials{APIToken: apiToken, AccountID: accountID}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := "API token"
			if verrs[0].Field() == "AccountID" {
				field = "account ID"
			}
			return nil, &ConfigurationError{Field: field}
		}
		return nil, err
	}

	base, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		apiToken:   apiToken,
		accountID:  accountID,
		baseURL:    base,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		logger:     logging.GetGlobalLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AccountID returns the account the client reads from.
func (c *Client) AccountID() string {
	return c.accountID
}

// ListTunnels returns the account's non-deleted cfd_tunnels in API order.
func (c *Client) ListTunnels(ctx context.Context) ([]Tunnel, error) {
	const op = "failed to get tunnels"

	query := url.Values{}
	query.Set("is_deleted", "false")
	query.Set("tun_types", "cfd_tunnel")

	var env envelope[[]apiTunnel]
	expires, err := c.get(ctx, op, []string{"accounts", c.accountID, "tunnels"}, query, &env)
	if err != nil {
		return nil, err
	}

	tunnels := make([]Tunnel, 0, len(env.Result))
	for _, t := range env.Result {
		tunnels = append(tunnels, Tunnel{
			Expires: expires,
			ID:      t.ID,
			Name:    t.Name,
			Status:  t.Status,
		})
	}
	return tunnels, nil
}

// ListIngressesForTunnel returns the tunnel's ingress rules in configuration
// order, without the http_status:404 catch-all.
func (c *Client) ListIngressesForTunnel(ctx context.Context, tunnelID string) ([]Ingress, error) {
	const op = "failed to get ingresses"

	c.logger.Info("Getting ingresses for tunnel ID: %s", tunnelID)

	var env envelope[apiTunnelConfiguration]
	expires, err := c.get(ctx, op, []string{"accounts", c.accountID, "cfd_tunnel", tunnelID, "configurations"}, nil, &env)
	if err != nil {
		return nil, err
	}

	ingresses := make([]Ingress, 0, len(env.Result.Config.Ingress))
	for _, rule := range env.Result.Config.Ingress {
		if rule.Service == CatchAllService {
			continue
		}
		origin := rule.OriginRequest
		if origin == nil {
			origin = map[string]interface{}{}
		}
		ingresses = append(ingresses, Ingress{
			Expires:       expires,
			TunnelID:      tunnelID,
			Sort:          rule.sortKey(),
			URL:           IngressURL(rule.Hostname, rule.Path),
			Service:       rule.Service,
			OriginRequest: origin,
		})
	}
	return ingresses, nil
}

// ListIngresses lists every tunnel, then each tunnel's ingresses in turn,
// and returns the concatenation. Any failure aborts the whole listing and
// no records are returned.
func (c *Client) ListIngresses(ctx context.Context) ([]Ingress, error) {
	tunnels, err := c.ListTunnels(ctx)
	if err != nil {
		return nil, err
	}

	var all []Ingress
	for _, t := range tunnels {
		ingresses, err := c.ListIngressesForTunnel(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		all = append(all, ingresses...)
	}
	if all == nil {
		all = []Ingress{}
	}
	return all, nil
}

// ResolveTunnelName returns the name of the single tunnel whose id is
// tunnelID, or a *ResolutionError when there is not exactly one.
func ResolveTunnelName(tunnels []Tunnel, tunnelID string) (string, error) {
	var (
		name    string
		matches int
	)
	for _, t := range tunnels {
		if t.ID == tunnelID {
			name = t.Name
			matches++
		}
	}
	if matches != 1 {
		return "", &ResolutionError{TunnelID: tunnelID, Matches: matches}
	}
	return name, nil
}

func (c *Client) endpoint(segments []string, query url.Values) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := c.baseURL.ResolveReference(&url.URL{
		Path:    strings.Join(segments, "/"),
		RawPath: strings.Join(escaped, "/"),
	})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// get performs one GET, decodes the envelope into out and returns the
// response's cache deadline.
func (c *Client) get(ctx context.Context, op string, segments []string, query url.Values, out interface{}) (time.Time, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return time.Time{}, &RemoteRequestError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(segments, query), nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiToken))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return time.Time{}, &RemoteRequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return time.Time{}, &RemoteRequestError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return time.Time{}, &RemoteRequestError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return time.Time{}, &ResponseParseError{Op: op, Payload: string(body), Offset: jsonOffset(err), Err: err}
	}

	if env, ok := out.(interface{ failure() error }); ok {
		if err := env.failure(); err != nil {
			return time.Time{}, &RemoteRequestError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body)), Err: err}
		}
	}

	if expires, ok := httpcache.Expires(resp); ok {
		return expires, nil
	}
	return c.now().UTC(), nil
}

func (e *envelope[T]) failure() error {
	if e.Success == nil || *e.Success {
		return nil
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, apiErr := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%d: %s", apiErr.Code, apiErr.Message))
	}
	if len(msgs) == 0 {
		return errors.New("api reported failure")
	}
	return fmt.Errorf("api reported failure: %s", strings.Join(msgs, "; "))
}

func jsonOffset(err error) int64 {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Offset
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Offset
	}
	return 0
}
