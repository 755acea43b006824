package account

import (
	"bytes"
	"encoding/json"
	"time"
)

// Tunnel is one cfd_tunnel in the account. Expires is the freshness
// deadline of the response it came from.
type Tunnel struct {
	Expires time.Time `json:"_expires" yaml:"_expires"`
	ID      string    `json:"id" yaml:"id"`
	Name    string    `json:"name" yaml:"name"`
	Status  string    `json:"status" yaml:"status"`
}

// Ingress is one routing rule of a tunnel's remote configuration.
type Ingress struct {
	Expires       time.Time              `json:"_expires" yaml:"_expires"`
	TunnelID      string                 `json:"tunnel_id" yaml:"tunnel_id"`
	Sort          *string                `json:"sort" yaml:"sort"`
	URL           string                 `json:"url" yaml:"url"`
	Service       string                 `json:"service" yaml:"service"`
	OriginRequest map[string]interface{} `json:"origin_request" yaml:"origin_request"`
}

// CatchAllService marks the implicit last rule of every tunnel configuration.
const CatchAllService = "http_status:404"

// envelope is the standard v4 API response wrapper.
type envelope[T any] struct {
	Success  *bool      `json:"success"`
	Errors   []apiError `json:"errors"`
	Messages []any      `json:"messages"`
	Result   T          `json:"result"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type apiTunnel struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type apiTunnelConfiguration struct {
	TunnelID string `json:"tunnel_id"`
	Config   struct {
		Ingress []apiIngressRule `json:"ingress"`
	} `json:"config"`
}

type apiIngressRule struct {
	ID            json.RawMessage        `json:"id"`
	Hostname      string                 `json:"hostname"`
	Path          string                 `json:"path"`
	Service       string                 `json:"service"`
	OriginRequest map[string]interface{} `json:"originRequest"`
}

// sortKey turns the rule's optional id into the Sort field. Strings are
// used as-is, other scalars keep their JSON text, and null means absent.
func (r apiIngressRule) sortKey() *string {
	raw := bytes.TrimSpace(r.ID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	s = string(raw)
	return &s
}
