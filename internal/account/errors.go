package account

import (
	"errors"
	"fmt"
)

// Sentinel errors for the account client. Each typed error below matches
// its sentinel with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrRemoteRequest = errors.New("remote request error")
	ErrResponseParse = errors.New("response parse error")
	ErrResolution    = errors.New("resolution error")
)

// ConfigurationError reports a missing or empty credential.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// RemoteRequestError reports a transport failure or a non-2xx response.
// StatusCode is zero for transport failures.
type RemoteRequestError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteRequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *RemoteRequestError) Unwrap() error { return e.Err }

func (e *RemoteRequestError) Is(target error) bool { return target == ErrRemoteRequest }

// ResponseParseError reports a response body that is not the expected JSON.
type ResponseParseError struct {
	Op      string
	Payload string
	Offset  int64
	Err     error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("%s: failed to decode response as JSON at offset %d: %v: %s", e.Op, e.Offset, e.Err, e.Payload)
}

func (e *ResponseParseError) Unwrap() error { return e.Err }

func (e *ResponseParseError) Is(target error) bool { return target == ErrResponseParse }

// ResolutionError reports a tunnel id that did not match exactly one tunnel.
type ResolutionError struct {
	TunnelID string
	Matches  int
}

func (e *ResolutionError) Error() string {
	if e.Matches == 0 {
		return fmt.Sprintf("no tunnel found with id %s", e.TunnelID)
	}
	return fmt.Sprintf("expected one tunnel with id %s, found %d", e.TunnelID, e.Matches)
}

func (e *ResolutionError) Is(target error) bool { return target == ErrResolution }
