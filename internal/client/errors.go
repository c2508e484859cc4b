package client

import "fmt"

// ConfigError reports missing or unusable client configuration, such as
// absent credentials in form-login mode.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "client config: " + e.Msg }

// AuthError reports a rejected login or a malformed login response.
type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string { return "auth: " + e.Msg }

// UpstreamError reports any non-2xx response that survived the single
// re-authentication retry. Body holds the raw response body for display.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, preview(e.Body, 200))
}

// TransportError reports a network-level failure, including timeouts.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

func preview(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
