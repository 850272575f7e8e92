package zendesk

import "fmt"

// AuthError is returned when the ticketing API rejects the configured
// credentials (401/403).
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("zendesk: authentication rejected (status %d): %s", e.StatusCode, e.Body)
}

// TransportError is returned for network failures and non-2xx responses
// other than auth rejections. It is scoped to the single call that
// produced it.
type TransportError struct {
	Op         string
	StatusCode int // 0 when the request never got a response
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("zendesk: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("zendesk: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }
