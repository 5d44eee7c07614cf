package gocardless

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials is returned when any of the three provider secrets
// is absent. This is fatal misconfiguration, never retried.
var ErrMissingCredentials = errors.New("gocardless: secret id, secret key and secret name must all be set")

// AuthError is returned when the provider rejects the credential exchange
// or an access token it previously issued. Callers may retry the whole
// operation; the client itself never does.
type AuthError struct {
	StatusCode int
	Summary    string
}

func (e *AuthError) Error() string {
	if e.Summary == "" {
		return fmt.Sprintf("gocardless: authentication rejected (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("gocardless: authentication rejected (status %d): %s", e.StatusCode, e.Summary)
}

// APIError is returned for any non-2xx response, transport failure or
// malformed payload on a provider call. StatusCode is 0 when the request
// never produced a response (network failure, timeout). The provider's
// error body is summarized, never passed through verbatim.
type APIError struct {
	Operation  string
	StatusCode int
	Summary    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("gocardless: %s failed: %s", e.Operation, e.Summary)
	}
	return fmt.Sprintf("gocardless: %s failed (status %d): %s", e.Operation, e.StatusCode, e.Summary)
}
