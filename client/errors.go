package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
)

// GatewayError reports a failed model call and the agent role that made it.
type GatewayError struct {
	Role  string
	Model string
	Err   error
}

func (e *GatewayError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("%s call failed: %v", e.Role, e.Err)
	}
	return fmt.Sprintf("%s call to %s failed: %v", e.Role, e.Model, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status the service answered with, or 0 when
// the call never got a response.
func (e *GatewayError) StatusCode() int {
	return StatusCode(e.Err)
}

// IsAuth reports whether the service rejected the credential.
func (e *GatewayError) IsAuth() bool {
	code := e.StatusCode()
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsRateLimited reports whether the service refused the call for quota reasons.
func (e *GatewayError) IsRateLimited() bool {
	return e.StatusCode() == http.StatusTooManyRequests
}

// CredentialError means the supplied API key was not accepted.
type CredentialError struct {
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("invalid API key: %v", e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// StatusCode extracts the HTTP status from an openai-go API error anywhere in
// the chain.
func StatusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
