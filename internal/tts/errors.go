package tts

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Reason classifies why a synthesis call failed.
type Reason string

const (
	ReasonTransport           Reason = "transport"
	ReasonAuth                Reason = "auth"
	ReasonMalformedResponse   Reason = "malformed_response"
	ReasonUnsupportedProvider Reason = "unsupported_provider"
	ReasonIO                  Reason = "io"
	ReasonPlayback            Reason = "playback"
	ReasonInvalidRequest      Reason = "invalid_request"
)

var (
	// ErrUnsupportedProvider is returned for identifiers outside the known set.
	ErrUnsupportedProvider = errors.New("unsupported model")

	// ErrEmptyText is returned by hosted backends when there is nothing to say.
	ErrEmptyText = errors.New("text is required")

	// ErrOutputPath is returned when a request has no output path.
	ErrOutputPath = errors.New("output path is required")

	// ErrInvalidVoice is returned when a provider does not know the voice.
	ErrInvalidVoice = errors.New("invalid or unknown voice")
)

// Error is the failure value returned by the dispatcher and the backends.
type Error struct {
	Provider ProviderID
	Reason   Reason
	Err      error
}

func (e *Error) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("tts: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("tts: %s: %s: %v", e.Provider, e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a provider and reason.
func NewError(provider ProviderID, reason Reason, err error) *Error {
	return &Error{Provider: provider, Reason: reason, Err: err}
}

// ReasonOf extracts the failure reason from err. Errors that were not
// produced by this package are reported as transport failures.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonTransport
}

// ReasonForStatus maps an HTTP status code to a failure reason.
func ReasonForStatus(code int) Reason {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusPaymentRequired:
		return ReasonAuth
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return ReasonInvalidRequest
	}
	return ReasonTransport
}

// StatusError drains up to 4 KiB of an unsuccessful response body and
// returns a classified error. The caller still owns resp.Body.
func StatusError(provider ProviderID, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	return NewError(provider, ReasonForStatus(resp.StatusCode),
		fmt.Errorf("API error (status %d): %s", resp.StatusCode, msg))
}
