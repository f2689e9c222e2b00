package xclient

import (
	"errors"
	"fmt"
)

// Typed publish failures. The publisher classifies on these: ErrRateLimited
// earns exactly one delayed retry, everything else surfaces immediately.
var (
	ErrRateLimited = errors.New("rate limited")
	ErrAuth        = errors.New("authentication failed")
	ErrValidation  = errors.New("request rejected")
	ErrTransient   = errors.New("transient platform error")
)

// APIError carries the platform status and detail alongside its class.
type APIError struct {
	Status int
	Detail string
	class  error
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("x api status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("x api status %d", e.Status)
}

func (e *APIError) Unwrap() error { return e.class }

// ClassifyStatus maps an HTTP status to a typed publish failure.
func ClassifyStatus(status int, detail string) error {
	e := &APIError{Status: status, Detail: detail}
	switch {
	case status == 429:
		e.class = ErrRateLimited
	case status == 401 || status == 403:
		e.class = ErrAuth
	case status >= 500:
		e.class = ErrTransient
	default:
		e.class = ErrValidation
	}
	return e
}
