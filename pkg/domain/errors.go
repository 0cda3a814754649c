package domain

import (
	"errors"
	"fmt"
	"time"
)

// APIError is a Telegram answer with ok=false.
type APIError struct {
	Description string
	Code        int
	RetryAfter  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// TransportError is a Telegram call that never produced an answer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Description returns the text Telegram supplied for err, or the error text when the
// call failed before Telegram answered.
func Description(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Description
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Err.Error()
	}
	return err.Error()
}

type ConversionErrorKind int

const (
	ConversionFailed ConversionErrorKind = iota
	ConversionInvalidConfig
	ConversionBadRequest
	ConversionUnconvertible
	ConversionTemporarilyUnavailable
	ConversionProviderError
	ConversionTransport
)

func (k ConversionErrorKind) String() string {
	switch k {
	case ConversionInvalidConfig:
		return "invalid_config"
	case ConversionBadRequest:
		return "bad_request"
	case ConversionUnconvertible:
		return "unconvertible"
	case ConversionTemporarilyUnavailable:
		return "temporarily_unavailable"
	case ConversionProviderError:
		return "provider_error"
	case ConversionTransport:
		return "transport"
	default:
		return "failed"
	}
}

type ConversionError struct {
	Kind       ConversionErrorKind
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conversion %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("conversion %s: %s", e.Kind, e.Message)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// UserFacingError carries the reply the user gets for a failed request.
type UserFacingError struct {
	Reply string
	Err   error
}

func NewUserFacingError(reply string, err error) *UserFacingError {
	return &UserFacingError{Reply: reply, Err: err}
}

func (e *UserFacingError) Error() string {
	if e.Err == nil {
		return e.Reply
	}
	return e.Err.Error()
}

func (e *UserFacingError) Unwrap() error {
	return e.Err
}
