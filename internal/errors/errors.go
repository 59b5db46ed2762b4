// Package errors defines the typed failure taxonomy for the mail pipeline.
// Failures are classified at the point they are first observed (status code,
// context deadline) and carried as structured values, never re-derived from
// error message text downstream.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind identifies a failure category in the pipeline taxonomy.
type Kind string

const (
	// KindValidation is a caller fault: the inbound request is malformed.
	// It is the only kind allowed to surface to the webhook transport.
	KindValidation Kind = "validation"

	// KindRateLimited is a 429 from a provider.
	KindRateLimited Kind = "rate_limited"

	// KindTimeout is a per-call deadline expiry.
	KindTimeout Kind = "timeout"

	// KindAuthFailure means provider credentials were rejected (401/403).
	// Operator fault, logged as critical, never retried.
	KindAuthFailure Kind = "auth_failure"

	// KindRefusal means the model declined to answer.
	KindRefusal Kind = "refusal"

	// KindProvider covers other provider-side failures (5xx, malformed
	// responses, non-429 4xx rejections).
	KindProvider Kind = "provider_error"

	// KindSendFailure is a terminal delivery-side failure. Logged only,
	// never user-visible.
	KindSendFailure Kind = "send_failure"

	// KindQuotaExceeded is an expected business state: the user is over
	// their spend ceiling.
	KindQuotaExceeded Kind = "quota_exceeded"

	// KindSubscriptionInactive blocks access like quota exhaustion when a
	// paid subscription is not active or trialing.
	KindSubscriptionInactive Kind = "subscription_inactive"
)

// PipelineError is a classified failure raised by a pipeline component.
type PipelineError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Message != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// New creates a PipelineError with an explicit kind.
func New(kind Kind, message string) *PipelineError {
	return &PipelineError{Kind: kind, Message: message}
}

// Wrap creates a PipelineError with an explicit kind around a cause.
func Wrap(kind Kind, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

// FromStatus classifies a status-coded provider failure.
func FromStatus(status int, message string, err error) *PipelineError {
	kind := KindProvider
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindAuthFailure
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	}
	return &PipelineError{Kind: kind, StatusCode: status, Message: message, Err: err}
}

// FromTransport classifies a transport-level failure. Context deadline
// expiry becomes a Timeout; everything else is a provider error with no
// status code.
func FromTransport(message string, err error) *PipelineError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &PipelineError{Kind: KindTimeout, Message: message, Err: err}
	}
	return &PipelineError{Kind: KindProvider, Message: message, Err: err}
}

// KindOf returns the classified kind of err, or KindProvider when err
// carries no classification.
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	return KindProvider
}

// StatusOf returns the status code attached to err, or 0.
func StatusOf(err error) int {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}

// IsRetryable reports whether err is worth re-attempting: a timeout, or a
// status-coded failure whose code is in retryableCodes.
func IsRetryable(err error, retryableCodes []int) bool {
	var pe *PipelineError
	if !errors.As(err, &pe) {
		return false
	}
	if pe.Kind == KindTimeout {
		return true
	}
	for _, code := range retryableCodes {
		if pe.StatusCode == code {
			return true
		}
	}
	return false
}

// ValidationError is a caller fault: required webhook fields are missing.
// It carries the missing field names and the received field set for the
// rejection diagnostic payload.
type ValidationError struct {
	MissingFields []string
	Received      map[string]string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.MissingFields, ", "))
}

// ReceivedFields returns the names of the fields that were present, for
// diagnostics. Field values are not echoed back.
func (e *ValidationError) ReceivedFields() []string {
	fields := make([]string, 0, len(e.Received))
	for name := range e.Received {
		fields = append(fields, name)
	}
	return fields
}

// Error codes for API responses
const (
	CodeInvalidInput  = "INVALID_INPUT"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeInternalError = "INTERNAL_ERROR"
)
