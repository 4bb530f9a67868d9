package quiz

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind classifies a failed generation attempt.
type Kind string

const (
	KindConfiguration       Kind = "configuration"
	KindValidation          Kind = "validation"
	KindRateLimitExceeded   Kind = "rate_limit_exceeded"
	KindPageProcessing      Kind = "page_processing"
	KindTimeout             Kind = "timeout"
	KindProviderRateLimited Kind = "provider_rate_limited"
	KindInvalidCredential   Kind = "invalid_credential"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindMalformedResponse   Kind = "malformed_response"
	KindInvalidQuizContent  Kind = "invalid_quiz_content"
	KindUnknown             Kind = "unknown"
)

// User-facing messages for provider failures.
const (
	MsgTimeout             = "Request timeout. Please check your internet connection and try again."
	MsgProviderRateLimited = "API rate limit exceeded. Please wait a moment and try again."
	MsgInvalidCredential   = "Invalid API key. Please check your configuration."
	MsgProviderUnavailable = "AI service is temporarily unavailable. Please try again later."
	MsgInvalidResponse     = "Invalid response format from AI service"
	MsgNoJSON              = "AI response does not contain valid JSON format"
)

// ErrNoQuestions is returned when the model answered with an empty array.
var ErrNoQuestions = errors.New("no questions were generated")

const msgNoQuestions = "No questions were generated"

// Error is the single error type surfaced by the quiz pipeline. Message is
// safe to show to an end user; Details carries per-item defects.
type Error struct {
	Kind       Kind
	Message    string
	Details    []string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return KindUnknown
}

// RetryAfterOf returns the wait hint carried by err, if any.
func RetryAfterOf(err error) time.Duration {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.RetryAfter
	}
	return 0
}

func configurationError(details []string) *Error {
	return &Error{Kind: KindConfiguration, Message: "API Configuration Error: " + strings.Join(details, ", "), Details: details}
}

func settingsError(details []string) *Error {
	return &Error{Kind: KindValidation, Message: "Invalid Settings: " + strings.Join(details, ", "), Details: details}
}

func contentError(details []string) *Error {
	return &Error{Kind: KindValidation, Message: "Content Error: " + strings.Join(details, ", "), Details: details}
}

func rateLimitError(wait time.Duration) *Error {
	secs := int(math.Ceil(wait.Seconds()))
	return &Error{
		Kind:       KindRateLimitExceeded,
		Message:    fmt.Sprintf("Rate limit exceeded. Please wait %d seconds before trying again.", secs),
		RetryAfter: wait,
	}
}

func malformedError(msg string, err error) *Error {
	return &Error{Kind: KindMalformedResponse, Message: msg, Err: err}
}

func invalidContentError(details []string, err error) *Error {
	return &Error{Kind: KindInvalidQuizContent, Message: "Generated Quiz Error: " + strings.Join(details, ", "), Details: details, Err: err}
}

// FileError reports a refused upload.
func FileError(details []string, err error) *Error {
	return &Error{Kind: KindValidation, Message: "File Error: " + strings.Join(details, ", "), Details: details, Err: err}
}

// PageError reports an extraction that stopped on a page. msg is the
// page-specific part, e.g. "Failed to process page 3".
func PageError(msg string, err error) *Error {
	return &Error{Kind: KindPageProcessing, Message: msg + ". Please try again.", Err: err}
}
