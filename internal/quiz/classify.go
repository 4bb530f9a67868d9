package quiz

import (
	"errors"
	"net/http"

	"github.com/local/pdfquiz/internal/ai"
)

// classifyProviderError maps a failed provider call onto the error taxonomy.
// Errors already classified pass through unchanged.
func classifyProviderError(err error) *Error {
	if err == nil {
		return nil
	}

	var qe *Error
	if errors.As(err, &qe) {
		return qe
	}

	// Timeouts and caller cancellation
	if ai.IsTimeout(err) {
		return &Error{Kind: KindTimeout, Message: MsgTimeout, Err: err}
	}

	// HTTP status classes
	switch code := ai.StatusCode(err); {
	case code == http.StatusTooManyRequests:
		return &Error{Kind: KindProviderRateLimited, Message: MsgProviderRateLimited, Err: err}
	case code == http.StatusUnauthorized:
		return &Error{Kind: KindInvalidCredential, Message: MsgInvalidCredential, Err: err}
	case code >= 500:
		return &Error{Kind: KindProviderUnavailable, Message: MsgProviderUnavailable, Err: err}
	}

	// 2xx without a usable message
	if ai.IsNoContent(err) {
		return malformedError(MsgInvalidResponse, err)
	}

	return &Error{Kind: KindUnknown, Message: "Quiz generation failed: " + err.Error(), Err: err}
}

// metricResult is the label recorded for a provider call outcome.
func metricResult(err error) string {
	if err == nil {
		return "success"
	}
	return string(KindOf(err))
}
