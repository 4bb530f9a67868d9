package ai

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "time"
)

// Request represents a single chat completion, optionally carrying one image.
type Request struct {
    Model        string
    SystemPrompt string
    Prompt       string
    Temperature  float32
    MaxTokens    int
    Timeout      time.Duration
    // Vision fields
    ImageBase64 string // Base64 encoded image
    ImageMIME   string // Image MIME type (image/jpeg)
}

type Response struct {
    Text      string
    TokensIn  int
    TokensOut int
}

// Client interface for OpenAI-compatible providers.
type Client interface {
    Name() string
    Do(ctx context.Context, req Request) (Response, error)
}

var (
    ErrRateLimited = errors.New("rate_limited")
    ErrNoContent   = errors.New("no_content")
)

// HTTPError is a non-2xx answer from the provider.
type HTTPError struct {
    Provider   string
    StatusCode int
    Message    string
}

func (e *HTTPError) Error() string {
    if e.Message == "" {
        return fmt.Sprintf("%s status %d", e.Provider, e.StatusCode)
    }
    return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrRateLimited) match a 429.
func (e *HTTPError) Is(target error) bool {
    return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }
func IsNoContent(err error) bool   { return errors.Is(err, ErrNoContent) }

// StatusCode returns the provider HTTP status carried by err, or 0.
func StatusCode(err error) int {
    var he *HTTPError
    if errors.As(err, &he) {
        return he.StatusCode
    }
    return 0
}

// IsTimeout reports whether err came from a deadline or caller cancellation.
func IsTimeout(err error) bool {
    return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
