package statuscheck

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/local/pdfquiz/internal/ai"
)

// Pinger is satisfied by the Redis adapter and the LLM client.
type Pinger interface {
    Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Checker aggregates health checks for the dependencies a quiz job needs.
type Checker struct {
    redis   Pinger
    llm     Pinger
    apiKey  func() string
    timeout time.Duration
}

// Options configures the Checker.
type Options struct {
    Redis Pinger
    LLM   Pinger
    // APIKey is read on every check so a rotated key shows up immediately.
    APIKey  func() string
    Timeout time.Duration
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
    Redis Status `json:"redis"`
    LLM   Status `json:"llm"`
}

func (s Summary) OK() bool { return s.Redis.OK && s.LLM.OK }

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    if opts.Timeout <= 0 {
        opts.Timeout = 5 * time.Second
    }
    if opts.APIKey == nil {
        opts.APIKey = func() string { return "" }
    }
    return &Checker{redis: opts.Redis, llm: opts.LLM, apiKey: opts.APIKey, timeout: opts.Timeout}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    return Summary{
        Redis: c.checkRedis(ctx),
        LLM:   c.checkLLM(ctx),
    }
}

func (c *Checker) checkRedis(ctx context.Context) Status {
    if c.redis == nil {
        return Status{OK: false, Message: "client unavailable"}
    }
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := c.redis.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkLLM(ctx context.Context) Status {
    if c.llm == nil {
        return Status{OK: false, Message: "client unavailable"}
    }
    if c.apiKey() == "" {
        return Status{OK: false, Message: "API key missing"}
    }
    ctx, cancel := context.WithTimeout(ctx, c.timeout)
    defer cancel()
    if err := c.llm.Ping(ctx); err != nil {
        if code := ai.StatusCode(err); code != 0 {
            return Status{OK: false, Message: fmt.Sprintf("HTTP %d", code)}
        }
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    if errors.Is(err, context.DeadlineExceeded) {
        return "timeout"
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}
