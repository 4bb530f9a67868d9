package limiter

import (
    "sync"
    "time"
)

const (
    DefaultMaxRequests = 5
    DefaultWindow      = 60 * time.Second
)

// SlidingWindow admits at most maxRequests within any trailing window.
// It holds the timestamps of accepted requests, oldest first, and prunes
// them on every CanMakeRequest call.
type SlidingWindow struct {
    maxRequests int
    window      time.Duration
    now         func() time.Time

    mu       sync.Mutex
    requests []time.Time
}

type Options struct {
    MaxRequests int
    Window      time.Duration
    Now         func() time.Time
}

func New(opts Options) *SlidingWindow {
    if opts.MaxRequests <= 0 { opts.MaxRequests = DefaultMaxRequests }
    if opts.Window <= 0 { opts.Window = DefaultWindow }
    if opts.Now == nil { opts.Now = time.Now }
    return &SlidingWindow{maxRequests: opts.MaxRequests, window: opts.Window, now: opts.Now}
}

// CanMakeRequest prunes expired timestamps and reports whether another request fits.
func (s *SlidingWindow) CanMakeRequest() bool {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.pruneLocked(s.now())
    return len(s.requests) < s.maxRequests
}

// RecordRequest registers a request issued now. Call it once per request
// actually sent, after CanMakeRequest returned true.
func (s *SlidingWindow) RecordRequest() {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.requests = append(s.requests, s.now())
}

// TimeUntilReset returns how long until the oldest recorded request leaves the window.
func (s *SlidingWindow) TimeUntilReset() time.Duration {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.timeUntilResetLocked(s.now())
}

// Allow is CanMakeRequest and RecordRequest under a single lock, for callers
// that share one window across goroutines. When the window is full it returns
// the wait time and false without recording anything.
func (s *SlidingWindow) Allow() (time.Duration, bool) {
    s.mu.Lock()
    defer s.mu.Unlock()
    now := s.now()
    s.pruneLocked(now)
    if len(s.requests) >= s.maxRequests {
        return s.timeUntilResetLocked(now), false
    }
    s.requests = append(s.requests, now)
    return 0, true
}

// Pending returns the number of timestamps currently held, without pruning.
func (s *SlidingWindow) Pending() int {
    s.mu.Lock()
    defer s.mu.Unlock()
    return len(s.requests)
}

func (s *SlidingWindow) pruneLocked(now time.Time) {
    i := 0
    for i < len(s.requests) && now.Sub(s.requests[i]) >= s.window {
        i++
    }
    if i > 0 {
        s.requests = append(s.requests[:0], s.requests[i:]...)
    }
}

func (s *SlidingWindow) timeUntilResetLocked(now time.Time) time.Duration {
    if len(s.requests) == 0 { return 0 }
    d := s.window - now.Sub(s.requests[0])
    if d < 0 { return 0 }
    return d
}
