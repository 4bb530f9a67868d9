package store

import (
    "context"
    "sync"
)

// MemoryStatus keeps job status in process memory. Entries never expire.
type MemoryStatus struct {
    mu sync.RWMutex
    m  map[string]Status
}

func NewMemoryStatus() *MemoryStatus { return &MemoryStatus{m: map[string]Status{}} }

func (s *MemoryStatus) Set(_ context.Context, jobID string, st Status) error {
    s.mu.Lock()
    s.m[jobID] = st
    s.mu.Unlock()
    return nil
}

func (s *MemoryStatus) Get(_ context.Context, jobID string) (Status, bool, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    st, ok := s.m[jobID]
    return st, ok, nil
}
