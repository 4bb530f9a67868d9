package history

import "context"

// NewMemory returns a process-local history, used by the CLI and tests.
func NewMemory(opts ...Option) *History {
    return newHistory(&memoryBackend{}, opts...)
}

type memoryBackend struct{ entries []Entry }

func (m *memoryBackend) load(context.Context) ([]Entry, error) {
    out := make([]Entry, len(m.entries))
    copy(out, m.entries)
    return out, nil
}

func (m *memoryBackend) store(_ context.Context, entries []Entry) error {
    m.entries = append([]Entry(nil), entries...)
    return nil
}

func (m *memoryBackend) clear(context.Context) error {
    m.entries = nil
    return nil
}
