package history

import (
    "context"
    "errors"
    "math"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/local/pdfquiz/internal/quiz"
)

const DefaultLimit = 50

var ErrNotFound = errors.New("quiz not found")

// Entry is one generated quiz and, once taken, its outcome.
type Entry struct {
    ID           string          `json:"id"`
    Questions    []quiz.Question `json:"questions"`
    Difficulty   quiz.Difficulty `json:"difficulty"`
    NumQuestions int             `json:"numQuestions"`
    FileName     string          `json:"fileName"`
    FileSize     int64           `json:"fileSize"`
    Pages        int             `json:"pages,omitempty"`
    OCRPages     int             `json:"ocrPages,omitempty"`
    CreatedAt    time.Time       `json:"createdAt"`
    Completed    bool            `json:"completed"`
    Score        *int            `json:"score"`
    Answers      []*int          `json:"answers"`
    StartedAt    *time.Time      `json:"startedAt,omitempty"`
    CompletedAt  *time.Time      `json:"completedAt,omitempty"`
    TimedOut     bool            `json:"timedOut,omitempty"`
}

type Filter string

const (
    FilterAll       Filter = "all"
    FilterCompleted Filter = "completed"
)

type SortBy string

const (
    SortDate  SortBy = "date"
    SortScore SortBy = "score"
    SortName  SortBy = "name"
)

// Query narrows and orders List results. Zero value lists everything newest first.
type Query struct {
    Filter Filter
    Search string
    Sort   SortBy
}

type Stats struct {
    Total        int `json:"total"`
    Completed    int `json:"completed"`
    AverageScore int `json:"averageScore"`
}

// backend persists the whole history as one ordered slice, newest first.
type backend interface {
    load(ctx context.Context) ([]Entry, error)
    store(ctx context.Context, entries []Entry) error
    clear(ctx context.Context) error
}

// History is a capped, newest-first quiz history. Every mutation is a
// read-modify-write of the whole list under one process-wide lock.
type History struct {
    mu    sync.Mutex
    b     backend
    limit int
    now   func() time.Time
    newID func() string
}

type Option func(*History)

// WithLimit caps how many entries are kept; older entries are evicted first.
func WithLimit(n int) Option {
    return func(h *History) {
        if n > 0 {
            h.limit = n
        }
    }
}

func WithClock(now func() time.Time) Option { return func(h *History) { h.now = now } }
func WithIDs(gen func() string) Option      { return func(h *History) { h.newID = gen } }

func newHistory(b backend, opts ...Option) *History {
    h := &History{b: b, limit: DefaultLimit, now: time.Now, newID: uuid.NewString}
    for _, o := range opts { o(h) }
    return h
}

// Save stores e as the newest entry, assigning ID and CreatedAt, and drops
// the oldest entries beyond the limit.
func (h *History) Save(ctx context.Context, e Entry) (Entry, error) {
    h.mu.Lock()
    defer h.mu.Unlock()

    entries, err := h.b.load(ctx)
    if err != nil { return Entry{}, err }

    e.ID = h.newID()
    e.CreatedAt = h.now().UTC()
    e.Completed = false
    e.Score = nil
    e.Answers = nil
    e.StartedAt = nil
    e.CompletedAt = nil
    e.TimedOut = false

    entries = append([]Entry{e}, entries...)
    if len(entries) > h.limit { entries = entries[:h.limit] }
    if err := h.b.store(ctx, entries); err != nil { return Entry{}, err }
    return e, nil
}

func (h *History) Get(ctx context.Context, id string) (Entry, error) {
    h.mu.Lock()
    defer h.mu.Unlock()
    entries, err := h.b.load(ctx)
    if err != nil { return Entry{}, err }
    if i := indexOf(entries, id); i >= 0 { return entries[i], nil }
    return Entry{}, ErrNotFound
}

func (h *History) List(ctx context.Context, q Query) ([]Entry, error) {
    h.mu.Lock()
    entries, err := h.b.load(ctx)
    h.mu.Unlock()
    if err != nil { return nil, err }

    search := strings.ToLower(strings.TrimSpace(q.Search))
    out := make([]Entry, 0, len(entries))
    for _, e := range entries {
        if q.Filter == FilterCompleted && !e.Completed { continue }
        if search != "" && !strings.Contains(strings.ToLower(e.FileName), search) { continue }
        out = append(out, e)
    }

    switch q.Sort {
    case SortScore:
        sort.SliceStable(out, func(i, j int) bool { return scoreOf(out[i]) > scoreOf(out[j]) })
    case SortName:
        sort.SliceStable(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
    default:
        sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
    }
    return out, nil
}

func (h *History) Delete(ctx context.Context, id string) error {
    h.mu.Lock()
    defer h.mu.Unlock()
    entries, err := h.b.load(ctx)
    if err != nil { return err }
    i := indexOf(entries, id)
    if i < 0 { return ErrNotFound }
    entries = append(entries[:i], entries[i+1:]...)
    return h.b.store(ctx, entries)
}

func (h *History) Clear(ctx context.Context) error {
    h.mu.Lock()
    defer h.mu.Unlock()
    return h.b.clear(ctx)
}

// Start records when an attempt began. Starting again resets the clock;
// a previous result stays until the next Complete.
func (h *History) Start(ctx context.Context, id string) (Entry, error) {
    return h.update(ctx, id, func(e *Entry) {
        at := h.now().UTC()
        e.StartedAt = &at
    })
}

// Complete records a graded attempt.
func (h *History) Complete(ctx context.Context, id string, answers []*int, r quiz.Result) (Entry, error) {
    return h.update(ctx, id, func(e *Entry) {
        at := h.now().UTC()
        score := r.Percentage
        e.Completed = true
        e.Score = &score
        e.Answers = answers
        e.CompletedAt = &at
        e.TimedOut = r.TimedOut
    })
}

func (h *History) update(ctx context.Context, id string, fn func(*Entry)) (Entry, error) {
    h.mu.Lock()
    defer h.mu.Unlock()
    entries, err := h.b.load(ctx)
    if err != nil { return Entry{}, err }
    i := indexOf(entries, id)
    if i < 0 { return Entry{}, ErrNotFound }
    fn(&entries[i])
    if err := h.b.store(ctx, entries); err != nil { return Entry{}, err }
    return entries[i], nil
}

// Stats averages the scores of completed quizzes, rounded to a whole percent.
func (h *History) Stats(ctx context.Context) (Stats, error) {
    h.mu.Lock()
    entries, err := h.b.load(ctx)
    h.mu.Unlock()
    if err != nil { return Stats{}, err }

    st := Stats{Total: len(entries)}
    sum := 0
    for _, e := range entries {
        if !e.Completed { continue }
        st.Completed++
        sum += scoreOf(e)
    }
    if st.Completed > 0 {
        st.AverageScore = int(math.Round(float64(sum) / float64(st.Completed)))
    }
    return st, nil
}

func indexOf(entries []Entry, id string) int {
    for i := range entries {
        if entries[i].ID == id { return i }
    }
    return -1
}

func scoreOf(e Entry) int {
    if e.Score == nil { return 0 }
    return *e.Score
}
