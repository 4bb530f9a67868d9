package orchestrator

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/local/pdfquiz/internal/filetype"
    "github.com/local/pdfquiz/internal/history"
    "github.com/local/pdfquiz/internal/pdftext"
    "github.com/local/pdfquiz/internal/quiz"
    "github.com/local/pdfquiz/internal/store"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

type recordingStatus struct {
    mu  sync.Mutex
    log []store.Status
    m   map[string]store.Status
}

func newRecordingStatus() *recordingStatus { return &recordingStatus{m: map[string]store.Status{}} }

func (r *recordingStatus) Set(_ context.Context, id string, st store.Status) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.log = append(r.log, st)
    r.m[id] = st
    return nil
}

func (r *recordingStatus) Get(_ context.Context, id string) (store.Status, bool, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    st, ok := r.m[id]
    return st, ok, nil
}

func (r *recordingStatus) progress() []int {
    r.mu.Lock()
    defer r.mu.Unlock()
    out := make([]int, len(r.log))
    for i, st := range r.log { out[i] = st.Progress }
    return out
}

type fakeValidator struct{ err error }

func (f fakeValidator) Validate(data []byte, name string) (*filetype.FileTypeInfo, error) {
    if f.err != nil { return nil, f.err }
    return &filetype.FileTypeInfo{MIMEType: filetype.PDFMIME, Size: int64(len(data)), Pages: 2, Supported: true}, nil
}

type fakeExtractor struct {
    called bool
    fn     func(ctx context.Context, progress pdftext.ProgressFunc) (*pdftext.ExtractedDocument, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, _ []byte, progress pdftext.ProgressFunc) (*pdftext.ExtractedDocument, error) {
    f.called = true
    return f.fn(ctx, progress)
}

func twoPages(_ context.Context, progress pdftext.ProgressFunc) (*pdftext.ExtractedDocument, error) {
    progress(0)
    progress(50)
    progress(100)
    return &pdftext.ExtractedDocument{
        Text:     "some extracted text",
        NumPages: 2,
        Pages:    []pdftext.PageResult{{Number: 1, Method: pdftext.MethodText}, {Number: 2, Method: pdftext.MethodOCR}},
    }, nil
}

type generatorFunc func(ctx context.Context, text string, s quiz.Settings) ([]quiz.RawQuestion, error)

func (f generatorFunc) Generate(ctx context.Context, text string, s quiz.Settings) ([]quiz.RawQuestion, error) {
    return f(ctx, text, s)
}

func (f generatorFunc) CheckRequest(s quiz.Settings) error { return quiz.ValidateSettings(s) }

func okGenerator(context.Context, string, quiz.Settings) ([]quiz.RawQuestion, error) {
    return []quiz.RawQuestion{{Question: "2+2?", Options: []string{"3", "4", "5", "6"}, Correct: "4"}}, nil
}

var easy1 = quiz.Settings{Difficulty: quiz.Easy, NumQuestions: 1}

func newTestPipeline(ext *fakeExtractor, gen Generator, st StatusStore, val Validator) (*Pipeline, *history.History) {
    h := history.NewMemory()
    if val == nil { val = fakeValidator{} }
    return NewPipeline(Dependencies{Validator: val, Extractor: ext, Generator: gen, History: h, Status: st}), h
}

func TestRun_HappyPath(t *testing.T) {
    st := newRecordingStatus()
    ext := &fakeExtractor{fn: twoPages}
    p, h := newTestPipeline(ext, generatorFunc(okGenerator), st, nil)

    entry, err := p.Run(context.Background(), "job-1", Input{FileName: "My Notes.pdf", Data: []byte("%PDF"), Settings: easy1})
    require.NoError(t, err)
    assert.Equal(t, "My_Notes.pdf", entry.FileName)
    assert.Equal(t, 2, entry.Pages)
    assert.Equal(t, 1, entry.OCRPages)
    require.Len(t, entry.Questions, 1)
    assert.Equal(t, 1, entry.Questions[0].CorrectAnswer)

    saved, err := h.Get(context.Background(), entry.ID)
    require.NoError(t, err)
    assert.Equal(t, entry.ID, saved.ID)

    assert.Equal(t, []int{5, 32, 60, 60, 90, 100}, st.progress())
    final, _, _ := st.Get(context.Background(), "job-1")
    assert.Equal(t, StateCompleted, final.Status)
    assert.Equal(t, entry.ID, final.QuizID)
    assert.NotNil(t, final.End)
}

func TestRun_UploadRejected(t *testing.T) {
    st := newRecordingStatus()
    ext := &fakeExtractor{fn: twoPages}
    p, _ := newTestPipeline(ext, generatorFunc(okGenerator), st, fakeValidator{err: &filetype.ValidationError{Details: []string{"Please select a PDF file"}}})

    _, err := p.Run(context.Background(), "job-2", Input{FileName: "x.txt", Data: []byte("hello"), Settings: easy1})
    require.Error(t, err)
    assert.Equal(t, quiz.KindValidation, quiz.KindOf(err))
    assert.Equal(t, "File Error: Please select a PDF file", err.Error())
    assert.False(t, ext.called)

    final, _, _ := st.Get(context.Background(), "job-2")
    assert.Equal(t, StateFailed, final.Status)
    assert.Equal(t, string(quiz.KindValidation), final.ErrorKind)
    assert.Equal(t, []string{"Please select a PDF file"}, final.Details)
}

func TestRun_InvalidSettingsSkipsExtraction(t *testing.T) {
    ext := &fakeExtractor{fn: twoPages}
    p, _ := newTestPipeline(ext, generatorFunc(okGenerator), nil, nil)

    _, err := p.Run(context.Background(), "", Input{FileName: "a.pdf", Data: []byte("%PDF"), Settings: quiz.Settings{Difficulty: "Expert", NumQuestions: 30}})
    require.Error(t, err)
    assert.Equal(t, quiz.KindValidation, quiz.KindOf(err))
    assert.False(t, ext.called)
}

func TestRun_MissingCredentialSkipsExtraction(t *testing.T) {
    for _, key := range []string{"", "sk-not-groq"} {
        st := newRecordingStatus()
        ext := &fakeExtractor{fn: twoPages}
        gen := quiz.NewGenerator(nil, nil, quiz.GeneratorOptions{
            APIKey:    func() string { return key },
            KeyPrefix: quiz.DefaultKeyPrefix,
        })
        p, h := newTestPipeline(ext, gen, st, nil)

        _, err := p.Run(context.Background(), "job-cfg", Input{FileName: "scan.pdf", Data: []byte("%PDF"), Settings: easy1})
        require.Error(t, err, key)
        assert.Equal(t, quiz.KindConfiguration, quiz.KindOf(err), key)
        assert.False(t, ext.called, key)
        entries, _ := h.List(context.Background(), history.Query{})
        assert.Empty(t, entries)

        last := st.m["job-cfg"]
        assert.Equal(t, StateFailed, last.Status)
        assert.Equal(t, string(quiz.KindConfiguration), last.ErrorKind)
    }
}

func TestRun_PageFailure(t *testing.T) {
    st := newRecordingStatus()
    ext := &fakeExtractor{fn: func(_ context.Context, progress pdftext.ProgressFunc) (*pdftext.ExtractedDocument, error) {
        progress(50)
        return nil, &pdftext.PageProcessingError{Page: 2, Err: errors.New("render failed")}
    }}
    p, _ := newTestPipeline(ext, generatorFunc(okGenerator), st, nil)

    _, err := p.Run(context.Background(), "job-3", Input{FileName: "a.pdf", Data: []byte("%PDF"), Settings: easy1})
    require.Error(t, err)
    assert.Equal(t, quiz.KindPageProcessing, quiz.KindOf(err))
    assert.Equal(t, "Failed to process page 2. Please try again.", err.Error())

    final, _, _ := st.Get(context.Background(), "job-3")
    assert.Equal(t, StateFailed, final.Status)
    assert.Equal(t, 32, final.Progress)
}

func TestRun_RateLimitCarriesRetryAfter(t *testing.T) {
    st := newRecordingStatus()
    gen := generatorFunc(func(context.Context, string, quiz.Settings) ([]quiz.RawQuestion, error) {
        return nil, &quiz.Error{Kind: quiz.KindRateLimitExceeded, Message: "Rate limit exceeded. Please wait 12 seconds before trying again.", RetryAfter: 11500 * time.Millisecond}
    })
    p, _ := newTestPipeline(&fakeExtractor{fn: twoPages}, gen, st, nil)

    _, err := p.Run(context.Background(), "job-4", Input{FileName: "a.pdf", Data: []byte("%PDF"), Settings: easy1})
    require.Error(t, err)

    final, _, _ := st.Get(context.Background(), "job-4")
    assert.Equal(t, StateFailed, final.Status)
    assert.Equal(t, string(quiz.KindRateLimitExceeded), final.ErrorKind)
    assert.Equal(t, 12, final.RetryAfter)
    assert.Equal(t, 60, final.Progress)
}

func TestRun_UnmatchedAnswerSavesNothing(t *testing.T) {
    gen := generatorFunc(func(context.Context, string, quiz.Settings) ([]quiz.RawQuestion, error) {
        return []quiz.RawQuestion{{Question: "q", Options: []string{"a", "b", "c", "d"}, Correct: "e"}}, nil
    })
    p, h := newTestPipeline(&fakeExtractor{fn: twoPages}, gen, nil, nil)

    _, err := p.Run(context.Background(), "", Input{FileName: "a.pdf", Data: []byte("%PDF"), Settings: easy1})
    assert.Equal(t, quiz.KindInvalidQuizContent, quiz.KindOf(err))
    st, _ := h.Stats(context.Background())
    assert.Equal(t, 0, st.Total)
}

func TestJobs_StartCompletes(t *testing.T) {
    st := newRecordingStatus()
    p, _ := newTestPipeline(&fakeExtractor{fn: twoPages}, generatorFunc(okGenerator), st, nil)
    jobs := NewJobs(p, st)

    id, err := jobs.Start(context.Background(), Input{FileName: "a.pdf", Data: []byte("%PDF"), Settings: easy1})
    require.NoError(t, err)
    require.NotEmpty(t, id)

    require.Eventually(t, func() bool {
        s, err := jobs.Status(context.Background(), id)
        return err == nil && s.Status == StateCompleted
    }, 2*time.Second, 10*time.Millisecond)
    require.NoError(t, jobs.Shutdown(context.Background()))
}

func TestJobs_CancelDuringExtraction(t *testing.T) {
    st := newRecordingStatus()
    entered := make(chan struct{})
    ext := &fakeExtractor{fn: func(ctx context.Context, progress pdftext.ProgressFunc) (*pdftext.ExtractedDocument, error) {
        close(entered)
        <-ctx.Done()
        return nil, ctx.Err()
    }}
    p, h := newTestPipeline(ext, generatorFunc(okGenerator), st, nil)
    jobs := NewJobs(p, st)

    id, err := jobs.Start(context.Background(), Input{FileName: "a.pdf", Data: []byte("%PDF"), Settings: easy1})
    require.NoError(t, err)
    <-entered
    require.NoError(t, jobs.Cancel(context.Background(), id))
    require.NoError(t, jobs.Shutdown(context.Background()))

    s, err := jobs.Status(context.Background(), id)
    require.NoError(t, err)
    assert.Equal(t, StateCancelled, s.Status)
    stats, _ := h.Stats(context.Background())
    assert.Equal(t, 0, stats.Total)
}

func TestJobs_UnknownJob(t *testing.T) {
    st := newRecordingStatus()
    p, _ := newTestPipeline(&fakeExtractor{fn: twoPages}, generatorFunc(okGenerator), st, nil)
    jobs := NewJobs(p, st)

    assert.ErrorIs(t, jobs.Cancel(context.Background(), "nope"), ErrJobNotFound)
    _, err := jobs.Status(context.Background(), "nope")
    assert.ErrorIs(t, err, ErrJobNotFound)
}
