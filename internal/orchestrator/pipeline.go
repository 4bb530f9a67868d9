package orchestrator

import (
    "context"
    "errors"
    "time"

    "github.com/local/pdfquiz/internal/filetype"
    "github.com/local/pdfquiz/internal/history"
    "github.com/local/pdfquiz/internal/pdftext"
    "github.com/local/pdfquiz/internal/quiz"
    "github.com/local/pdfquiz/internal/store"
    "github.com/rs/zerolog/log"
)

const (
    StateQueued     = "queued"
    StateProcessing = "processing"
    StateCompleted  = "completed"
    StateFailed     = "failed"
    StateCancelled  = "cancelled"
)

// Progress checkpoints. Extraction fills 5..60, the provider call 60..90.
const (
    progressExtractStart = 5
    progressExtractEnd   = 60
    progressGenerate     = 60
    progressTransform    = 90
    progressDone         = 100
)

type StatusStore interface {
    Set(ctx context.Context, jobID string, st store.Status) error
    Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

type Validator interface {
    Validate(data []byte, name string) (*filetype.FileTypeInfo, error)
}

type Extractor interface {
    Extract(ctx context.Context, data []byte, progress pdftext.ProgressFunc) (*pdftext.ExtractedDocument, error)
}

type Generator interface {
    CheckRequest(s quiz.Settings) error
    Generate(ctx context.Context, text string, s quiz.Settings) ([]quiz.RawQuestion, error)
}

type HistoryStore interface {
    Save(ctx context.Context, e history.Entry) (history.Entry, error)
}

type Dependencies struct {
    Validator Validator
    Extractor Extractor
    Generator Generator
    History   HistoryStore
    // Status is optional; without it progress is only logged.
    Status StatusStore
}

// Input is one uploaded document and the quiz settings requested for it.
type Input struct {
    FileName string
    Data     []byte
    Settings quiz.Settings
}

// Pipeline runs validate, extract, generate, transform and save for one
// document. Any failure ends the run; nothing partial is saved.
type Pipeline struct {
    deps Dependencies
}

func NewPipeline(deps Dependencies) *Pipeline {
    return &Pipeline{deps: deps}
}

// Run processes in under jobID and returns the saved history entry. Errors are
// *quiz.Error except for cancellation, which returns ctx.Err().
func (p *Pipeline) Run(ctx context.Context, jobID string, in Input) (history.Entry, error) {
    t := &tracker{jobID: jobID, status: p.deps.Status, started: time.Now()}
    entry, err := p.run(ctx, t, in)
    switch {
    case err == nil:
        t.done(ctx, entry.ID)
    case ctx.Err() != nil && errors.Is(err, ctx.Err()):
        t.cancelled(ctx)
    default:
        t.failed(ctx, err)
    }
    return entry, err
}

func (p *Pipeline) run(ctx context.Context, t *tracker, in Input) (history.Entry, error) {
    name := quiz.SanitizeFilename(in.FileName)

    info, err := p.deps.Validator.Validate(in.Data, name)
    if err != nil {
        var ve *filetype.ValidationError
        if errors.As(err, &ve) {
            return history.Entry{}, quiz.FileError(ve.Details, err)
        }
        return history.Entry{}, quiz.FileError([]string{err.Error()}, err)
    }
    // credential and settings fail before any OCR call is made
    if err := p.deps.Generator.CheckRequest(in.Settings); err != nil {
        return history.Entry{}, err
    }

    t.update(ctx, progressExtractStart, "Extracting text")
    doc, err := p.deps.Extractor.Extract(ctx, in.Data, func(pct int) {
        t.update(ctx, progressExtractStart+pct*(progressExtractEnd-progressExtractStart)/100, "Extracting text")
    })
    if err != nil {
        return history.Entry{}, extractionError(ctx, err)
    }
    log.Info().
        Str("job_id", t.jobID).
        Int("pages", doc.NumPages).
        Int("ocr_pages", doc.OCRPages()).
        Int("chars", len(doc.Text)).
        Msg("text extracted")

    t.update(ctx, progressGenerate, "Generating quiz")
    raw, err := p.deps.Generator.Generate(ctx, doc.Text, in.Settings)
    if err != nil {
        return history.Entry{}, err
    }

    t.update(ctx, progressTransform, "Preparing quiz")
    questions, err := quiz.Transform(raw)
    if err != nil {
        return history.Entry{}, err
    }

    pages := doc.NumPages
    if pages == 0 && info != nil {
        pages = info.Pages
    }
    saved, err := p.deps.History.Save(ctx, history.Entry{
        Questions:    questions,
        Difficulty:   in.Settings.Difficulty,
        NumQuestions: len(questions),
        FileName:     name,
        FileSize:     int64(len(in.Data)),
        Pages:        pages,
        OCRPages:     doc.OCRPages(),
    })
    if err != nil {
        if ctx.Err() != nil {
            return history.Entry{}, ctx.Err()
        }
        return history.Entry{}, &quiz.Error{Kind: quiz.KindUnknown, Message: "Failed to save quiz", Err: err}
    }
    return saved, nil
}

func extractionError(ctx context.Context, err error) error {
    if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
        return ctx.Err()
    }
    var pe *pdftext.PageProcessingError
    if errors.As(err, &pe) {
        return quiz.PageError(pe.Error(), err)
    }
    if errors.Is(err, pdftext.ErrOpenDocument) {
        return quiz.FileError([]string{"Unable to read PDF file"}, err)
    }
    return &quiz.Error{Kind: quiz.KindUnknown, Message: "Failed to process PDF", Err: err}
}

// tracker writes job status. Writes use a context detached from cancellation
// so the terminal state of a cancelled job is still recorded.
type tracker struct {
    jobID    string
    status   StatusStore
    started  time.Time
    progress int
    stage    string
    wrote    bool
}

func (t *tracker) update(ctx context.Context, progress int, msg string) {
    if t.wrote && (progress < t.progress || progress == t.progress && msg == t.stage) {
        return
    }
    t.wrote = true
    t.progress = progress
    t.stage = msg
    log.Debug().Str("job_id", t.jobID).Int("progress", progress).Str("stage", msg).Msg("job progress")
    t.write(ctx, store.Status{Status: StateProcessing, Progress: progress, Message: msg, Start: &t.started})
}

func (t *tracker) done(ctx context.Context, quizID string) {
    end := time.Now()
    t.progress = progressDone
    log.Info().Str("job_id", t.jobID).Str("quiz_id", quizID).Dur("took", end.Sub(t.started)).Msg("job completed")
    t.write(ctx, store.Status{Status: StateCompleted, Progress: progressDone, Message: "Quiz ready", QuizID: quizID, Start: &t.started, End: &end})
}

func (t *tracker) cancelled(ctx context.Context) {
    end := time.Now()
    log.Info().Str("job_id", t.jobID).Int("progress", t.progress).Msg("job cancelled")
    t.write(ctx, store.Status{Status: StateCancelled, Progress: t.progress, Message: "Job cancelled", Start: &t.started, End: &end})
}

func (t *tracker) failed(ctx context.Context, err error) {
    end := time.Now()
    var qe *quiz.Error
    if !errors.As(err, &qe) {
        qe = &quiz.Error{Kind: quiz.KindUnknown, Message: "Quiz generation failed: " + err.Error(), Err: err}
    }
    log.Error().Err(err).Str("job_id", t.jobID).Str("kind", string(qe.Kind)).Int("progress", t.progress).Msg("job failed")
    t.write(ctx, store.Status{
        Status:     StateFailed,
        Progress:   t.progress,
        Message:    qe.Message,
        ErrorKind:  string(qe.Kind),
        RetryAfter: retryAfterSeconds(qe.RetryAfter),
        Details:    qe.Details,
        Start:      &t.started,
        End:        &end,
    })
}

func (t *tracker) write(ctx context.Context, st store.Status) {
    if t.status == nil || t.jobID == "" {
        return
    }
    if err := t.status.Set(context.WithoutCancel(ctx), t.jobID, st); err != nil {
        log.Warn().Err(err).Str("job_id", t.jobID).Str("status", st.Status).Msg("status write failed")
    }
}

func retryAfterSeconds(d time.Duration) int {
    if d <= 0 {
        return 0
    }
    return int((d + time.Second - 1) / time.Second)
}
