package orchestrator

import (
    "context"
    "errors"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/local/pdfquiz/internal/metrics"
    "github.com/local/pdfquiz/internal/quiz"
    "github.com/local/pdfquiz/internal/store"
    "github.com/rs/zerolog/log"
)

var ErrJobNotFound = errors.New("job not found")

// Jobs runs pipelines in the background, one goroutine per job.
type Jobs struct {
    pipeline *Pipeline
    status   StatusStore
    newID    func() string

    mu      sync.Mutex
    running map[string]context.CancelFunc
    wg      sync.WaitGroup
}

// NewJobs requires the pipeline to have been built with the same status store.
func NewJobs(p *Pipeline, status StatusStore) *Jobs {
    return &Jobs{pipeline: p, status: status, newID: uuid.NewString, running: map[string]context.CancelFunc{}}
}

// Start records the job as queued and runs it detached from ctx, which only
// bounds the initial status write.
func (j *Jobs) Start(ctx context.Context, in Input) (string, error) {
    jobID := j.newID()
    now := time.Now()
    if err := j.status.Set(ctx, jobID, store.Status{Status: StateQueued, Message: "Queued", Start: &now}); err != nil {
        return "", err
    }

    runCtx, cancel := context.WithCancel(context.Background())
    j.mu.Lock()
    j.running[jobID] = cancel
    j.mu.Unlock()

    log.Info().
        Str("job_id", jobID).
        Str("file", in.FileName).
        Int("bytes", len(in.Data)).
        Str("difficulty", string(in.Settings.Difficulty)).
        Int("num_questions", in.Settings.NumQuestions).
        Msg("job created")

    j.wg.Add(1)
    go j.run(runCtx, cancel, jobID, in)
    return jobID, nil
}

func (j *Jobs) run(ctx context.Context, cancel context.CancelFunc, jobID string, in Input) {
    defer j.wg.Done()
    defer func() {
        j.mu.Lock()
        delete(j.running, jobID)
        j.mu.Unlock()
        cancel()
    }()

    metrics.JobStarted()
    defer metrics.JobFinished()

    _, err := j.pipeline.Run(ctx, jobID, in)
    metrics.IncJob(jobResult(ctx, err))
}

// Cancel stops a running job. Extraction notices between pages; an in-flight
// provider call is aborted.
func (j *Jobs) Cancel(ctx context.Context, jobID string) error {
    j.mu.Lock()
    cancel, ok := j.running[jobID]
    j.mu.Unlock()
    if ok {
        cancel()
        return nil
    }
    if _, found, err := j.status.Get(ctx, jobID); err != nil {
        return err
    } else if !found {
        return ErrJobNotFound
    }
    // already finished; nothing to stop
    return nil
}

func (j *Jobs) Status(ctx context.Context, jobID string) (store.Status, error) {
    st, ok, err := j.status.Get(ctx, jobID)
    if err != nil {
        return store.Status{}, err
    }
    if !ok {
        return store.Status{}, ErrJobNotFound
    }
    return st, nil
}

// Shutdown cancels every running job and waits for them to record their state.
func (j *Jobs) Shutdown(ctx context.Context) error {
    j.mu.Lock()
    for _, cancel := range j.running {
        cancel()
    }
    j.mu.Unlock()

    done := make(chan struct{})
    go func() { j.wg.Wait(); close(done) }()
    select {
    case <-done:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

func jobResult(ctx context.Context, err error) string {
    switch {
    case err == nil:
        return "success"
    case ctx.Err() != nil:
        return StateCancelled
    default:
        return string(quiz.KindOf(err))
    }
}
