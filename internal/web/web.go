package web

import (
    "context"
    "encoding/json"
    "net/http"
    "time"

    "github.com/gorilla/mux"
    "github.com/local/pdfquiz/internal/history"
    "github.com/local/pdfquiz/internal/metrics"
    "github.com/local/pdfquiz/internal/orchestrator"
    "github.com/local/pdfquiz/internal/quiz"
    "github.com/local/pdfquiz/internal/source"
    "github.com/local/pdfquiz/internal/statuscheck"
    "github.com/local/pdfquiz/internal/store"
    "github.com/rs/cors"
)

type JobRunner interface {
    Start(ctx context.Context, in orchestrator.Input) (string, error)
    Cancel(ctx context.Context, jobID string) error
    Status(ctx context.Context, jobID string) (store.Status, error)
}

type QuizStore interface {
    Get(ctx context.Context, id string) (history.Entry, error)
    List(ctx context.Context, q history.Query) ([]history.Entry, error)
    Stats(ctx context.Context) (history.Stats, error)
    Start(ctx context.Context, id string) (history.Entry, error)
    Complete(ctx context.Context, id string, answers []*int, r quiz.Result) (history.Entry, error)
    Delete(ctx context.Context, id string) error
    Clear(ctx context.Context) error
}

// DocumentLoader reads file_ref documents. Allows is checked before Load so
// rejected references never touch the filesystem or network.
type DocumentLoader interface {
    Allows(ref string) error
    Load(ctx context.Context, ref string) (*source.Document, error)
}

type HealthChecker interface {
    Summary(ctx context.Context) statuscheck.Summary
}

type Options struct {
    Jobs    JobRunner
    Quizzes QuizStore
    // Loader resolves file_ref submissions; nil disables them.
    Loader         DocumentLoader
    Health         HealthChecker
    Scorer         quiz.Scorer
    MaxUploadBytes int64
    AllowedOrigins []string
    Now            func() time.Time
}

// Web serves the quiz API.
type Web struct {
    jobs      JobRunner
    quizzes   QuizStore
    loader    DocumentLoader
    health    HealthChecker
    scorer    quiz.Scorer
    maxUpload int64
    origins   []string
    now       func() time.Time
}

func New(opts Options) *Web {
    if opts.MaxUploadBytes <= 0 {
        opts.MaxUploadBytes = 50 << 20
    }
    if opts.Now == nil {
        opts.Now = time.Now
    }
    return &Web{
        jobs:      opts.Jobs,
        quizzes:   opts.Quizzes,
        loader:    opts.Loader,
        health:    opts.Health,
        scorer:    opts.Scorer,
        maxUpload: opts.MaxUploadBytes,
        origins:   opts.AllowedOrigins,
        now:       opts.Now,
    }
}

// Handler returns the router wrapped in CORS.
func (w *Web) Handler() http.Handler {
    router := mux.NewRouter()

    router.HandleFunc("/health", func(wr http.ResponseWriter, r *http.Request) {
        writeJSON(wr, http.StatusOK, map[string]string{"status": "ok", "service": "pdfquiz"})
    }).Methods(http.MethodGet)
    router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

    api := router.PathPrefix("/api").Subrouter()
    api.HandleFunc("/status", w.handleStatus).Methods(http.MethodGet)

    api.HandleFunc("/jobs/{id}", w.handleJobStatus).Methods(http.MethodGet)
    api.HandleFunc("/jobs/{id}", w.handleJobCancel).Methods(http.MethodDelete)

    api.HandleFunc("/quizzes", w.handleCreate).Methods(http.MethodPost)
    api.HandleFunc("/quizzes", w.handleList).Methods(http.MethodGet)
    api.HandleFunc("/quizzes", w.handleClear).Methods(http.MethodDelete)
    api.HandleFunc("/quizzes/stats", w.handleStats).Methods(http.MethodGet)
    api.HandleFunc("/quizzes/{id}", w.handleGet).Methods(http.MethodGet)
    api.HandleFunc("/quizzes/{id}", w.handleDelete).Methods(http.MethodDelete)
    api.HandleFunc("/quizzes/{id}/start", w.handleStart).Methods(http.MethodPost)
    api.HandleFunc("/quizzes/{id}/submit", w.handleSubmit).Methods(http.MethodPost)

    c := cors.New(cors.Options{
        AllowedOrigins: w.origins,
        AllowedMethods: []string{
            http.MethodGet,
            http.MethodPost,
            http.MethodDelete,
            http.MethodOptions,
        },
        AllowedHeaders: []string{"Accept", "Content-Type"},
        ExposedHeaders: []string{"Retry-After"},
        MaxAge:         300,
    })
    return c.Handler(router)
}

func writeJSON(wr http.ResponseWriter, status int, v any) {
    wr.Header().Set("Content-Type", "application/json")
    wr.WriteHeader(status)
    _ = json.NewEncoder(wr).Encode(v)
}
