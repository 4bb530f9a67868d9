package main

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    redis "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog/log"

    cfgpkg "github.com/local/pdfquiz/internal/config"
    "github.com/local/pdfquiz/internal/history"
    logpkg "github.com/local/pdfquiz/internal/logger"
    "github.com/local/pdfquiz/internal/metrics"
    "github.com/local/pdfquiz/internal/orchestrator"
    "github.com/local/pdfquiz/internal/quiz"
    "github.com/local/pdfquiz/internal/source"
    "github.com/local/pdfquiz/internal/statuscheck"
    "github.com/local/pdfquiz/internal/store"
    "github.com/local/pdfquiz/internal/web"
)

func main() {
    cfg := cfgpkg.FromEnv()

    // Init logging
    _ = logpkg.Init(logpkg.Options{
        Level:        cfg.Logging.Level,
        Pretty:       cfg.Logging.Pretty,
        File:         cfg.Logging.File,
        MaxSizeMB:    cfg.Logging.MaxSizeMB,
        MaxBackups:   cfg.Logging.MaxBackups,
        MaxAgeDays:   cfg.Logging.MaxAgeDays,
        Compress:     cfg.Logging.Compress,
        SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey:  cfg.Axiom.APIKey,
        AxiomOrgID:   cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush:   cfg.Axiom.FlushInterval,
    })
    defer logpkg.Close()
    lg := logpkg.Component("server")

    if err := quiz.ValidateCredential(cfg.LLM.APIKey, cfg.LLM.KeyPrefix); err != nil {
        // jobs will fail with a configuration error until the key is fixed
        lg.Warn().Err(err).Msg("LLM credential not usable")
    }

    metrics.Init()

    // Redis backs both quiz history and job status
    opt, err := redis.ParseURL(cfg.Redis.URL)
    if err != nil {
        lg.Fatal().Err(err).Msg("invalid REDIS_URL")
    }
    rdb := redis.NewClient(opt)
    defer rdb.Close()
    pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
    if err := rdb.Ping(pingCtx).Err(); err != nil {
        lg.Fatal().Err(err).Msg("failed to connect to redis")
    }
    cancelPing()

    hist := history.NewRedis(rdb, cfg.Redis.HistoryKey, history.WithLimit(cfg.Redis.HistoryLimit))
    status := store.NewRedisStatus(rdb, cfg.Redis.StatusTTL)

    c := orchestrator.Build(cfg)
    pipeline := orchestrator.NewPipeline(orchestrator.Dependencies{
        Validator: c.Validator,
        Extractor: c.Extractor,
        Generator: c.Generator,
        History:   hist,
        Status:    status,
    })
    jobs := orchestrator.NewJobs(pipeline, status)

    // API callers may only reference objects in S3; local paths and URLs are CLI-only
    loader := source.NewLoader(source.Options{
        MaxBytes: cfg.Server.MaxUploadBytes,
        Schemes:  []source.Scheme{source.SchemeS3},
        S3: source.S3Options{
            Region:    cfg.S3.Region,
            Endpoint:  cfg.S3.Endpoint,
            AccessKey: cfg.S3.AccessKey,
            SecretKey: cfg.S3.SecretKey,
        },
    })

    checker := statuscheck.New(statuscheck.Options{
        Redis:  statuscheck.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
        LLM:    c.LLM,
        APIKey: cfgpkg.APIKey,
    })

    api := web.New(web.Options{
        Jobs:           jobs,
        Quizzes:        hist,
        Loader:         loader,
        Health:         checker,
        Scorer:         quiz.NewScorer(cfg.Quiz.PassPercent, cfg.Quiz.TimeLimit),
        MaxUploadBytes: cfg.Server.MaxUploadBytes,
        AllowedOrigins: cfg.Server.AllowedOrigins,
    })

    srv := &http.Server{
        Addr:              ":" + cfg.Server.Port,
        Handler:           api.Handler(),
        ReadHeaderTimeout: 10 * time.Second,
    }

    go func() {
        lg.Info().Str("port", cfg.Server.Port).Str("model", cfg.LLM.Model).Msg("HTTP server listening")
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            lg.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    _ = srv.Shutdown(ctx)
    if err := jobs.Shutdown(ctx); err != nil {
        lg.Warn().Err(err).Msg("jobs still running at shutdown")
    }
    log.Info().Msg("shutdown complete")
}
