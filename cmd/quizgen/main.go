package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "os"
    "os/signal"
    "syscall"

    cfgpkg "github.com/local/pdfquiz/internal/config"
    "github.com/local/pdfquiz/internal/history"
    logpkg "github.com/local/pdfquiz/internal/logger"
    "github.com/local/pdfquiz/internal/orchestrator"
    "github.com/local/pdfquiz/internal/quiz"
    "github.com/local/pdfquiz/internal/source"
    "github.com/local/pdfquiz/internal/storage"
)

type output struct {
    FileName   string          `json:"fileName"`
    Difficulty quiz.Difficulty `json:"difficulty"`
    Pages      int             `json:"pages"`
    OCRPages   int             `json:"ocrPages"`
    Questions  []quiz.Question `json:"questions"`
}

func main() {
    difficulty := flag.String("difficulty", string(quiz.Medium), "Easy, Medium or Hard")
    n := flag.Int("n", 5, "number of questions (1-20)")
    out := flag.String("out", "", "write the quiz to this path or s3://bucket/key instead of stdout")
    flag.Usage = func() {
        fmt.Fprintf(flag.CommandLine.Output(), "usage: quizgen [flags] <pdf path | url | s3://bucket/key>\n")
        flag.PrintDefaults()
    }
    flag.Parse()
    if flag.NArg() != 1 {
        flag.Usage()
        os.Exit(2)
    }

    cfg := cfgpkg.FromEnv()
    // stdout carries the quiz; logs go to stderr and the log file
    _ = logpkg.Init(logpkg.Options{
        Level:      cfg.Logging.Level,
        Pretty:     true,
        File:       cfg.Logging.File,
        MaxSizeMB:  cfg.Logging.MaxSizeMB,
        MaxBackups: cfg.Logging.MaxBackups,
        MaxAgeDays: cfg.Logging.MaxAgeDays,
        Compress:   cfg.Logging.Compress,
        Console:    os.Stderr,
    })
    defer logpkg.Close()
    lg := logpkg.Component("quizgen")

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    s3opts := source.S3Options{
        Region:    cfg.S3.Region,
        Endpoint:  cfg.S3.Endpoint,
        AccessKey: cfg.S3.AccessKey,
        SecretKey: cfg.S3.SecretKey,
    }
    loader := source.NewLoader(source.Options{MaxBytes: cfg.Server.MaxUploadBytes, S3: s3opts})
    doc, err := loader.Load(ctx, flag.Arg(0))
    if err != nil {
        fail(err)
    }

    d, _ := quiz.ParseDifficulty(*difficulty)
    c := orchestrator.Build(cfg)
    pipeline := orchestrator.NewPipeline(orchestrator.Dependencies{
        Validator: c.Validator,
        Extractor: c.Extractor,
        Generator: c.Generator,
        History:   history.NewMemory(),
    })

    entry, err := pipeline.Run(ctx, "", orchestrator.Input{
        FileName: doc.Name,
        Data:     doc.Data,
        Settings: quiz.Settings{Difficulty: d, NumQuestions: *n},
    })
    if err != nil {
        fail(err)
    }
    lg.Info().Int("questions", len(entry.Questions)).Int("ocr_pages", entry.OCRPages).Msg("quiz ready")

    b, err := json.MarshalIndent(output{
        FileName:   entry.FileName,
        Difficulty: entry.Difficulty,
        Pages:      entry.Pages,
        OCRPages:   entry.OCRPages,
        Questions:  entry.Questions,
    }, "", "  ")
    if err != nil {
        fail(err)
    }
    b = append(b, '\n')
    if *out == "" {
        _, _ = os.Stdout.Write(b)
        return
    }
    if err := storage.NewWriter(s3opts).Write(ctx, *out, b, "application/json"); err != nil {
        fail(err)
    }
    lg.Info().Str("out", *out).Msg("quiz written")
}

func fail(err error) {
    logpkg.Close()
    fmt.Fprintf(os.Stderr, "error (%s): %v\n", quiz.KindOf(err), err)
    os.Exit(1)
}
