package orchestrator

import (
    "net/http"

    "github.com/local/pdfquiz/internal/ai"
    "github.com/local/pdfquiz/internal/config"
    "github.com/local/pdfquiz/internal/filetype"
    "github.com/local/pdfquiz/internal/limiter"
    "github.com/local/pdfquiz/internal/metrics"
    "github.com/local/pdfquiz/internal/ocr"
    "github.com/local/pdfquiz/internal/pdftext"
    "github.com/local/pdfquiz/internal/quiz"
)

// Components are the configured building blocks shared by the server and the CLI.
type Components struct {
    LLM       *ai.OpenAIClient
    Generator *quiz.Generator
    Extractor *pdftext.Extractor
    Validator *filetype.Detector
}

// Build wires the LLM client, OCR fallback, extractor and generator from cfg.
// One client serves both quiz generation and OCR.
func Build(cfg config.Config) Components {
    llm := ai.NewOpenAIClient(ai.OpenAIOptions{
        BaseURL:    cfg.LLM.BaseURL,
        APIKey:     config.APIKey,
        HTTPClient: &http.Client{},
    })

    rec := ocr.NewVisionRecognizer(llm, ocr.VisionOptions{
        Model:       cfg.OCR.Model,
        JPEGQuality: cfg.OCR.JPEGQuality,
        Timeout:     cfg.OCR.Timeout,
    })

    ext := pdftext.New(pdftext.Options{
        Recognizer:   rec,
        MinTextChars: cfg.OCR.MinTextChars,
        Scale:        cfg.OCR.Scale,
        OnPage:       func(p pdftext.PageResult) { metrics.IncPage(string(p.Method)) },
    })

    gen := quiz.NewGenerator(llm, limiter.New(limiter.Options{
        MaxRequests: cfg.Limiter.MaxRequests,
        Window:      cfg.Limiter.Window,
    }), quiz.GeneratorOptions{
        APIKey:      config.APIKey,
        KeyPrefix:   cfg.LLM.KeyPrefix,
        Model:       cfg.LLM.Model,
        Temperature: &cfg.LLM.Temperature,
        MaxTokens:   cfg.LLM.MaxTokens,
        Timeout:     cfg.LLM.Timeout,
    })

    return Components{
        LLM:       llm,
        Generator: gen,
        Extractor: ext,
        Validator: filetype.New(cfg.Server.MaxUploadBytes),
    }
}
