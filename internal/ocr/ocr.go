package ocr

import (
    "context"
    "fmt"
    "image"
    "strings"
    "time"

    "github.com/local/pdfquiz/internal/ai"
    "github.com/local/pdfquiz/internal/imagerender"
    "github.com/rs/zerolog/log"
)

// Recognizer turns a page raster into text. progress, when non-nil, receives
// fractions in [0,1] in non-decreasing order.
type Recognizer interface {
    Recognize(ctx context.Context, img image.Image, progress func(float64)) (string, error)
}

// RecognizerFunc adapts a plain function to Recognizer.
type RecognizerFunc func(ctx context.Context, img image.Image, progress func(float64)) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, img image.Image, progress func(float64)) (string, error) {
    return f(ctx, img, progress)
}

const systemPrompt = `You are an OCR engine. Transcribe all text visible in the scanned page image.
The text is in %s. Preserve reading order and paragraph breaks.
Return only the transcribed text, with no commentary, headings or markdown.
If the page contains no readable text, return an empty response.`

// VisionRecognizer runs OCR through a vision-capable chat model.
type VisionRecognizer struct {
    client   ai.Client
    model    string
    language string
    quality  int
    timeout  time.Duration
}

type VisionOptions struct {
    Model       string
    Language    string // defaults to English
    JPEGQuality int
    Timeout     time.Duration
}

func NewVisionRecognizer(client ai.Client, opts VisionOptions) *VisionRecognizer {
    if opts.Language == "" { opts.Language = "English" }
    if opts.JPEGQuality <= 0 { opts.JPEGQuality = imagerender.DefaultQuality }
    return &VisionRecognizer{
        client:   client,
        model:    opts.Model,
        language: opts.Language,
        quality:  opts.JPEGQuality,
        timeout:  opts.Timeout,
    }
}

func (r *VisionRecognizer) Recognize(ctx context.Context, img image.Image, progress func(float64)) (string, error) {
    report := func(p float64) {
        if progress != nil { progress(p) }
    }
    report(0)

    jpegBytes, w, h, err := imagerender.EncodeJPEG(img, r.quality, imagerender.ColorGray)
    if err != nil {
        return "", fmt.Errorf("encode page image: %w", err)
    }
    report(0.2)

    start := time.Now()
    resp, err := r.client.Do(ctx, ai.Request{
        Model:        r.model,
        SystemPrompt: fmt.Sprintf(systemPrompt, r.language),
        Prompt:       "Transcribe this page.",
        Temperature:  0,
        MaxTokens:    4096,
        Timeout:      r.timeout,
        ImageBase64:  imagerender.EncodeToBase64(jpegBytes),
        ImageMIME:    "image/jpeg",
    })
    if err != nil {
        // a blank scan is not a failure
        if ai.IsNoContent(err) {
            report(1)
            return "", nil
        }
        return "", fmt.Errorf("%s vision request: %w", r.client.Name(), err)
    }
    report(1)

    text := strings.TrimSpace(resp.Text)
    log.Debug().
        Int("width", w).
        Int("height", h).
        Int("chars", len(text)).
        Dur("took", time.Since(start)).
        Msg("ocr page recognized")
    return text, nil
}
