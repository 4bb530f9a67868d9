package pdftext

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/local/pdfquiz/internal/ocr"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMinTextChars is the trimmed length under which a page counts as scanned.
	DefaultMinTextChars = 50
	// DefaultScale renders scanned pages at twice the native 72 DPI.
	DefaultScale = 2.0
	nativeDPI    = 72.0
)

// ErrOpenDocument is returned when the bytes cannot be opened as a PDF.
var ErrOpenDocument = errors.New("failed to open PDF")

// PageProcessingError aborts an extraction; Page is 1-indexed.
type PageProcessingError struct {
	Page int
	Err  error
}

func (e *PageProcessingError) Error() string {
	return fmt.Sprintf("Failed to process page %d", e.Page)
}

func (e *PageProcessingError) Unwrap() error { return e.Err }

// ProgressFunc receives a non-decreasing percentage in [0,100].
type ProgressFunc func(percent int)

type Method string

const (
	MethodText Method = "text"
	MethodOCR  Method = "ocr"
)

// PageResult records how a page's text was obtained.
type PageResult struct {
	Number int           `json:"number"`
	Method Method        `json:"method"`
	Chars  int           `json:"chars"`
	Took   time.Duration `json:"took"`
}

// ExtractedDocument is the outcome of a successful extraction.
type ExtractedDocument struct {
	Text     string       `json:"text"`
	NumPages int          `json:"num_pages"`
	Pages    []PageResult `json:"pages"`
}

// OCRPages returns how many pages went through OCR.
func (d *ExtractedDocument) OCRPages() int {
	n := 0
	for _, p := range d.Pages {
		if p.Method == MethodOCR {
			n++
		}
	}
	return n
}

type Options struct {
	Opener       Opener
	Recognizer   ocr.Recognizer
	MinTextChars int
	Scale        float64
	// OnPage is called after each page completes, in page order.
	OnPage func(PageResult)
}

// Extractor turns a PDF into one text blob, falling back to OCR for pages
// without a usable text layer. Pages are processed sequentially.
type Extractor struct {
	opener     Opener
	recognizer ocr.Recognizer
	minChars   int
	dpi        float64
	onPage     func(PageResult)
}

func New(opts Options) *Extractor {
	if opts.Opener == nil {
		opts.Opener = FitzOpener{}
	}
	if opts.MinTextChars <= 0 {
		opts.MinTextChars = DefaultMinTextChars
	}
	if opts.Scale <= 0 {
		opts.Scale = DefaultScale
	}
	return &Extractor{
		opener:     opts.Opener,
		recognizer: opts.Recognizer,
		minChars:   opts.MinTextChars,
		dpi:        opts.Scale * nativeDPI,
		onPage:     opts.OnPage,
	}
}

// ExtractText is Extract returning only the text.
func (e *Extractor) ExtractText(ctx context.Context, data []byte, progress ProgressFunc) (string, error) {
	doc, err := e.Extract(ctx, data, progress)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

// Extract reads every page in order. Cancellation is honored between pages.
// Any failure after a page has been classified aborts the whole extraction.
func (e *Extractor) Extract(ctx context.Context, data []byte, progress ProgressFunc) (*ExtractedDocument, error) {
	doc, err := e.opener.Open(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenDocument, err)
	}
	defer doc.Close()

	n := doc.NumPage()
	rep := &reporter{fn: progress, last: -1}
	out := &ExtractedDocument{NumPages: n, Pages: make([]PageResult, 0, n)}
	var sb strings.Builder

	start := time.Now()
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep.report(percent(float64(i-1), n))

		res, text, err := e.processPage(ctx, doc, i, n, rep)
		if err != nil {
			log.Error().Err(err).Int("page", i).Int("pages", n).Msg("page extraction failed")
			return nil, &PageProcessingError{Page: i, Err: err}
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
		out.Pages = append(out.Pages, res)
		if e.onPage != nil {
			e.onPage(res)
		}
	}
	rep.report(100)

	out.Text = strings.TrimSpace(sb.String())
	log.Info().
		Int("pages", n).
		Int("ocr_pages", out.OCRPages()).
		Int("chars", len(out.Text)).
		Dur("took", time.Since(start)).
		Msg("text extraction complete")
	return out, nil
}

func (e *Extractor) processPage(ctx context.Context, doc Document, i, n int, rep *reporter) (PageResult, string, error) {
	started := time.Now()
	page, err := doc.Page(i - 1)
	if err != nil {
		return PageResult{}, "", fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	text, scanned := e.textLayer(page, i)
	if !scanned {
		return PageResult{Number: i, Method: MethodText, Chars: utf8.RuneCountInString(text), Took: time.Since(started)}, text, nil
	}

	if e.recognizer == nil {
		return PageResult{}, "", errors.New("page needs OCR but no recognizer is configured")
	}
	ocrText, err := e.recognize(ctx, page, i, n, rep)
	if err != nil {
		return PageResult{}, "", err
	}
	log.Debug().Int("page", i).Int("chars", len(ocrText)).Msg("page recognized via OCR")
	return PageResult{Number: i, Method: MethodOCR, Chars: utf8.RuneCountInString(ocrText), Took: time.Since(started)}, ocrText, nil
}

// textLayer joins the page's fragments with single spaces. A read failure
// classifies the page as scanned instead of failing the document.
func (e *Extractor) textLayer(page Page, i int) (string, bool) {
	frags, err := page.Fragments()
	if err != nil {
		log.Warn().Err(err).Int("page", i).Msg("text layer unreadable, falling back to OCR")
		return "", true
	}
	text := strings.Join(frags, " ")
	if utf8.RuneCountInString(strings.TrimSpace(text)) < e.minChars {
		return "", true
	}
	return text, false
}

// recognize renders the page and runs OCR. The raster does not outlive this call.
func (e *Extractor) recognize(ctx context.Context, page Page, i, n int, rep *reporter) (string, error) {
	img, err := page.Render(e.dpi)
	if err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	text, err := e.recognizer.Recognize(ctx, img, func(p float64) {
		if p < 0 {
			p = 0
		} else if p > 1 {
			p = 1
		}
		rep.report(percent(float64(i-1)+p, n))
	})
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return text, nil
}

func percent(done float64, n int) int {
	if n <= 0 {
		return 100
	}
	return int(math.Round(done / float64(n) * 100))
}

// reporter suppresses duplicate and decreasing values.
type reporter struct {
	fn   ProgressFunc
	last int
}

func (r *reporter) report(p int) {
	if r.fn == nil || p <= r.last {
		return
	}
	r.last = p
	r.fn(p)
}
