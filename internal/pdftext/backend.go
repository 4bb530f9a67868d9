package pdftext

import (
	"image"
	"strings"

	fitz "github.com/gen2brain/go-fitz"
)

// Document abstracts an opened PDF.
type Document interface {
	NumPage() int
	Page(i int) (Page, error)
	Close() error
}

// Page abstracts a single PDF page: its text layer and a raster render.
type Page interface {
	// Fragments returns the text items of the page's text layer in reading order.
	Fragments() ([]string, error)
	// Render rasterizes the page at the given DPI.
	Render(dpi float64) (image.Image, error)
	Close()
}

// Opener abstracts opening in-memory PDF bytes into a Document.
type Opener interface {
	Open(data []byte) (Document, error)
}

// FitzOpener implements Opener using github.com/gen2brain/go-fitz (MuPDF).
type FitzOpener struct{}

func (FitzOpener) Open(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return fitzDoc{doc}, nil
}

// --- Adapters ---

type fitzDoc struct{ *fitz.Document }

func (d fitzDoc) Page(i int) (Page, error) {
	if i < 0 || i >= d.Document.NumPage() {
		return nil, fitz.ErrPageMissing
	}
	return &fitzPage{doc: d.Document, idx: i}, nil
}

type fitzPage struct {
	doc *fitz.Document
	idx int
}

// Fragments splits MuPDF's plain-text output into trimmed non-empty lines.
func (p *fitzPage) Fragments() ([]string, error) {
	text, err := p.doc.Text(p.idx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

func (p *fitzPage) Render(dpi float64) (image.Image, error) {
	return p.doc.ImageDPI(p.idx, dpi)
}

func (p *fitzPage) Close() {}
