package filetype

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

const (
	PDFMIME        = "application/pdf"
	DefaultMaxSize = 50 << 20
)

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	Size        int64
	Pages       int // 0 when the page count could not be read
	Supported   bool
	Description string
}

// ValidationError lists every reason an upload was refused.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "invalid upload: " + strings.Join(e.Details, ", ")
}

// Detector handles upload checks using magic bytes
type Detector struct {
	maxSize int64
}

// New creates a detector; maxSize <= 0 means the 50 MB default.
func New(maxSize int64) *Detector {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Detector{maxSize: maxSize}
}

func (d *Detector) MaxSize() int64 { return d.maxSize }

// Detect detects the actual file type using magic bytes, not the file name.
func (d *Detector) Detect(data []byte) *FileTypeInfo {
	mtype := mimetype.Detect(data)
	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
		Size:      int64(len(data)),
	}
	if mtype.Is(PDFMIME) {
		info.Supported = true
		info.Description = "PDF document"
	} else {
		info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
	}
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Int64("size", info.Size).Msg("detected file type")
	return info
}

// Validate accepts only non-empty PDFs within the size limit. The page count
// is informational: pdfcpu is stricter than MuPDF, so a parse failure there
// only logs a warning.
func (d *Detector) Validate(data []byte, name string) (*FileTypeInfo, error) {
	if len(data) == 0 {
		return nil, &ValidationError{Details: []string{"File appears to be empty"}}
	}

	info := d.Detect(data)
	var details []string
	if !info.Supported {
		details = append(details, "Please select a PDF file")
	}
	if info.Size > d.maxSize {
		details = append(details, fmt.Sprintf("File size must be less than %dMB", d.maxSize>>20))
	}
	if len(details) > 0 {
		log.Warn().Str("file", name).Str("mime", info.MIMEType).Int64("size", info.Size).Strs("problems", details).Msg("upload rejected")
		return nil, &ValidationError{Details: details}
	}

	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		log.Warn().Err(err).Str("file", name).Msg("pdf page count failed")
	} else {
		info.Pages = n
	}
	return info, nil
}
