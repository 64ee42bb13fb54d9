// Package export renders decision records as PDF and DOCX reports.
package export

import "errors"

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request contains parameters for an export operation. Version -1
// exports the latest analysis; otherwise it indexes the record's
// version timeline.
type Request struct {
	RecordID string
	Version  int
	Format   Format
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrVersionOutOfRange indicates the requested version does not exist on the record.
	ErrVersionOutOfRange = errors.New("export version out of range")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
