// Package export turns an assembled business plan into a downloadable
// document: paginated PDF, standalone HTML, plain text, or the HTML
// copy-paste variants standing in for DOCX and PPTX.
package export

import (
	"errors"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
	FormatTXT  Format = "txt"
	FormatDOCX Format = "docx"
	FormatPPTX Format = "pptx"
)

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	switch f {
	case FormatPDF, FormatHTML, FormatTXT, FormatDOCX, FormatPPTX:
		return true
	}
	return false
}

// Options contains the caller's export configuration. SectionIDs restricts
// the export to a subset of the plan's sections; an empty slice is a valid
// request producing a document with zero content sections.
type Options struct {
	Format             Format
	IncludeTitlePage   bool
	IncludeTOC         bool
	IncludePageNumbers bool
	SectionIDs         []string
}

// Document holds the plan metadata needed for export.
type Document struct {
	ID          string
	Title       string
	Description string
	OwnerID     string
}

// Section is one ordered content block of a plan. Content is the authored
// rich HTML; an empty string means the section has no content yet and is
// rendered as an explicit placeholder, never silently omitted.
type Section struct {
	ID      string
	Title   string
	Content string
	Order   int
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrNotFound indicates the referenced plan does not exist.
	ErrNotFound = errors.New("export: plan not found")
	// ErrUnsupportedFormat indicates the requested format is outside the closed set.
	ErrUnsupportedFormat = errors.New("export: unsupported format")
	// ErrRasterization indicates a section's HTML could not be rendered to a bitmap.
	ErrRasterization = errors.New("export: rasterization failed")
	// ErrSerialization indicates the final byte blob could not be produced.
	ErrSerialization = errors.New("export: serialization failed")
)
