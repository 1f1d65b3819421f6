package export

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// Store supplies plan metadata and section content for export.
type Store interface {
	GetPlan(ctx context.Context, planID string) (Document, error)
	ListSections(ctx context.Context, planID string, sectionIDs []string) ([]Section, error)
}

// ActivityLogger appends one audit entry after a successful export.
// Logging is best-effort: a failure never affects the export result.
type ActivityLogger interface {
	LogActivity(ctx context.Context, ownerID, planID, action, description string) error
}

// Service assembles a plan's content and routes it to exactly one renderer
// per export call.
type Service struct {
	store    Store
	raster   Rasterizer
	activity ActivityLogger
	now      func() time.Time
}

// NewService creates the export service. activity may be nil to disable
// audit logging.
func NewService(store Store, raster Rasterizer, activity ActivityLogger) *Service {
	return &Service{store: store, raster: raster, activity: activity, now: time.Now}
}

// Export produces the requested document. The format is validated before
// any data is fetched; an unresolved plan id aborts the whole export. The
// selected sections are handed to every renderer in ascending order, ties
// keeping retrieval order.
func (s *Service) Export(ctx context.Context, planID string, opts Options) (*Result, error) {
	if !opts.Format.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}

	doc, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	sections, err := s.store.ListSections(ctx, planID, opts.SectionIDs)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })

	now := s.now()
	var data []byte
	switch opts.Format {
	case FormatPDF:
		data, err = renderPDF(ctx, doc, sections, opts, s.raster, now)
	case FormatHTML, FormatDOCX, FormatPPTX:
		data, err = renderHTML(doc, sections, opts, now)
	case FormatTXT:
		data = renderText(doc, sections, opts)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{
		Data:     data,
		Filename: buildFilename(doc.Title, opts.Format, now),
		MimeType: mimeTypeFor(opts.Format),
	}

	if s.activity != nil {
		description := fmt.Sprintf("Exported %q as %s", doc.Title, strings.ToUpper(string(opts.Format)))
		if logErr := s.activity.LogActivity(ctx, doc.OwnerID, doc.ID, "export", description); logErr != nil {
			log.Printf("export: activity log failed for plan %s: %v", planID, logErr)
		}
	}

	return result, nil
}

// buildFilename derives "{slug}_{date}.{ext}". DOCX and PPTX exports are
// HTML documents and keep the .html extension.
func buildFilename(title string, format Format, now time.Time) string {
	ext := string(format)
	switch format {
	case FormatDOCX, FormatPPTX:
		ext = "html"
	}
	return slugify(title) + "_" + now.Format("2006-01-02") + "." + ext
}

func mimeTypeFor(format Format) string {
	switch format {
	case FormatPDF:
		return "application/pdf"
	case FormatTXT:
		return "text/plain; charset=utf-8"
	default:
		return "text/html; charset=utf-8"
	}
}
