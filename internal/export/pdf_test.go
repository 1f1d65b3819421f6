package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"
)

type fakeRasterizer struct {
	png   []byte
	err   error
	calls int
}

func (f *fakeRasterizer) Rasterize(ctx context.Context, htmlFragment string, widthPx int) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.png, nil
}

// makePNG builds a solid test bitmap of the given pixel dimensions.
func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

var pdfTestTime = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func assertPDF(t *testing.T, data []byte) {
	t.Helper()
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatal("output is not a PDF")
	}
}

func pageCountMarker(n int) []byte {
	return []byte("/Count " + string(rune('0'+n)))
}

func TestRenderPDFSingleShortSection(t *testing.T) {
	raster := &fakeRasterizer{png: makePNG(t, 773, 300)}
	doc := Document{Title: "Acme Plan"}
	sections := []Section{{ID: "s1", Title: "Summary", Content: "<p>Hi</p>", Order: 1}}

	data, err := renderPDF(context.Background(), doc, sections, Options{Format: FormatPDF}, raster, pdfTestTime)
	if err != nil {
		t.Fatalf("renderPDF() error = %v", err)
	}
	assertPDF(t, data)
	if raster.calls != 1 {
		t.Errorf("rasterizer called %d times, want 1", raster.calls)
	}
	if !bytes.Contains(data, pageCountMarker(1)) {
		t.Error("short section should fit on a single page")
	}
}

func TestRenderPDFTallSectionSpansPages(t *testing.T) {
	// At 1.5x scale the content width is ~773px, so 2400px of image height
	// maps to ~1600pt, well past one A4 content area.
	raster := &fakeRasterizer{png: makePNG(t, 773, 2400)}
	doc := Document{Title: "Acme Plan"}
	sections := []Section{{ID: "s1", Title: "Summary", Content: "<p>long</p>", Order: 1}}

	data, err := renderPDF(context.Background(), doc, sections, Options{Format: FormatPDF}, raster, pdfTestTime)
	if err != nil {
		t.Fatalf("renderPDF() error = %v", err)
	}
	assertPDF(t, data)
	if bytes.Contains(data, pageCountMarker(1)) {
		t.Error("tall section must split across multiple pages")
	}
	if !bytes.Contains(data, pageCountMarker(3)) {
		t.Error("expected the 1600pt image to span three pages")
	}
}

func TestRenderPDFFallbackOnRasterizationError(t *testing.T) {
	raster := &fakeRasterizer{err: errors.New("chrome exploded")}
	doc := Document{Title: "Acme Plan"}
	sections := []Section{{ID: "s1", Title: "Summary", Content: "<p>still visible</p>", Order: 1}}

	data, err := renderPDF(context.Background(), doc, sections, Options{Format: FormatPDF}, raster, pdfTestTime)
	if err != nil {
		t.Fatalf("rasterization failure must not abort the export: %v", err)
	}
	assertPDF(t, data)
	if raster.calls != 1 {
		t.Errorf("rasterizer called %d times, want 1", raster.calls)
	}
}

func TestRenderPDFEmptySectionSkipsRasterization(t *testing.T) {
	raster := &fakeRasterizer{}
	doc := Document{Title: "Acme Plan"}
	sections := []Section{{ID: "s1", Title: "Team", Content: "", Order: 1}}

	data, err := renderPDF(context.Background(), doc, sections, Options{Format: FormatPDF}, raster, pdfTestTime)
	if err != nil {
		t.Fatalf("renderPDF() error = %v", err)
	}
	assertPDF(t, data)
	if raster.calls != 0 {
		t.Error("empty sections must not be rasterized")
	}
}

func TestRenderPDFFrontMatterPages(t *testing.T) {
	raster := &fakeRasterizer{png: makePNG(t, 773, 100)}
	doc := Document{Title: "Acme Plan", Description: "A bakery empire."}
	sections := []Section{
		{ID: "s1", Title: "Summary", Content: "<p>a</p>", Order: 1},
		{ID: "s2", Title: "Team", Content: "", Order: 2},
	}
	opts := Options{
		Format:             FormatPDF,
		IncludeTitlePage:   true,
		IncludeTOC:         true,
		IncludePageNumbers: true,
	}

	data, err := renderPDF(context.Background(), doc, sections, opts, raster, pdfTestTime)
	if err != nil {
		t.Fatalf("renderPDF() error = %v", err)
	}
	assertPDF(t, data)
	// Title page + TOC + one page per section.
	if !bytes.Contains(data, pageCountMarker(4)) {
		t.Error("expected title page, TOC and two section pages")
	}
}

func TestRenderPDFDegenerateRequest(t *testing.T) {
	data, err := renderPDF(context.Background(), Document{Title: "Acme Plan"}, nil, Options{Format: FormatPDF}, &fakeRasterizer{}, pdfTestTime)
	if err != nil {
		t.Fatalf("renderPDF() error = %v", err)
	}
	assertPDF(t, data)
	if !bytes.Contains(data, pageCountMarker(1)) {
		t.Error("zero-stage export should still produce one valid page")
	}
}
