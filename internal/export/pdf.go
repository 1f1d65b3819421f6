package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Fixed layout parameters, in points unless stated otherwise. A4 pages with
// a uniform margin; section HTML is rasterized at 1.5x the content width
// for resolution.
const (
	pdfMargin       = 40.0
	rasterScale     = 1.5
	titleFontSize   = 24.0
	headingFontSize = 18.0
	bodyFontSize    = 12.0
	titleLineHeight = 30.0
	bodyLineHeight  = 16.0
	headingGap      = 12.0
	tocEntryGap     = 20.0
)

const noContentPDFText = "No content for this section"

// pdfRenderer drives one export pass. The cursor and page counter live for
// a single call to renderPDF and are discarded afterwards.
type pdfRenderer struct {
	f       *gofpdf.Fpdf
	m       PageMetrics
	opts    Options
	raster  Rasterizer
	now     time.Time
	pageNum int
	imgSeq  int
}

// renderPDF produces the multi-page PDF: optional title page, optional
// table of contents, then one content pass per section, each starting on a
// fresh page. Rasterization failures degrade to a plain-text fallback for
// the affected section only; serialization failures abort with no partial
// output.
func renderPDF(ctx context.Context, doc Document, sections []Section, opts Options, raster Rasterizer, now time.Time) ([]byte, error) {
	f := gofpdf.New("P", "pt", "A4", "")
	f.SetAutoPageBreak(false, 0)
	w, h := f.GetPageSize()

	r := &pdfRenderer{
		f:      f,
		m:      PageMetrics{Width: w, Height: h, Margin: pdfMargin},
		opts:   opts,
		raster: raster,
		now:    now,
	}

	if opts.IncludeTitlePage {
		r.renderTitlePage(doc)
	}
	if opts.IncludeTOC {
		r.renderTOC(sections)
	}
	for _, sec := range sections {
		r.addPage()
		r.renderSection(ctx, sec)
	}
	if r.pageNum == 0 {
		// Degenerate request with every stage disabled and no sections
		// still yields a valid single-page document.
		r.addPage()
	}

	if f.Err() {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, f.Error())
	}
	var buf bytes.Buffer
	if err := f.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return buf.Bytes(), nil
}

// addPage starts a fresh page and stamps its number bottom-right when page
// numbers are enabled.
func (r *pdfRenderer) addPage() {
	r.f.AddPage()
	r.pageNum++
	if r.opts.IncludePageNumbers {
		label := "Page " + strconv.Itoa(r.pageNum)
		r.f.SetFont("Helvetica", "", 10)
		r.f.SetTextColor(120, 120, 120)
		lw := r.f.GetStringWidth(label)
		r.f.Text(r.m.Width-r.m.Margin-lw, r.m.Height-r.m.Margin/2, label)
		r.f.SetTextColor(0, 0, 0)
	}
}

func (r *pdfRenderer) renderTitlePage(doc Document) {
	r.addPage()
	f := r.f

	f.SetFont("Helvetica", "B", titleFontSize)
	titleLines := f.SplitText(doc.Title, r.m.ContentWidth())
	y := r.m.Height / 3
	for _, line := range titleLines {
		lw := f.GetStringWidth(line)
		f.Text((r.m.Width-lw)/2, y, line)
		y += titleLineHeight
	}

	if doc.Description != "" {
		// Description sits below the title, offset by the wrapped line count.
		f.SetFont("Helvetica", "", bodyFontSize+2)
		dy := r.m.Height/3 + float64(len(titleLines))*titleLineHeight + 10
		for _, line := range f.SplitText(doc.Description, r.m.ContentWidth()) {
			lw := f.GetStringWidth(line)
			f.Text((r.m.Width-lw)/2, dy, line)
			dy += bodyLineHeight
		}
	}

	f.SetFont("Helvetica", "", 9)
	f.SetTextColor(120, 120, 120)
	f.Text(r.m.Margin, r.m.Height-r.m.Margin/2, "Generated "+r.now.Format("January 2, 2006 15:04"))
	f.SetTextColor(0, 0, 0)
}

func (r *pdfRenderer) renderTOC(sections []Section) {
	r.addPage()
	f := r.f

	f.SetFont("Helvetica", "B", headingFontSize)
	f.Text(r.m.Margin, r.m.Margin+headingFontSize, "Table of Contents")
	y := r.m.Margin + headingFontSize + 2*tocEntryGap

	// Page numbers assume one page for each preceding stage and one page
	// per section, as the product has always done. The numbers drift once
	// the TOC or a section's content spans multiple physical pages.
	contentStart := 2
	if r.opts.IncludeTitlePage {
		contentStart = 3
	}

	f.SetFont("Helvetica", "", bodyFontSize)
	for i, sec := range sections {
		if y > r.m.ContentBottom() {
			r.addPage()
			y = r.m.Margin + tocEntryGap
			f.SetFont("Helvetica", "", bodyFontSize)
		}

		label := strconv.Itoa(i+1) + ". " + sec.Title
		pageLabel := strconv.Itoa(i + contentStart)
		labelW := f.GetStringWidth(label)
		pageW := f.GetStringWidth(pageLabel)

		f.Text(r.m.Margin, y, label)
		f.Text(r.m.Width-r.m.Margin-pageW, y, pageLabel)

		// Dotted leader fills whatever gap remains between the two.
		dotW := f.GetStringWidth(".")
		gap := r.m.ContentWidth() - labelW - pageW - 8
		if dotW > 0 && gap > dotW {
			f.Text(r.m.Margin+labelW+4, y, strings.Repeat(".", int(gap/dotW)))
		}
		y += tocEntryGap
	}
}

func (r *pdfRenderer) renderSection(ctx context.Context, sec Section) {
	f := r.f
	f.SetFont("Helvetica", "B", headingFontSize)
	f.Text(r.m.Margin, r.m.Margin+headingFontSize, sec.Title)
	cur := Cursor{Page: r.pageNum, Y: r.m.Margin + headingFontSize + headingGap}

	if strings.TrimSpace(sec.Content) == "" {
		f.SetFont("Helvetica", "I", bodyFontSize)
		f.SetTextColor(150, 150, 150)
		f.Text(r.m.Margin, cur.Y+bodyLineHeight, noContentPDFText)
		f.SetTextColor(0, 0, 0)
		return
	}

	widthPx := int(math.Round(r.m.ContentWidth() * rasterScale))
	pngData, err := r.raster.Rasterize(ctx, sec.Content, widthPx)
	if err == nil {
		err = r.placeImage(pngData, cur)
		if err == nil {
			return
		}
	}
	log.Printf("export: rasterize section %s failed, falling back to text: %v", sec.ID, err)
	r.renderTextFallback(sec, cur)
}

// placeImage copies horizontal bands of the rasterized section across as
// many pages as the bitmap needs, continuing each page's band exactly where
// the previous one ended.
func (r *pdfRenderer) placeImage(pngData []byte, cur Cursor) error {
	img, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return fmt.Errorf("%w: decode bitmap: %v", ErrRasterization, err)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return fmt.Errorf("%w: empty bitmap", ErrRasterization)
	}

	ptPerPx := r.m.ContentWidth() / float64(bounds.Dx())
	totalPt := float64(bounds.Dy()) * ptPerPx

	slices, _ := PlanImageSlices(r.m, cur, totalPt)
	for _, sl := range slices {
		for sl.Page > r.pageNum {
			r.addPage()
		}

		y0 := int(math.Round(sl.SrcY / ptPerPx))
		y1 := int(math.Round((sl.SrcY + sl.Height) / ptPerPx))
		if y1 > bounds.Dy() {
			y1 = bounds.Dy()
		}
		if y1 <= y0 {
			continue
		}

		crop := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), y1-y0))
		draw.Draw(crop, crop.Bounds(), img, image.Pt(bounds.Min.X, bounds.Min.Y+y0), draw.Src)

		var buf bytes.Buffer
		if err := png.Encode(&buf, crop); err != nil {
			return fmt.Errorf("%w: encode slice: %v", ErrRasterization, err)
		}

		r.imgSeq++
		name := "section-img-" + strconv.Itoa(r.imgSeq)
		imgOpts := gofpdf.ImageOptions{ImageType: "PNG"}
		r.f.RegisterImageOptionsReader(name, imgOpts, &buf)
		r.f.ImageOptions(name, r.m.Margin, sl.DestY, r.m.ContentWidth(), sl.Height, false, imgOpts, 0, "")
	}
	return nil
}

// renderTextFallback places the section's stripped text as wrapped lines.
// Every section must produce visible output even when rich rendering fails.
func (r *pdfRenderer) renderTextFallback(sec Section, cur Cursor) {
	f := r.f
	f.SetFont("Helvetica", "", bodyFontSize)

	text := htmlToPlainText(sec.Content)
	if text == "" {
		text = noContentPDFText
	}
	for _, para := range strings.Split(text, "\n") {
		if strings.TrimSpace(para) == "" {
			cur = cur.Advance(bodyLineHeight / 2)
			continue
		}
		for _, line := range f.SplitText(para, r.m.ContentWidth()) {
			if !cur.Fits(r.m, bodyLineHeight) {
				r.addPage()
				cur = Cursor{Page: r.pageNum, Y: r.m.Margin}
				f.SetFont("Helvetica", "", bodyFontSize)
			}
			cur = cur.Advance(bodyLineHeight)
			f.Text(r.m.Margin, cur.Y, line)
		}
	}
}
