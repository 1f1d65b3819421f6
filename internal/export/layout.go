package export

// Page layout arithmetic for the paginated PDF renderer, kept free of any
// PDF backend so the pagination math is testable on its own.

// PageMetrics describes the fixed geometry of one output page. All values
// are in points.
type PageMetrics struct {
	Width  float64
	Height float64
	Margin float64
}

// ContentWidth is the horizontal space between the left and right margins.
func (m PageMetrics) ContentWidth() float64 {
	return m.Width - 2*m.Margin
}

// ContentBottom is the lowest Y position content may reach.
func (m PageMetrics) ContentBottom() float64 {
	return m.Height - m.Margin
}

// Available returns the vertical space left on the page below y.
func (m PageMetrics) Available(y float64) float64 {
	return m.ContentBottom() - y
}

// Cursor tracks the current page (1-based) and the vertical write position
// during a single render pass. One cursor per export call, never shared.
type Cursor struct {
	Page int
	Y    float64
}

// Advance moves the cursor down by h on the current page.
func (c Cursor) Advance(h float64) Cursor {
	return Cursor{Page: c.Page, Y: c.Y + h}
}

// NextPage moves the cursor to the top margin of a fresh page.
func (c Cursor) NextPage(m PageMetrics) Cursor {
	return Cursor{Page: c.Page + 1, Y: m.Margin}
}

// Fits reports whether a chunk of height h can be placed at the cursor
// without crossing the bottom margin.
func (c Cursor) Fits(m PageMetrics, h float64) bool {
	return c.Y+h <= m.ContentBottom()
}

// ImageSlice places one horizontal band of a rasterized section image.
// SrcY/Height address the source image and DestY the page, all in points;
// consecutive slices share boundaries so pages join without gap or overlap.
type ImageSlice struct {
	Page   int
	DestY  float64
	SrcY   float64
	Height float64
}

// PlanImageSlices splits an image of totalHeight points across pages
// starting at cur, filling whatever vertical space remains on the current
// page first and continuing from the top margin of each following page.
// It returns the slice plan and the cursor position after the last slice.
func PlanImageSlices(m PageMetrics, cur Cursor, totalHeight float64) ([]ImageSlice, Cursor) {
	if totalHeight <= 0 {
		return nil, cur
	}

	var slices []ImageSlice
	consumed := 0.0
	for consumed < totalHeight {
		avail := m.Available(cur.Y)
		if avail <= 0 {
			cur = cur.NextPage(m)
			continue
		}
		h := totalHeight - consumed
		if h > avail {
			h = avail
		}
		slices = append(slices, ImageSlice{
			Page:   cur.Page,
			DestY:  cur.Y,
			SrcY:   consumed,
			Height: h,
		})
		consumed += h
		cur = cur.Advance(h)
		if consumed < totalHeight {
			cur = cur.NextPage(m)
		}
	}
	return slices, cur
}
