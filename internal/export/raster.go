package export

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Rasterizer renders an HTML fragment into a PNG bitmap of the given pixel
// width. Implementations may fail for any reason; the PDF renderer treats
// that as a per-section condition and falls back to plain text.
type Rasterizer interface {
	Rasterize(ctx context.Context, htmlFragment string, widthPx int) ([]byte, error)
}

// ChromeRasterizer rasterizes HTML with headless Chrome. Each call spins up
// its own allocator and tab and tears both down when done, so no rendering
// state leaks between sections.
type ChromeRasterizer struct {
	Timeout time.Duration
}

// NewChromeRasterizer returns a rasterizer with a 30s per-section timeout.
func NewChromeRasterizer() *ChromeRasterizer {
	return &ChromeRasterizer{Timeout: 30 * time.Second}
}

// percentEncodeForDataURL encodes a string for use in a data URL
// Unlike url.QueryEscape, this properly encodes spaces as %20 for data URLs
func percentEncodeForDataURL(s string) string {
	var result strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == '~':
			// Unreserved characters per RFC 3986
			result.WriteRune(r)
		case r == ' ':
			// Space must be encoded as %20 in data URLs, not +
			result.WriteString("%20")
		default:
			for _, b := range string(r) {
				result.WriteString(fmt.Sprintf("%%%02X", b))
			}
		}
	}
	return result.String()
}

// wrapFragment embeds a section's HTML in a minimal page so Chrome lays it
// out at exactly widthPx with no default margins.
func wrapFragment(fragment string, widthPx int) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
  html, body { margin: 0; padding: 0; background: #fff; }
  body { width: %dpx; font-family: Arial, sans-serif; font-size: 16px; line-height: 1.5; color: #222; }
  img { max-width: 100%%; }
</style>
</head>
<body>%s</body>
</html>`, widthPx, fragment)
}

// Rasterize renders the fragment and captures a full-page PNG screenshot.
func (r *ChromeRasterizer) Rasterize(ctx context.Context, htmlFragment string, widthPx int) ([]byte, error) {
	if _, err := exec.LookPath("chromium-browser"); err != nil {
		if _, fallbackErr := exec.LookPath("chromium"); fallbackErr != nil {
			return nil, fmt.Errorf("%w: chromium not installed", ErrRasterization)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	// Chrome options for headless mode in container
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	// Encode HTML as data URL using proper percent-encoding
	// url.QueryEscape uses + for spaces which is wrong for data URLs
	dataURL := "data:text/html;charset=utf-8," + percentEncodeForDataURL(wrapFragment(htmlFragment, widthPx))

	var pngData []byte
	err := chromedp.Run(taskCtx,
		chromedp.EmulateViewport(int64(widthPx), 600),
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body"),
		// Quality 100 makes FullScreenshot emit lossless PNG
		chromedp.FullScreenshot(&pngData, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: chrome screenshot: %v", ErrRasterization, err)
	}
	return pngData, nil
}
