package export

import (
	"strings"
	"testing"
	"time"
)

var htmlTestTime = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func TestRenderHTMLDocument(t *testing.T) {
	doc := Document{Title: "Acme Plan", Description: "A bakery empire."}
	sections := []Section{
		{ID: "s1", Title: "Executive Summary", Content: "<p>Hello <strong>world</strong></p>", Order: 1},
		{ID: "s2", Title: "Market Analysis", Content: "", Order: 2},
	}

	out, err := renderHTML(doc, sections, Options{Format: FormatHTML, IncludeTOC: true}, htmlTestTime)
	if err != nil {
		t.Fatalf("renderHTML() error = %v", err)
	}
	html := string(out)

	for _, want := range []string{
		"<h1>Acme Plan</h1>",
		"A bakery empire.",
		"Table of Contents",
		`href="#executive-summary"`,
		`id="executive-summary"`,
		`id="market-analysis"`,
		"<p>Hello <strong>world</strong></p>",
		"No content for this section yet.",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	// Section HTML must land unescaped.
	if strings.Contains(html, "&lt;strong&gt;") {
		t.Error("section content was escaped")
	}
	if strings.Contains(html, "How to Save") {
		t.Error("plain HTML export must not carry an instruction banner")
	}
}

func TestRenderHTMLCopyPasteVariants(t *testing.T) {
	doc := Document{Title: "Acme Plan"}
	sections := []Section{{ID: "s1", Title: "Team", Content: "<p>Us</p>", Order: 1}}

	tests := []struct {
		format  Format
		heading string
		app     string
	}{
		{FormatDOCX, "How to Save as DOCX", "Microsoft Word"},
		{FormatPPTX, "How to Save as PPTX", "Microsoft PowerPoint"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			out, err := renderHTML(doc, sections, Options{Format: tt.format}, htmlTestTime)
			if err != nil {
				t.Fatalf("renderHTML() error = %v", err)
			}
			html := string(out)
			if !strings.Contains(html, tt.heading) {
				t.Errorf("banner heading %q missing", tt.heading)
			}
			if !strings.Contains(html, tt.app) {
				t.Errorf("banner application %q missing", tt.app)
			}
		})
	}
}

func TestRenderHTMLNoSections(t *testing.T) {
	doc := Document{Title: "Acme Plan"}
	out, err := renderHTML(doc, nil, Options{Format: FormatHTML, IncludeTOC: true}, htmlTestTime)
	if err != nil {
		t.Fatalf("renderHTML() error = %v", err)
	}
	html := string(out)
	if !strings.Contains(html, "<h1>Acme Plan</h1>") {
		t.Error("title missing")
	}
	if strings.Contains(html, `class="section"`) {
		t.Error("no section blocks expected")
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Executive Summary", "executive-summary"},
		{"  Financial   Plan  ", "financial-plan"},
		{"Team\tand\nAdvisors", "team-and-advisors"},
		{"", "document"},
		{"Already-Slugged", "already-slugged"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := slugify(tt.input); got != tt.expected {
				t.Errorf("slugify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestBuildFilename(t *testing.T) {
	tests := []struct {
		format   Format
		expected string
	}{
		{FormatPDF, "acme-plan_2026-03-14.pdf"},
		{FormatHTML, "acme-plan_2026-03-14.html"},
		{FormatTXT, "acme-plan_2026-03-14.txt"},
		{FormatDOCX, "acme-plan_2026-03-14.html"},
		{FormatPPTX, "acme-plan_2026-03-14.html"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if got := buildFilename("Acme Plan", tt.format, htmlTestTime); got != tt.expected {
				t.Errorf("buildFilename() = %q, want %q", got, tt.expected)
			}
		})
	}
}
