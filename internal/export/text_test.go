package export

import (
	"strings"
	"testing"
)

func TestHTMLToPlainText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "paragraph",
			input:    "<p>Hello</p>",
			expected: "Hello",
		},
		{
			name:     "heading and paragraph",
			input:    "<h2>Market</h2><p>Growing fast.</p>",
			expected: "Market\nGrowing fast.",
		},
		{
			name:     "list items get prefix",
			input:    "<ul><li>First</li><li>Second</li></ul>",
			expected: "* First\n* Second",
		},
		{
			name:     "line breaks",
			input:    "<p>one<br>two<br/>three</p>",
			expected: "one\ntwo\nthree",
		},
		{
			name:     "inline tags stripped",
			input:    "<p><strong>Bold</strong> and <em>italic</em></p>",
			expected: "Bold and italic",
		},
		{
			name:     "entities decoded",
			input:    "<p>a&nbsp;&lt;&nbsp;b &amp; c &gt; d</p>",
			expected: "a < b & c > d",
		},
		{
			name:     "quotes decoded",
			input:    "<p>say &quot;hi&quot;</p>",
			expected: `say "hi"`,
		},
		{
			// Ampersand decoding runs last so escaped entity names stay
			// visible as markup text rather than being decoded twice.
			name:     "no double unescaping",
			input:    "<p>&amp;lt;p&amp;gt;</p>",
			expected: "&lt;p&gt;",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := htmlToPlainText(tt.input)
			if got != tt.expected {
				t.Errorf("htmlToPlainText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestHTMLToPlainTextNoResidualMarkup(t *testing.T) {
	input := "<h2>Title</h2><p>Body &amp; soul</p><ul><li>a</li><li>b</li></ul><p>x<br>y</p>"
	got := htmlToPlainText(input)
	if strings.Contains(got, "<") || strings.Contains(got, ">") {
		t.Errorf("residual angle brackets in %q", got)
	}
	if strings.Contains(got, "&amp;") || strings.Contains(got, "&lt;") {
		t.Errorf("residual entities in %q", got)
	}
}

func TestRenderTextFullDocument(t *testing.T) {
	doc := Document{ID: "p1", Title: "Acme Plan"}
	sections := []Section{
		{ID: "s1", Title: "Executive Summary", Content: "<p>Hello</p>", Order: 1},
		{ID: "s2", Title: "Team", Content: "", Order: 2},
	}
	out := string(renderText(doc, sections, Options{Format: FormatTXT, IncludeTOC: true}))

	wantPrefix := "Acme Plan\n=========\n\n"
	if !strings.HasPrefix(out, wantPrefix) {
		t.Fatalf("output begins %q, want prefix %q", out[:min(len(out), 40)], wantPrefix)
	}
	for _, want := range []string{
		"TABLE OF CONTENTS",
		"1. Executive Summary",
		"2. Team",
		"Executive Summary\n-----------------\nHello",
		"Team\n----\nNo content for this section yet.",
		strings.Repeat("=", 50),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.HasSuffix(strings.TrimRight(out, "\n"), "=") {
		t.Errorf("separator must not follow the last section:\n%s", out)
	}
}

func TestRenderTextDescriptionRule(t *testing.T) {
	doc := Document{Title: "Plan", Description: "A short pitch."}
	out := string(renderText(doc, nil, Options{Format: FormatTXT}))
	if !strings.Contains(out, "A short pitch.\n"+strings.Repeat("-", 50)) {
		t.Errorf("missing description block:\n%s", out)
	}
}

func TestRenderTextNoSections(t *testing.T) {
	doc := Document{Title: "Plan"}
	out := string(renderText(doc, nil, Options{Format: FormatTXT, IncludeTOC: true}))
	if !strings.HasPrefix(out, "Plan\n====\n") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if !strings.Contains(out, "TABLE OF CONTENTS") {
		t.Errorf("TOC banner expected even with zero sections:\n%s", out)
	}
	if strings.Contains(out, strings.Repeat("=", 50)) {
		t.Errorf("no section separator expected:\n%s", out)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
