package export

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	textRuleWidth = 50
	noContentText = "No content for this section yet."
)

var (
	reLineBreak = regexp.MustCompile(`(?i)<br\s*/?>`)
	reListItem  = regexp.MustCompile(`(?i)<li[^>]*>`)
	reBlockEnd  = regexp.MustCompile(`(?i)</(?:h[1-6]|p|li)>`)
	reAnyTag    = regexp.MustCompile(`<[^>]*>`)
	reExcessNL  = regexp.MustCompile(`\n{3,}`)
)

// htmlToPlainText folds rich section HTML into line-oriented plain text:
// block tags (h1-h6, p, li) end a line, list items get a "* " prefix,
// <br> becomes a newline, every other tag is stripped, and the standard
// entities are decoded. The ampersand is decoded last so entity names that
// were themselves escaped (e.g. "&amp;lt;") do not get double-unescaped.
func htmlToPlainText(s string) string {
	s = reLineBreak.ReplaceAllString(s, "\n")
	s = reListItem.ReplaceAllString(s, "* ")
	s = reBlockEnd.ReplaceAllString(s, "\n")
	s = reAnyTag.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = reExcessNL.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// renderText produces the plain-text rendition: underlined title, optional
// description and table of contents, then each section underlined with its
// folded content, separated by "=" rules (none after the last section).
func renderText(doc Document, sections []Section, opts Options) []byte {
	var b strings.Builder

	b.WriteString(doc.Title + "\n")
	b.WriteString(strings.Repeat("=", utf8.RuneCountInString(doc.Title)) + "\n\n")

	if doc.Description != "" {
		b.WriteString(doc.Description + "\n")
		b.WriteString(strings.Repeat("-", textRuleWidth) + "\n\n")
	}

	if opts.IncludeTOC {
		b.WriteString("TABLE OF CONTENTS\n")
		for i, sec := range sections {
			fmt.Fprintf(&b, "%d. %s\n", i+1, sec.Title)
		}
		b.WriteString(strings.Repeat("-", textRuleWidth) + "\n\n")
	}

	for i, sec := range sections {
		b.WriteString(sec.Title + "\n")
		b.WriteString(strings.Repeat("-", utf8.RuneCountInString(sec.Title)) + "\n")
		if strings.TrimSpace(sec.Content) == "" {
			b.WriteString(noContentText + "\n")
		} else {
			b.WriteString(htmlToPlainText(sec.Content) + "\n")
		}
		if i < len(sections)-1 {
			b.WriteString("\n" + strings.Repeat("=", textRuleWidth) + "\n\n")
		}
	}

	return []byte(b.String())
}
