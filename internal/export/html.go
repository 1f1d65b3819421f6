package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"
)

//go:embed templates/plan.html
var templateFS embed.FS

var planTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"safeHTML": func(s string) template.HTML { return template.HTML(s) },
	}

	content, err := templateFS.ReadFile("templates/plan.html")
	if err != nil {
		// Fallback to built-in template if the embedded file is missing
		planTemplate = template.Must(template.New("plan").Funcs(funcMap).Parse(fallbackPlanTemplate))
		return
	}
	planTemplate = template.Must(template.New("plan").Funcs(funcMap).Parse(string(content)))
}

var reWhitespace = regexp.MustCompile(`\s+`)

// slugify lowercases a title and collapses whitespace runs into hyphens,
// producing anchor ids and filename stems.
func slugify(title string) string {
	slug := reWhitespace.ReplaceAllString(strings.TrimSpace(strings.ToLower(title)), "-")
	if slug == "" {
		return "document"
	}
	return slug
}

type htmlSection struct {
	Index   int
	Title   string
	Anchor  string
	Content string // raw section HTML, empty means no authored content
}

type instructionBanner struct {
	Heading string
	AppName string
	Format  string
}

type htmlTemplateData struct {
	Title       string
	Description string
	GeneratedAt string
	IncludeTOC  bool
	Banner      *instructionBanner
	Sections    []htmlSection
}

// bannerFor returns the copy-paste instruction banner for the DOCX/PPTX
// variants. Those formats ship as HTML with manual save-as steps instead of
// native binary encoding; the banner is the product's documented workaround.
func bannerFor(format Format) *instructionBanner {
	switch format {
	case FormatDOCX:
		return &instructionBanner{Heading: "How to Save as DOCX", AppName: "Microsoft Word", Format: "DOCX"}
	case FormatPPTX:
		return &instructionBanner{Heading: "How to Save as PPTX", AppName: "Microsoft PowerPoint", Format: "PPTX"}
	}
	return nil
}

// renderHTML produces a standalone styled HTML document with anchor-linked
// sections. For FormatDOCX and FormatPPTX the same document is wrapped with
// a visible instruction banner and still delivered as .html.
func renderHTML(doc Document, sections []Section, opts Options, now time.Time) ([]byte, error) {
	data := htmlTemplateData{
		Title:       doc.Title,
		Description: doc.Description,
		GeneratedAt: now.Format("January 2, 2006"),
		IncludeTOC:  opts.IncludeTOC,
		Banner:      bannerFor(opts.Format),
	}
	for i, sec := range sections {
		data.Sections = append(data.Sections, htmlSection{
			Index:   i + 1,
			Title:   sec.Title,
			Anchor:  slugify(sec.Title),
			Content: strings.TrimSpace(sec.Content),
		})
	}

	var buf bytes.Buffer
	if err := planTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("%w: render plan template: %v", ErrSerialization, err)
	}
	return buf.Bytes(), nil
}

// fallbackPlanTemplate is used if the embedded template fails to load
const fallbackPlanTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .description { color: #555; margin-bottom: 2rem; }
    .toc { background: #f7f7f7; padding: 1rem 1.5rem; margin: 1.5rem 0; }
    .section { margin: 2.5rem 0; }
    .placeholder { color: #888; font-style: italic; }
    .banner { background: #fff8e1; border: 2px solid #f0c36d; padding: 1rem 1.5rem; margin-bottom: 2rem; }
    .meta { color: #666; font-size: 0.85em; margin-top: 3rem; }
  </style>
</head>
<body>
  {{if .Banner}}
  <div class="banner">
    <h2>{{.Banner.Heading}}</h2>
    <ol>
      <li>Select all of the content below and copy it.</li>
      <li>Open {{.Banner.AppName}} and paste into a blank document.</li>
      <li>Use "Save As" and choose the {{.Banner.Format}} format.</li>
    </ol>
  </div>
  {{end}}
  <h1>{{.Title}}</h1>
  {{if .Description}}<p class="description">{{.Description}}</p>{{end}}
  {{if .IncludeTOC}}
  <div class="toc">
    <h2>Table of Contents</h2>
    <ol>
      {{range .Sections}}<li><a href="#{{.Anchor}}">{{.Title}}</a></li>
      {{end}}
    </ol>
  </div>
  {{end}}
  {{range .Sections}}
  <div class="section" id="{{.Anchor}}">
    <h2>{{.Title}}</h2>
    {{if .Content}}{{.Content | safeHTML}}{{else}}<p class="placeholder">No content for this section yet.</p>{{end}}
  </div>
  {{end}}
  <p class="meta">Generated {{.GeneratedAt}}</p>
</body>
</html>`
