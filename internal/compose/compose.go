package compose

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/pharmabrief/internal/brief"
)

//go:embed templates/report.html
var templateFS embed.FS

var (
	md         = goldmark.New()
	reportPage = template.Must(template.ParseFS(templateFS, "templates/report.html"))
)

// Format is an output rendering of a report.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat resolves a user-supplied format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown format %q (want json, markdown or html)", name)
}

// Render writes report to w in the requested format.
func Render(w io.Writer, report brief.Report, format Format, generated time.Time) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if report == nil {
			report = brief.Report{}
		}
		return enc.Encode(report)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(report, generated))
		return err
	case FormatHTML:
		return HTML(w, report, generated)
	}
	return fmt.Errorf("unsupported format %q", format)
}

// Markdown renders the report as a Markdown document.
func Markdown(report brief.Report, generated time.Time) string {
	var sb strings.Builder
	sb.WriteString("# Pharma Intelligence Brief\n\n")
	fmt.Fprintf(&sb, "_Generated %s for %s._\n", generated.Format("2006-01-02 15:04 MST"), strings.Join(report.Molecules(), ", "))

	var sections []string
	for _, a := range report {
		sections = append(sections, assembleDrug(a))
	}
	if len(sections) > 0 {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(sections, "\n\n---\n\n"))
		sb.WriteString("\n")
	}
	return sb.String()
}

func assembleDrug(a brief.DrugAnalysis) string {
	section := fmt.Sprintf("## %s\n\n**Mechanism of action:** %s\n\n### Latest developments\n\n%s",
		a.Molecule, a.MoA, a.LatestSummary)

	for _, c := range brief.Categories {
		section += "\n\n" + assembleBucket(c, a.Bucket(c))
	}
	return section
}

func assembleBucket(c brief.Category, items []brief.NewsItem) string {
	header := fmt.Sprintf("### %s news (%d)", c, len(items))
	if len(items) == 0 {
		return header + "\n\n_No items._"
	}

	var entries []string
	for _, item := range items {
		entries = append(entries, fmt.Sprintf("**Source:** [%s](%s)\n\n%s", sourceLabel(item.URL), item.URL, item.Summary))
	}
	return header + "\n\n" + strings.Join(entries, "\n\n")
}

// sourceLabel shortens a URL to its host for display.
func sourceLabel(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.TrimPrefix(u.Host, "www.")
}

type pageData struct {
	Title     string
	Generated string
	Body      template.HTML
}

// HTML renders the report as a standalone HTML page.
func HTML(w io.Writer, report brief.Report, generated time.Time) error {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(report, generated)), &buf); err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}
	return reportPage.Execute(w, pageData{
		Title:     "Pharma Intelligence Brief: " + strings.Join(report.Molecules(), ", "),
		Generated: generated.Format(time.RFC3339),
		Body:      template.HTML(buf.String()), //nolint: gosec
	})
}
