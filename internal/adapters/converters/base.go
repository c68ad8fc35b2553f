// Package converters renders aggregated document catalogs as PDF, Word or
// Confluence documents.
package converters

import (
	"fmt"
	"strings"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/domain"
)

// New returns the converter for format.
func New(format string) (domain.Converter, error) {
	switch strings.ToLower(format) {
	case pdfFormat:
		return NewPDFConverter(), nil
	case docxFormat, "word":
		return NewDocxConverter(), nil
	case adfFormat, "adf":
		return NewADFConverter(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: pdf, docx, confluence)", format)
	}
}

func endpointTitle(ep domain.Endpoint) string {
	return fmt.Sprintf("%s %s", strings.ToUpper(ep.Method), ep.Path)
}

func parameterLine(p domain.Parameter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s", p.Name, p.In)
	if p.Type != "" {
		fmt.Fprintf(&b, ", %s", p.Type)
	}
	b.WriteString(")")
	if p.Required {
		b.WriteString(" required")
	}
	if p.Description != "" {
		fmt.Fprintf(&b, ": %s", stripHTML(p.Description))
	}
	return b.String()
}

func responseLine(r domain.Response) string {
	line := r.Status
	if r.Description != "" {
		line += ": " + stripHTML(r.Description)
	}
	if m := mediaLine(r.Media); m != "" {
		line += " [" + m + "]"
	}
	return line
}

func mediaLine(media []domain.Media) string {
	parts := make([]string, 0, len(media))
	for _, m := range media {
		if m.Type == "" {
			parts = append(parts, m.ContentType)
			continue
		}
		parts = append(parts, m.ContentType+": "+m.Type)
	}
	return strings.Join(parts, ", ")
}

func propertyLine(p domain.Property) string {
	line := fmt.Sprintf("%s: %s", p.Name, p.Type)
	var flags []string
	if p.Required {
		flags = append(flags, "required")
	}
	if p.Nullable {
		flags = append(flags, "nullable")
	}
	if len(flags) > 0 {
		line += " (" + strings.Join(flags, ", ") + ")"
	}
	if p.Description != "" {
		line += " - " + stripHTML(p.Description)
	}
	return line
}

func serverLine(s domain.Server) string {
	if s.Description == "" {
		return s.URL
	}
	return fmt.Sprintf("%s - %s", s.URL, s.Description)
}

var htmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// stripHTML drops tags and common entities from markdown-ish descriptions.
func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	out := htmlEntities.Replace(b.String())
	return strings.TrimSpace(strings.ReplaceAll(out, "\n\n", "\n"))
}
