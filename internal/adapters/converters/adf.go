package converters

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/domain"
)

const adfFormat = "confluence"

// ADFConverter renders catalogs in Atlassian Document Format (ADF) for Confluence.
type ADFConverter struct{}

// NewADFConverter creates a new ADF converter.
func NewADFConverter() *ADFConverter {
	return &ADFConverter{}
}

// Format returns the output format name.
func (c *ADFConverter) Format() string {
	return adfFormat
}

type adfDocument struct {
	Version int       `json:"version"`
	Type    string    `json:"type"`
	Content []adfNode `json:"content"`
}

type adfNode struct {
	Type    string    `json:"type"`
	Attrs   *adfAttrs `json:"attrs,omitempty"`
	Content []adfNode `json:"content,omitempty"`
	Text    string    `json:"text,omitempty"`
	Marks   []adfMark `json:"marks,omitempty"`
}

type adfAttrs struct {
	Level int    `json:"level,omitempty"`
	Color string `json:"color,omitempty"`
	Text  string `json:"text,omitempty"`
}

type adfMark struct {
	Type string `json:"type"`
}

var methodStatus = map[string]string{
	"GET":    "blue",
	"POST":   "green",
	"PUT":    "yellow",
	"PATCH":  "purple",
	"DELETE": "red",
}

// Convert writes catalog to output as ADF JSON.
func (c *ADFConverter) Convert(catalog *domain.Catalog, output io.Writer) error {
	doc := &adfDocument{Version: 1, Type: "doc"}

	doc.Content = append(doc.Content, heading(catalog.Title, 1))
	if catalog.Version != "" {
		doc.Content = append(doc.Content, paragraph(text("Version: "+catalog.Version)))
	}
	if catalog.Description != "" {
		doc.Content = append(doc.Content, paragraph(text(stripHTML(catalog.Description))))
	}
	if len(catalog.Servers) > 0 {
		doc.Content = append(doc.Content, heading("Servers", 2))
		lines := make([]string, 0, len(catalog.Servers))
		for _, server := range catalog.Servers {
			lines = append(lines, serverLine(server))
		}
		doc.Content = append(doc.Content, bulletList(lines))
	}

	for _, group := range catalog.ByTag() {
		doc.Content = append(doc.Content, heading(group.Tag, 2))
		if group.Description != "" {
			doc.Content = append(doc.Content, paragraph(text(stripHTML(group.Description))))
		}
		for _, ep := range group.Endpoints {
			doc.Content = append(doc.Content, endpointNodes(ep)...)
		}
	}

	if len(catalog.Schemas) > 0 {
		doc.Content = append(doc.Content, heading("Schemas", 2))
		for _, s := range catalog.Schemas {
			doc.Content = append(doc.Content, heading(s.Name, 3), paragraph(code(s.Type)))
			if len(s.Properties) > 0 {
				lines := make([]string, 0, len(s.Properties))
				for _, p := range s.Properties {
					lines = append(lines, propertyLine(p))
				}
				doc.Content = append(doc.Content, bulletList(lines))
			}
		}
	}

	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode ADF: %w", err)
	}
	return nil
}

func endpointNodes(ep domain.Endpoint) []adfNode {
	color, ok := methodStatus[ep.Method]
	if !ok {
		color = "neutral"
	}
	nodes := []adfNode{{
		Type:  "heading",
		Attrs: &adfAttrs{Level: 3},
		Content: []adfNode{
			{Type: "status", Attrs: &adfAttrs{Text: ep.Method, Color: color}},
			text(" " + ep.Path),
		},
	}}

	if ep.Summary != "" {
		nodes = append(nodes, paragraph(strong(ep.Summary)))
	}
	if ep.Description != "" {
		nodes = append(nodes, paragraph(text(stripHTML(ep.Description))))
	}
	if len(ep.Parameters) > 0 {
		items := make([]adfNode, 0, len(ep.Parameters))
		for _, p := range ep.Parameters {
			items = append(items, listItem(code(p.Name), text(" "+parameterLine(p)[len(p.Name):])))
		}
		nodes = append(nodes, heading("Parameters", 4), adfNode{Type: "bulletList", Content: items})
	}
	if ep.RequestBody != nil && len(ep.RequestBody.Media) > 0 {
		nodes = append(nodes, heading("Request body", 4), paragraph(text(mediaLine(ep.RequestBody.Media))))
	}
	if len(ep.Responses) > 0 {
		items := make([]adfNode, 0, len(ep.Responses))
		for _, r := range ep.Responses {
			items = append(items, listItem(code(r.Status), text(" "+responseLine(r)[len(r.Status):])))
		}
		nodes = append(nodes, heading("Responses", 4), adfNode{Type: "bulletList", Content: items})
	}

	return append(nodes, adfNode{Type: "rule"})
}

func heading(s string, level int) adfNode {
	return adfNode{Type: "heading", Attrs: &adfAttrs{Level: level}, Content: []adfNode{text(s)}}
}

func paragraph(inline ...adfNode) adfNode {
	return adfNode{Type: "paragraph", Content: inline}
}

func text(s string) adfNode {
	return adfNode{Type: "text", Text: s}
}

func strong(s string) adfNode {
	return adfNode{Type: "text", Text: s, Marks: []adfMark{{Type: "strong"}}}
}

func code(s string) adfNode {
	return adfNode{Type: "text", Text: s, Marks: []adfMark{{Type: "code"}}}
}

func listItem(inline ...adfNode) adfNode {
	return adfNode{Type: "listItem", Content: []adfNode{paragraph(inline...)}}
}

func bulletList(lines []string) adfNode {
	items := make([]adfNode, 0, len(lines))
	for _, line := range lines {
		items = append(items, listItem(text(line)))
	}
	return adfNode{Type: "bulletList", Content: items}
}
