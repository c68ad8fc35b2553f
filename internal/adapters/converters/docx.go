package converters

import (
	"fmt"
	"io"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/domain"
)

const docxFormat = "docx"

// DocxConverter renders catalogs as Word (DOCX) documents.
type DocxConverter struct{}

// NewDocxConverter creates a new DOCX converter.
func NewDocxConverter() *DocxConverter {
	return &DocxConverter{}
}

// Format returns the output format name.
func (c *DocxConverter) Format() string {
	return docxFormat
}

// Convert writes catalog to output as DOCX.
func (c *DocxConverter) Convert(catalog *domain.Catalog, output io.Writer) error {
	document, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	c.addOverview(document, catalog)
	for _, group := range catalog.ByTag() {
		c.addTagGroup(document, group)
	}
	c.addSchemas(document, catalog.Schemas)

	if err := document.Write(output); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

func (c *DocxConverter) addOverview(document *docx.RootDoc, catalog *domain.Catalog) {
	_, _ = document.AddHeading(catalog.Title, 0)
	if catalog.Version != "" {
		document.AddParagraph("Version: " + catalog.Version)
	}
	document.AddParagraph("Aggregated document: " + catalog.Name)
	if catalog.Description != "" {
		document.AddParagraph(stripHTML(catalog.Description))
	}

	if len(catalog.Servers) > 0 {
		_, _ = document.AddHeading("Servers", 1)
		for _, server := range catalog.Servers {
			document.AddParagraph("• " + serverLine(server))
		}
	}
	document.AddEmptyParagraph()
}

func (c *DocxConverter) addTagGroup(document *docx.RootDoc, group domain.TagGroup) {
	_, _ = document.AddHeading(group.Tag, 1)
	if group.Description != "" {
		document.AddParagraph(stripHTML(group.Description))
	}

	for _, ep := range group.Endpoints {
		_, _ = document.AddHeading(endpointTitle(ep), 2)
		if ep.Deprecated {
			document.AddParagraph("Deprecated")
		}
		if ep.Summary != "" {
			document.AddParagraph(stripHTML(ep.Summary))
		}
		if ep.Description != "" {
			document.AddParagraph(stripHTML(ep.Description))
		}

		if len(ep.Parameters) > 0 {
			_, _ = document.AddHeading("Parameters", 3)
			for _, p := range ep.Parameters {
				document.AddParagraph("• " + parameterLine(p))
			}
		}
		if ep.RequestBody != nil {
			_, _ = document.AddHeading("Request body", 3)
			if line := mediaLine(ep.RequestBody.Media); line != "" {
				document.AddParagraph("• " + line)
			}
		}
		if len(ep.Responses) > 0 {
			_, _ = document.AddHeading("Responses", 3)
			for _, r := range ep.Responses {
				document.AddParagraph("• " + responseLine(r))
			}
		}
		document.AddEmptyParagraph()
	}
}

func (c *DocxConverter) addSchemas(document *docx.RootDoc, schemas []domain.Schema) {
	if len(schemas) == 0 {
		return
	}
	_, _ = document.AddHeading("Schemas", 1)
	for _, s := range schemas {
		_, _ = document.AddHeading(fmt.Sprintf("%s (%s)", s.Name, s.Type), 2)
		if s.Description != "" {
			document.AddParagraph(stripHTML(s.Description))
		}
		for _, p := range s.Properties {
			document.AddParagraph("• " + propertyLine(p))
		}
	}
}
