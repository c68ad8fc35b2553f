package converters

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/domain"
)

const (
	pdfFormat     = "pdf"
	pdfPageWidth  = 190.0
	pdfMargin     = 10.0
	pdfLineHeight = 5.0
	pdfFont       = "Arial"
)

var methodColors = map[string][3]int{
	"GET":     {97, 175, 254},
	"POST":    {73, 204, 144},
	"PUT":     {252, 161, 48},
	"PATCH":   {80, 227, 194},
	"DELETE":  {249, 62, 62},
	"HEAD":    {144, 97, 249},
	"OPTIONS": {128, 128, 128},
}

// PDFConverter renders catalogs as PDF.
type PDFConverter struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string

	// links to each tag section and to each schema, created before rendering
	tagLinks    map[string]int
	schemaLinks map[string]int
}

// NewPDFConverter creates a new PDF converter.
func NewPDFConverter() *PDFConverter {
	return &PDFConverter{}
}

// Format returns the output format name.
func (c *PDFConverter) Format() string {
	return pdfFormat
}

// Convert writes catalog to output as PDF.
func (c *PDFConverter) Convert(catalog *domain.Catalog, output io.Writer) error {
	c.pdf = gofpdf.New("P", "mm", "A4", "")
	c.pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	c.pdf.SetAutoPageBreak(true, 15)
	c.pdf.SetDrawColor(180, 180, 180)
	c.pdf.SetTitle(catalog.Title, true)
	c.pdf.AliasNbPages("")
	c.tr = c.pdf.UnicodeTranslatorFromDescriptor("")
	c.pdf.SetFooterFunc(func() {
		c.pdf.SetY(-12)
		c.pdf.SetFont(pdfFont, "", 8)
		c.pdf.SetTextColor(128, 128, 128)
		c.pdf.CellFormat(0, 6, fmt.Sprintf("%s - page %d/{nb}", c.tr(catalog.Title), c.pdf.PageNo()), "", 0, "C", false, 0, "")
		c.pdf.SetTextColor(0, 0, 0)
	})

	groups := catalog.ByTag()
	c.tagLinks = make(map[string]int, len(groups))
	for _, group := range groups {
		c.tagLinks[group.Tag] = c.pdf.AddLink()
	}
	c.schemaLinks = make(map[string]int, len(catalog.Schemas))
	for _, s := range catalog.Schemas {
		c.schemaLinks[s.Name] = c.pdf.AddLink()
	}

	c.addTitlePage(catalog)
	c.addContents(groups, catalog.Schemas)
	for _, group := range groups {
		c.addTagSection(group)
	}
	c.addSchemas(catalog.Schemas)
	c.addSecuritySchemes(catalog.SecuritySchemes)

	if err := c.pdf.Error(); err != nil {
		return fmt.Errorf("failed to render PDF: %w", err)
	}
	return c.pdf.Output(output)
}

func (c *PDFConverter) text(w, h float64, s string, ln int) {
	c.pdf.CellFormat(w, h, c.tr(s), "", ln, "", false, 0, "")
}

func (c *PDFConverter) paragraph(s string) {
	c.pdf.MultiCell(pdfPageWidth, pdfLineHeight, c.tr(stripHTML(s)), "", "", false)
}

func (c *PDFConverter) addTitlePage(catalog *domain.Catalog) {
	c.pdf.AddPage()
	c.pdf.Ln(40)

	c.pdf.SetFont(pdfFont, "B", 26)
	c.pdf.CellFormat(pdfPageWidth, 14, c.tr(catalog.Title), "", 1, "C", false, 0, "")

	c.pdf.SetFont(pdfFont, "", 13)
	c.pdf.SetTextColor(100, 100, 100)
	if catalog.Version != "" {
		c.pdf.CellFormat(pdfPageWidth, 8, c.tr("Version "+catalog.Version), "", 1, "C", false, 0, "")
	}
	c.pdf.CellFormat(pdfPageWidth, 8, c.tr("Aggregated document "+catalog.Name), "", 1, "C", false, 0, "")
	c.pdf.SetTextColor(0, 0, 0)
	c.pdf.Ln(15)

	if catalog.Description != "" {
		c.pdf.SetFont(pdfFont, "", 11)
		c.pdf.MultiCell(pdfPageWidth, 6, c.tr(stripHTML(catalog.Description)), "", "C", false)
		c.pdf.Ln(6)
	}

	if len(catalog.Servers) > 0 {
		c.pdf.SetFont(pdfFont, "B", 11)
		c.pdf.CellFormat(pdfPageWidth, 7, "Servers", "", 1, "C", false, 0, "")
		c.pdf.SetFont(pdfFont, "", 10)
		for _, server := range catalog.Servers {
			c.pdf.CellFormat(pdfPageWidth, 6, c.tr(serverLine(server)), "", 1, "C", false, 0, "")
		}
	}

	c.pdf.Ln(10)
	c.pdf.SetFont(pdfFont, "", 10)
	c.pdf.SetTextColor(128, 128, 128)
	c.pdf.CellFormat(pdfPageWidth, 6, fmt.Sprintf("%d endpoints, %d schemas", len(catalog.Endpoints), len(catalog.Schemas)), "", 1, "C", false, 0, "")
	c.pdf.SetTextColor(0, 0, 0)
}

func (c *PDFConverter) addContents(groups []domain.TagGroup, schemas []domain.Schema) {
	c.pdf.AddPage()
	c.sectionHeader("Contents")

	for _, group := range groups {
		c.pdf.SetFont(pdfFont, "B", 11)
		c.pdf.CellFormat(pdfPageWidth, 6, c.tr(group.Tag), "", 1, "", false, c.tagLinks[group.Tag], "")
		c.pdf.SetFont(pdfFont, "", 9)
		for _, ep := range group.Endpoints {
			c.pdf.SetX(pdfMargin + 8)
			c.pdf.CellFormat(pdfPageWidth-8, pdfLineHeight, c.tr(truncate(endpointTitle(ep), 90)), "", 1, "", false, c.tagLinks[group.Tag], "")
		}
	}

	if len(schemas) > 0 {
		c.pdf.Ln(3)
		c.pdf.SetFont(pdfFont, "B", 11)
		c.pdf.CellFormat(pdfPageWidth, 6, "Schemas", "", 1, "", false, 0, "")
		c.pdf.SetFont(pdfFont, "", 9)
		for _, s := range schemas {
			c.pdf.SetX(pdfMargin + 8)
			c.pdf.CellFormat(pdfPageWidth-8, pdfLineHeight, c.tr(s.Name), "", 1, "", false, c.schemaLinks[s.Name], "")
		}
	}
}

func (c *PDFConverter) sectionHeader(title string) {
	c.pdf.SetFont(pdfFont, "B", 18)
	c.pdf.CellFormat(pdfPageWidth, 10, c.tr(title), "", 1, "", false, 0, "")
	c.pdf.Ln(3)
}

func (c *PDFConverter) subHeader(title string) {
	c.pdf.Ln(1)
	c.pdf.SetFont(pdfFont, "B", 9)
	c.text(pdfPageWidth, pdfLineHeight, title, 1)
	c.pdf.SetFont(pdfFont, "", 9)
}

func (c *PDFConverter) addTagSection(group domain.TagGroup) {
	c.pdf.AddPage()
	c.pdf.SetLink(c.tagLinks[group.Tag], -1, -1)

	c.pdf.SetFont(pdfFont, "B", 14)
	c.pdf.SetFillColor(240, 240, 240)
	c.pdf.CellFormat(pdfPageWidth, 8, c.tr(group.Tag), "", 1, "", true, 0, "")
	c.pdf.Ln(2)
	if group.Description != "" {
		c.pdf.SetFont(pdfFont, "", 10)
		c.paragraph(group.Description)
		c.pdf.Ln(2)
	}

	for _, ep := range group.Endpoints {
		c.addEndpoint(ep)
	}
}

func (c *PDFConverter) addEndpoint(ep domain.Endpoint) {
	color, ok := methodColors[ep.Method]
	if !ok {
		color = methodColors["OPTIONS"]
	}

	c.pdf.Ln(3)
	c.pdf.SetFont(pdfFont, "B", 10)
	c.pdf.SetFillColor(color[0], color[1], color[2])
	c.pdf.SetTextColor(255, 255, 255)
	badge := float64(len(ep.Method)*3) + 8
	c.pdf.CellFormat(badge, 7, ep.Method, "", 0, "C", true, 0, "")
	c.pdf.SetTextColor(0, 0, 0)
	c.pdf.CellFormat(pdfPageWidth-badge, 7, c.tr(" "+ep.Path), "", 1, "", false, 0, "")

	c.pdf.SetFont(pdfFont, "", 9)
	if ep.Deprecated {
		c.pdf.SetTextColor(200, 0, 0)
		c.text(pdfPageWidth, pdfLineHeight, "Deprecated", 1)
		c.pdf.SetTextColor(0, 0, 0)
	}
	if ep.OperationID != "" {
		c.pdf.SetTextColor(128, 128, 128)
		c.text(pdfPageWidth, pdfLineHeight, "Operation ID: "+ep.OperationID, 1)
		c.pdf.SetTextColor(0, 0, 0)
	}
	if ep.Summary != "" {
		c.pdf.SetFont(pdfFont, "B", 9)
		c.paragraph(ep.Summary)
		c.pdf.SetFont(pdfFont, "", 9)
	}
	if ep.Description != "" {
		c.paragraph(ep.Description)
	}

	if len(ep.Parameters) > 0 {
		c.subHeader("Parameters")
		for _, p := range ep.Parameters {
			c.paragraph("- " + parameterLine(p))
		}
	}

	if ep.RequestBody != nil {
		title := "Request body"
		if ep.RequestBody.Required {
			title += " (required)"
		}
		c.subHeader(title)
		if ep.RequestBody.Description != "" {
			c.paragraph(ep.RequestBody.Description)
		}
		for _, m := range ep.RequestBody.Media {
			c.mediaLink(m)
		}
	}

	if len(ep.Responses) > 0 {
		c.subHeader("Responses")
		for _, r := range ep.Responses {
			c.paragraph("- " + responseLine(r))
		}
	}

	c.pdf.Ln(2)
	y := c.pdf.GetY()
	c.pdf.Line(pdfMargin, y, pdfMargin+pdfPageWidth, y)
}

// mediaLink writes one media line, linking to the schema section when the
// type is a component.
func (c *PDFConverter) mediaLink(m domain.Media) {
	link, ok := c.schemaLinks[m.Type]
	if !ok {
		c.paragraph("- " + mediaLine([]domain.Media{m}))
		return
	}
	c.text(c.pdf.GetStringWidth(c.tr("- "+m.ContentType+": ")), pdfLineHeight, "- "+m.ContentType+": ", 0)
	c.pdf.SetTextColor(0, 102, 204)
	c.pdf.CellFormat(pdfPageWidth/2, pdfLineHeight, c.tr(m.Type), "", 1, "", false, link, "")
	c.pdf.SetTextColor(0, 0, 0)
}

func (c *PDFConverter) addSchemas(schemas []domain.Schema) {
	if len(schemas) == 0 {
		return
	}
	c.pdf.AddPage()
	c.sectionHeader("Schemas")

	for _, s := range schemas {
		c.pdf.SetLink(c.schemaLinks[s.Name], -1, -1)
		c.pdf.SetFont(pdfFont, "B", 11)
		c.text(pdfPageWidth, 6, fmt.Sprintf("%s (%s)", s.Name, s.Type), 1)
		c.pdf.SetFont(pdfFont, "", 9)
		if s.Description != "" {
			c.paragraph(s.Description)
		}
		for _, p := range s.Properties {
			c.paragraph("- " + propertyLine(p))
		}
		c.pdf.Ln(3)
	}
}

func (c *PDFConverter) addSecuritySchemes(schemes []domain.SecurityScheme) {
	if len(schemes) == 0 {
		return
	}
	c.pdf.Ln(4)
	c.sectionHeader("Security")
	c.pdf.SetFont(pdfFont, "", 9)
	for _, s := range schemes {
		line := fmt.Sprintf("%s: %s", s.Name, s.Type)
		if s.Scheme != "" {
			line += " " + s.Scheme
		}
		if s.In != "" {
			line += " in " + s.In
		}
		c.paragraph(line)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
