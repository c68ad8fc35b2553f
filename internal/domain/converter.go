package domain

import "io"

// Converter renders a catalog in a human-readable format.
type Converter interface {
	// Convert writes catalog to output in the target format.
	Convert(catalog *Catalog, output io.Writer) error

	// Format returns the output format name (e.g., "pdf", "docx").
	Format() string
}
