package server

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	oasyaml "github.com/oasdiff/yaml"
)

// Document encodings.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Encode serializes doc as JSON or YAML and returns the matching content type.
func Encode(doc *openapi3.T, format string) ([]byte, string, error) {
	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode document: %w", err)
		}
		return data, "application/json; charset=utf-8", nil
	case FormatYAML, "yml":
		data, err := oasyaml.Marshal(doc)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode document: %w", err)
		}
		return data, "application/yaml; charset=utf-8", nil
	default:
		return nil, "", fmt.Errorf("unsupported document format: %s (supported: json, yaml)", format)
	}
}
