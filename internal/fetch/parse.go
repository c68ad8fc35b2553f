package fetch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	oasyaml "github.com/oasdiff/yaml"
	"gopkg.in/yaml.v3"
)

var errUnknownVersion = errors.New("document declares neither openapi 3.x nor swagger 2.0")

type versionProbe struct {
	OpenAPI string `yaml:"openapi"`
	Swagger string `yaml:"swagger"`
}

// Parse reads an OpenAPI 3.x or Swagger 2.0 document in JSON or YAML.
// Swagger 2.0 documents are converted to OpenAPI 3. Local references are
// resolved; external references are rejected.
func Parse(data []byte) (*openapi3.T, error) {
	var probe versionProbe
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	var (
		doc *openapi3.T
		err error
	)
	switch {
	case strings.HasPrefix(probe.OpenAPI, "3."):
		doc, err = openapi3.NewLoader().LoadFromData(data)
	case strings.HasPrefix(probe.Swagger, "2."):
		doc, err = parseV2(data)
	default:
		return nil, errUnknownVersion
	}
	if err != nil {
		return nil, err
	}

	if doc.Paths == nil {
		doc.Paths = openapi3.NewPaths()
	}
	return doc, nil
}

func parseV2(data []byte) (*openapi3.T, error) {
	var doc2 openapi2.T
	if err := oasyaml.Unmarshal(data, &doc2); err != nil {
		return nil, fmt.Errorf("failed to decode swagger 2.0 document: %w", err)
	}

	doc, err := openapi2conv.ToV3(&doc2)
	if err != nil {
		return nil, fmt.Errorf("failed to convert swagger 2.0 document: %w", err)
	}
	return doc, nil
}
