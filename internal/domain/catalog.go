// Package domain provides the catalog model rendered by the exporters: a
// flat, ordered, human-readable summary of an aggregated OpenAPI document.
package domain

import (
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// DefaultTag groups endpoints that declare no tag.
const DefaultTag = "Default"

// Catalog summarizes one aggregated document.
type Catalog struct {
	Name        string
	Title       string
	Version     string
	Description string
	Servers     []Server
	Tags        []Tag
	// Endpoints are ordered by path, then by method.
	Endpoints []Endpoint
	// Schemas are ordered by name.
	Schemas         []Schema
	SecuritySchemes []SecurityScheme
}

// Server represents an API server.
type Server struct {
	URL         string
	Description string
}

// Tag represents an OpenAPI tag.
type Tag struct {
	Name        string
	Description string
}

// Endpoint is one operation of one path.
type Endpoint struct {
	Path        string
	Method      string
	Summary     string
	Description string
	OperationID string
	Tags        []string
	Deprecated  bool
	Parameters  []Parameter
	RequestBody *Body
	Responses   []Response
}

// Parameter represents a request parameter.
type Parameter struct {
	Name        string
	In          string // query, path, header, cookie
	Description string
	Required    bool
	Type        string
}

// Body represents a request body.
type Body struct {
	Description string
	Required    bool
	Media       []Media
}

// Media is one content type and the type name of its schema.
type Media struct {
	ContentType string
	Type        string
}

// Response represents an API response.
type Response struct {
	Status      string
	Description string
	Media       []Media
}

// Schema is a named component schema.
type Schema struct {
	Name        string
	Type        string
	Description string
	Properties  []Property
}

// Property is one property of a component schema.
type Property struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Nullable    bool
}

// SecurityScheme represents a security scheme.
type SecurityScheme struct {
	Name        string
	Type        string
	Scheme      string
	In          string
	Description string
}

// TagGroup holds the endpoints filed under one tag.
type TagGroup struct {
	Tag         string
	Description string
	Endpoints   []Endpoint
}

var methodOrder = map[string]int{
	"GET": 0, "POST": 1, "PUT": 2, "PATCH": 3, "DELETE": 4,
	"HEAD": 5, "OPTIONS": 6, "TRACE": 7, "CONNECT": 8,
}

// FromOpenAPI builds the catalog of doc, published under name.
func FromOpenAPI(name string, doc *openapi3.T) *Catalog {
	c := &Catalog{Name: name, Title: name}
	if doc == nil {
		return c
	}

	if doc.Info != nil {
		if doc.Info.Title != "" {
			c.Title = doc.Info.Title
		}
		c.Version = doc.Info.Version
		c.Description = doc.Info.Description
	}

	for _, server := range doc.Servers {
		if server != nil {
			c.Servers = append(c.Servers, Server{URL: server.URL, Description: server.Description})
		}
	}
	for _, tag := range doc.Tags {
		if tag != nil {
			c.Tags = append(c.Tags, Tag{Name: tag.Name, Description: tag.Description})
		}
	}

	if doc.Paths != nil {
		for path, item := range doc.Paths.Map() {
			if item == nil {
				continue
			}
			for method, op := range item.Operations() {
				c.Endpoints = append(c.Endpoints, endpoint(path, method, item, op))
			}
		}
	}
	sort.Slice(c.Endpoints, func(i, j int) bool {
		a, b := c.Endpoints[i], c.Endpoints[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return methodRank(a.Method) < methodRank(b.Method)
	})

	if doc.Components != nil {
		for schemaName, ref := range doc.Components.Schemas {
			c.Schemas = append(c.Schemas, schema(schemaName, ref))
		}
		for schemeName, ref := range doc.Components.SecuritySchemes {
			if ref == nil || ref.Value == nil {
				continue
			}
			c.SecuritySchemes = append(c.SecuritySchemes, SecurityScheme{
				Name:        schemeName,
				Type:        ref.Value.Type,
				Scheme:      ref.Value.Scheme,
				In:          ref.Value.In,
				Description: ref.Value.Description,
			})
		}
	}
	sort.Slice(c.Schemas, func(i, j int) bool { return c.Schemas[i].Name < c.Schemas[j].Name })
	sort.Slice(c.SecuritySchemes, func(i, j int) bool { return c.SecuritySchemes[i].Name < c.SecuritySchemes[j].Name })

	return c
}

// ByTag groups the endpoints by tag, ordered by tag name. An endpoint with
// several tags appears in each group; one without tags goes to DefaultTag.
func (c *Catalog) ByTag() []TagGroup {
	descriptions := make(map[string]string, len(c.Tags))
	for _, tag := range c.Tags {
		descriptions[tag.Name] = tag.Description
	}

	groups := make(map[string]*TagGroup)
	for _, ep := range c.Endpoints {
		tags := ep.Tags
		if len(tags) == 0 {
			tags = []string{DefaultTag}
		}
		for _, tag := range tags {
			group, ok := groups[tag]
			if !ok {
				group = &TagGroup{Tag: tag, Description: descriptions[tag]}
				groups[tag] = group
			}
			group.Endpoints = append(group.Endpoints, ep)
		}
	}

	out := make([]TagGroup, 0, len(groups))
	for _, group := range groups {
		out = append(out, *group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

func methodRank(method string) int {
	if rank, ok := methodOrder[method]; ok {
		return rank
	}
	return len(methodOrder)
}

func endpoint(path, method string, item *openapi3.PathItem, op *openapi3.Operation) Endpoint {
	ep := Endpoint{
		Path:        path,
		Method:      method,
		Summary:     op.Summary,
		Description: op.Description,
		OperationID: op.OperationID,
		Tags:        op.Tags,
		Deprecated:  op.Deprecated,
	}

	// Path level parameters apply unless the operation overrides them.
	seen := make(map[string]bool)
	for _, params := range []openapi3.Parameters{op.Parameters, item.Parameters} {
		for _, ref := range params {
			if ref == nil || ref.Value == nil {
				continue
			}
			p := ref.Value
			key := p.In + ":" + p.Name
			if seen[key] {
				continue
			}
			seen[key] = true
			ep.Parameters = append(ep.Parameters, Parameter{
				Name:        p.Name,
				In:          p.In,
				Description: p.Description,
				Required:    p.Required,
				Type:        TypeName(p.Schema),
			})
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		body := op.RequestBody.Value
		ep.RequestBody = &Body{
			Description: body.Description,
			Required:    body.Required,
			Media:       media(body.Content),
		}
	}

	if op.Responses != nil {
		for status, ref := range op.Responses.Map() {
			if ref == nil || ref.Value == nil {
				continue
			}
			resp := Response{Status: status, Media: media(ref.Value.Content)}
			if ref.Value.Description != nil {
				resp.Description = *ref.Value.Description
			}
			ep.Responses = append(ep.Responses, resp)
		}
		sort.Slice(ep.Responses, func(i, j int) bool { return ep.Responses[i].Status < ep.Responses[j].Status })
	}

	return ep
}

func media(content openapi3.Content) []Media {
	out := make([]Media, 0, len(content))
	for contentType, mt := range content {
		if mt == nil {
			continue
		}
		out = append(out, Media{ContentType: contentType, Type: TypeName(mt.Schema)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContentType < out[j].ContentType })
	return out
}

func schema(name string, ref *openapi3.SchemaRef) Schema {
	s := Schema{Name: name, Type: TypeName(ref)}
	if ref == nil || ref.Value == nil {
		return s
	}
	s.Description = ref.Value.Description

	required := make(map[string]bool, len(ref.Value.Required))
	for _, r := range ref.Value.Required {
		required[r] = true
	}
	for propName, prop := range ref.Value.Properties {
		p := Property{Name: propName, Type: TypeName(prop), Required: required[propName]}
		if prop != nil && prop.Value != nil {
			p.Description = prop.Value.Description
			p.Nullable = prop.Value.Nullable
		}
		s.Properties = append(s.Properties, p)
	}
	sort.Slice(s.Properties, func(i, j int) bool { return s.Properties[i].Name < s.Properties[j].Name })
	return s
}

// TypeName returns a short display name for a schema: the component name of
// a reference, "array of X" for arrays and the declared type otherwise.
func TypeName(ref *openapi3.SchemaRef) string {
	if ref == nil {
		return ""
	}
	if ref.Ref != "" {
		return ref.Ref[strings.LastIndex(ref.Ref, "/")+1:]
	}
	s := ref.Value
	if s == nil {
		return ""
	}

	switch {
	case s.Type.Is(openapi3.TypeArray):
		return "array of " + TypeName(s.Items)
	case len(s.AllOf) == 1:
		return TypeName(s.AllOf[0])
	case len(s.OneOf) > 0:
		return "one of " + typeNames(s.OneOf)
	case len(s.AnyOf) > 0:
		return "any of " + typeNames(s.AnyOf)
	}

	name := strings.Join(s.Type.Slice(), " | ")
	if name == "" {
		if len(s.Properties) > 0 || len(s.AllOf) > 0 {
			return openapi3.TypeObject
		}
		return "any"
	}
	if s.Format != "" {
		name += " (" + s.Format + ")"
	}
	return name
}

func typeNames(refs openapi3.SchemaRefs) string {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, TypeName(ref))
	}
	return strings.Join(names, ", ")
}
