package merge

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

const schemaRefPrefix = "#/components/schemas/"

func schemaRef(name string) string {
	return schemaRefPrefix + name
}

// refRewriter points schema references of one document at renamed schemas.
type refRewriter struct {
	refMap      map[string]string // "#/components/schemas/Old" -> "#/components/schemas/New"
	bareNameMap map[string]string // "Old" -> "New", for discriminator shorthand
	visited     map[*openapi3.Schema]bool
}

func newRefRewriter(renames map[string]string) *refRewriter {
	r := &refRewriter{
		refMap:      make(map[string]string, len(renames)),
		bareNameMap: make(map[string]string, len(renames)),
		visited:     make(map[*openapi3.Schema]bool),
	}
	for oldName, newName := range renames {
		r.refMap[schemaRef(oldName)] = schemaRef(newName)
		r.bareNameMap[oldName] = newName
	}
	return r
}

func (r *refRewriter) rewriteDocument(doc *openapi3.T) {
	if c := doc.Components; c != nil {
		for _, schema := range c.Schemas {
			r.rewriteSchema(schema)
		}
		for _, param := range c.Parameters {
			r.rewriteParameter(param)
		}
		for _, resp := range c.Responses {
			r.rewriteResponse(resp)
		}
		for _, body := range c.RequestBodies {
			r.rewriteRequestBody(body)
		}
		for _, header := range c.Headers {
			r.rewriteHeader(header)
		}
		for _, callback := range c.Callbacks {
			r.rewriteCallback(callback)
		}
	}

	if doc.Paths != nil {
		for _, item := range doc.Paths.Map() {
			r.rewritePathItem(item)
		}
	}
}

func (r *refRewriter) rewriteSchema(ref *openapi3.SchemaRef) {
	if ref == nil {
		return
	}
	if ref.Ref != "" {
		if newRef, ok := r.refMap[ref.Ref]; ok {
			ref.Ref = newRef
		}
		// The target is rewritten where it is declared.
		return
	}

	schema := ref.Value
	if schema == nil || r.visited[schema] {
		return
	}
	r.visited[schema] = true

	for _, prop := range schema.Properties {
		r.rewriteSchema(prop)
	}
	r.rewriteSchema(schema.AdditionalProperties.Schema)
	r.rewriteSchema(schema.Items)
	for _, s := range schema.AllOf {
		r.rewriteSchema(s)
	}
	for _, s := range schema.AnyOf {
		r.rewriteSchema(s)
	}
	for _, s := range schema.OneOf {
		r.rewriteSchema(s)
	}
	r.rewriteSchema(schema.Not)

	if schema.Discriminator != nil {
		for key, value := range schema.Discriminator.Mapping {
			if newRef, ok := r.refMap[value]; ok {
				schema.Discriminator.Mapping[key] = newRef
			} else if newName, ok := r.bareNameMap[value]; ok {
				schema.Discriminator.Mapping[key] = newName
			}
		}
	}
}

func (r *refRewriter) rewriteParameter(ref *openapi3.ParameterRef) {
	if ref == nil || ref.Ref != "" || ref.Value == nil {
		return
	}
	r.rewriteSchema(ref.Value.Schema)
	r.rewriteContent(ref.Value.Content)
}

func (r *refRewriter) rewriteHeader(ref *openapi3.HeaderRef) {
	if ref == nil || ref.Ref != "" || ref.Value == nil {
		return
	}
	r.rewriteSchema(ref.Value.Schema)
	r.rewriteContent(ref.Value.Content)
}

func (r *refRewriter) rewriteResponse(ref *openapi3.ResponseRef) {
	if ref == nil || ref.Ref != "" || ref.Value == nil {
		return
	}
	r.rewriteContent(ref.Value.Content)
	for _, header := range ref.Value.Headers {
		r.rewriteHeader(header)
	}
}

func (r *refRewriter) rewriteRequestBody(ref *openapi3.RequestBodyRef) {
	if ref == nil || ref.Ref != "" || ref.Value == nil {
		return
	}
	r.rewriteContent(ref.Value.Content)
}

func (r *refRewriter) rewriteContent(content openapi3.Content) {
	for _, mediaType := range content {
		if mediaType != nil {
			r.rewriteSchema(mediaType.Schema)
		}
	}
}

func (r *refRewriter) rewriteCallback(ref *openapi3.CallbackRef) {
	if ref == nil || ref.Ref != "" || ref.Value == nil {
		return
	}
	for _, item := range ref.Value.Map() {
		r.rewritePathItem(item)
	}
}

func (r *refRewriter) rewritePathItem(item *openapi3.PathItem) {
	if item == nil || item.Ref != "" {
		return
	}
	for _, param := range item.Parameters {
		r.rewriteParameter(param)
	}
	for _, op := range item.Operations() {
		r.rewriteOperation(op)
	}
}

func (r *refRewriter) rewriteOperation(op *openapi3.Operation) {
	if op == nil {
		return
	}
	for _, param := range op.Parameters {
		r.rewriteParameter(param)
	}
	r.rewriteRequestBody(op.RequestBody)
	if op.Responses != nil {
		for _, resp := range op.Responses.Map() {
			r.rewriteResponse(resp)
		}
	}
	for _, callback := range op.Callbacks {
		r.rewriteCallback(callback)
	}
}

// schemaRefName returns the schema name a local reference points at, or "".
func schemaRefName(ref string) string {
	name, ok := strings.CutPrefix(ref, schemaRefPrefix)
	if !ok {
		return ""
	}
	return name
}
