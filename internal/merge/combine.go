package merge

import (
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/aggerrors"
)

// maxCompositionDepth bounds allOf/oneOf nesting when flattening a schema.
const maxCompositionDepth = 64

// flattened is the property view of a schema with its compositions folded in.
type flattened struct {
	properties map[string]*openapi3.SchemaRef
	required   []string
}

// CombineSchemas merges two schemas published under the same name.
//
// Both sides are flattened: own properties plus the properties of every
// allOf and oneOf member, recursively. Properties present on one side only
// become nullable. Properties present on both sides keep the left definition,
// and a different declared type on each side is a SchemaConflictError. The
// result carries no allOf or oneOf, and requires what both sides require.
func CombineSchemas(name string, left, right *openapi3.SchemaRef) (*openapi3.SchemaRef, error) {
	l, err := flatten(name, left)
	if err != nil {
		return nil, err
	}
	r, err := flatten(name, right)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(l.properties)+len(r.properties))
	for prop := range l.properties {
		names = append(names, prop)
	}
	for prop := range r.properties {
		if _, ok := l.properties[prop]; !ok {
			names = append(names, prop)
		}
	}
	sort.Strings(names)

	properties := make(openapi3.Schemas, len(names))
	for _, prop := range names {
		lp, inLeft := l.properties[prop]
		rp, inRight := r.properties[prop]

		switch {
		case inLeft && inRight:
			lt, rt := declaredType(lp), declaredType(rp)
			if lt != "" && rt != "" && lt != rt {
				return nil, &aggerrors.SchemaConflictError{Schema: name, Property: prop, LeftType: lt, RightType: rt}
			}
			properties[prop] = lp
		case inLeft:
			properties[prop] = nullable(lp)
		default:
			properties[prop] = nullable(rp)
		}
	}

	combined := &openapi3.Schema{}
	if base := baseSchema(left, right); base != nil {
		*combined = *base
	}
	combined.AllOf = nil
	combined.OneOf = nil
	combined.Properties = properties
	combined.Required = intersect(l.required, r.required, properties)
	if combined.Type == nil && len(properties) > 0 {
		combined.Type = &openapi3.Types{openapi3.TypeObject}
	}

	return &openapi3.SchemaRef{Value: combined}, nil
}

func baseSchema(left, right *openapi3.SchemaRef) *openapi3.Schema {
	if left != nil && left.Value != nil {
		return left.Value
	}
	if right != nil {
		return right.Value
	}
	return nil
}

func flatten(name string, ref *openapi3.SchemaRef) (*flattened, error) {
	f := &flattened{properties: make(map[string]*openapi3.SchemaRef)}
	seen := make(map[*openapi3.Schema]bool)
	if err := f.collect(name, ref, 0, seen); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *flattened) collect(name string, ref *openapi3.SchemaRef, depth int, seen map[*openapi3.Schema]bool) error {
	if ref == nil || ref.Value == nil || seen[ref.Value] {
		return nil
	}
	if depth > maxCompositionDepth {
		return &aggerrors.SchemaConflictError{Schema: name, Message: "composition nesting is too deep"}
	}
	seen[ref.Value] = true

	schema := ref.Value
	for prop, propRef := range schema.Properties {
		if _, ok := f.properties[prop]; !ok {
			f.properties[prop] = propRef
		}
	}
	f.required = append(f.required, schema.Required...)

	for _, member := range schema.AllOf {
		if err := f.collect(name, member, depth+1, seen); err != nil {
			return err
		}
	}
	for _, member := range schema.OneOf {
		if err := f.collect(name, member, depth+1, seen); err != nil {
			return err
		}
	}
	return nil
}

func declaredType(ref *openapi3.SchemaRef) string {
	if ref == nil || ref.Value == nil || ref.Value.Type == nil {
		return ""
	}
	return strings.Join(ref.Value.Type.Slice(), ",")
}

// nullable returns a nullable copy of ref. A reference cannot carry siblings,
// so it is wrapped in an allOf.
func nullable(ref *openapi3.SchemaRef) *openapi3.SchemaRef {
	if ref.Ref != "" {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{
			Nullable: true,
			AllOf:    openapi3.SchemaRefs{ref},
		}}
	}
	if ref.Value == nil {
		return ref
	}
	schema := *ref.Value
	schema.Nullable = true
	return &openapi3.SchemaRef{Value: &schema}
}

func intersect(left, right []string, properties openapi3.Schemas) []string {
	inRight := make(map[string]bool, len(right))
	for _, name := range right {
		inRight[name] = true
	}

	var out []string
	added := make(map[string]bool)
	for _, name := range left {
		if !inRight[name] || added[name] {
			continue
		}
		if _, ok := properties[name]; !ok {
			continue
		}
		added[name] = true
		out = append(out, name)
	}
	return out
}
