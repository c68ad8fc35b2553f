// Package merge folds fetched OpenAPI documents into one.
//
// A Merger is fed documents in a fixed order. Paths are first-write-wins by
// key. Schemas sharing a name are either renamed apart or combined into one,
// depending on the schema conflict policy; every other component category is
// first-write-wins by name.
package merge

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/aggerrors"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/proxyconfig"
)

// OpenAPIVersion is the version declared by merged documents.
const OpenAPIVersion = "3.0.3"

// Options selects the conflict policies of a Merger.
type Options struct {
	SchemaPolicy proxyconfig.SchemaConflictPolicy
	PathPolicy   proxyconfig.PathConflictPolicy
}

// Stats summarizes what a Merger did.
type Stats struct {
	Paths           int
	Schemas         int
	SkippedPaths    int
	RenamedSchemas  int
	CombinedSchemas int
}

// Merger accumulates one merged document. It is not safe for concurrent use.
type Merger struct {
	opts  Options
	doc   *openapi3.T
	stats Stats
}

// EmptyDocument returns a document titled title with no paths.
func EmptyDocument(title string) *openapi3.T {
	return &openapi3.T{
		OpenAPI: OpenAPIVersion,
		Info:    &openapi3.Info{Title: title, Version: "1.0"},
		Paths:   openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas),
		},
	}
}

// New returns a Merger starting from EmptyDocument(title).
func New(title string, opts Options) *Merger {
	if opts.SchemaPolicy == "" {
		opts.SchemaPolicy = proxyconfig.Rename
	}
	if opts.PathPolicy == "" {
		opts.PathPolicy = proxyconfig.KeepFirst
	}
	return &Merger{opts: opts, doc: EmptyDocument(title)}
}

// Result returns the merged document.
func (m *Merger) Result() *openapi3.T {
	return m.doc
}

// Stats returns counters describing the merge so far.
func (m *Merger) Stats() Stats {
	s := m.stats
	s.Paths = m.doc.Paths.Len()
	s.Schemas = len(m.doc.Components.Schemas)
	return s
}

// AddPath inserts item under key unless key is already present. Under the
// Fail path policy a present key is a PathConflictError.
func (m *Merger) AddPath(key string, item *openapi3.PathItem) error {
	if m.doc.Paths.Value(key) != nil {
		if m.opts.PathPolicy == proxyconfig.FailOnConflict {
			return &aggerrors.PathConflictError{Path: key}
		}
		m.stats.SkippedPaths++
		return nil
	}
	m.doc.Paths.Set(key, item)
	return nil
}

// AddComponents merges the components of doc. Under the Rename policy the
// schema references of doc, paths included, are rewritten to the names its
// schemas end up with, so AddComponents must run before the paths of doc are
// added.
func (m *Merger) AddComponents(doc *openapi3.T) error {
	src := doc.Components
	if src == nil {
		return nil
	}
	dst := m.doc.Components

	switch m.opts.SchemaPolicy {
	case proxyconfig.Combine:
		if err := m.combineSchemas(src.Schemas); err != nil {
			return err
		}
	default:
		renames := m.planRenames(src.Schemas)
		if len(renames) > 0 {
			newRefRewriter(renames).rewriteDocument(doc)
		}
		for _, name := range sortedKeys(src.Schemas) {
			if newName, ok := renames[name]; ok {
				dst.Schemas[newName] = src.Schemas[name]
				m.stats.RenamedSchemas++
				continue
			}
			if _, exists := dst.Schemas[name]; !exists {
				dst.Schemas[name] = src.Schemas[name]
			}
		}
	}

	dst.Parameters = firstWins(dst.Parameters, src.Parameters)
	dst.Headers = firstWins(dst.Headers, src.Headers)
	dst.RequestBodies = firstWins(dst.RequestBodies, src.RequestBodies)
	dst.Responses = firstWins(dst.Responses, src.Responses)
	dst.SecuritySchemes = firstWins(dst.SecuritySchemes, src.SecuritySchemes)
	dst.Examples = firstWins(dst.Examples, src.Examples)
	dst.Links = firstWins(dst.Links, src.Links)
	dst.Callbacks = firstWins(dst.Callbacks, src.Callbacks)
	dst.Extensions = firstWins(dst.Extensions, src.Extensions)
	return nil
}

func (m *Merger) combineSchemas(incoming openapi3.Schemas) error {
	merged := m.doc.Components.Schemas

	for _, name := range sortedKeys(incoming) {
		schema := incoming[name]
		existing, ok := merged[name]
		if !ok {
			merged[name] = schema
			continue
		}
		if sameSchema(existing, schema) {
			continue
		}

		combined, err := CombineSchemas(name, existing, schema)
		if err != nil {
			return err
		}
		// Updating in place keeps resolved references to the schema current.
		if existing.Ref == "" && existing.Value != nil {
			*existing.Value = *combined.Value
		} else {
			merged[name] = combined
		}
		if schema.Ref == "" && schema.Value != nil {
			*schema.Value = *combined.Value
		}
		m.stats.CombinedSchemas++
	}
	return nil
}

// planRenames picks new names for incoming schemas that collide with a
// different merged schema. A schema identical to its merged namesake is
// dropped, unless it references a schema being renamed. New names are the
// original name suffixed from 2 upwards, skipping names taken by merged or
// incoming schemas.
func (m *Merger) planRenames(incoming openapi3.Schemas) map[string]string {
	merged := m.doc.Components.Schemas
	renames := make(map[string]string)
	var identical []string

	for _, name := range sortedKeys(incoming) {
		existing, ok := merged[name]
		if !ok {
			continue
		}
		if sameSchema(existing, incoming[name]) {
			identical = append(identical, name)
			continue
		}
		renames[name] = ""
	}

	for changed := true; changed; {
		changed = false
		for i, name := range identical {
			if name == "" {
				continue
			}
			for _, dep := range referencedSchemas(incoming[name]) {
				if _, ok := renames[dep]; ok {
					renames[name] = ""
					identical[i] = ""
					changed = true
					break
				}
			}
		}
	}

	assigned := make(map[string]bool)
	for _, name := range sortedKeys(renames) {
		for n := 2; ; n++ {
			candidate := fmt.Sprintf("%s%d", name, n)
			_, inMerged := merged[candidate]
			_, inIncoming := incoming[candidate]
			if inMerged || inIncoming || assigned[candidate] {
				continue
			}
			renames[name] = candidate
			assigned[candidate] = true
			break
		}
	}
	return renames
}

// AppendSecurity appends reqs to the document security requirements.
func (m *Merger) AppendSecurity(reqs openapi3.SecurityRequirements) {
	m.doc.Security = append(m.doc.Security, reqs...)
}

// AppendTags appends tags to the document tags.
func (m *Merger) AppendTags(tags openapi3.Tags) {
	m.doc.Tags = append(m.doc.Tags, tags...)
}

// SetInfo replaces the document info block with a copy of info.
func (m *Merger) SetInfo(info *openapi3.Info) {
	if info == nil {
		return
	}
	cp := *info
	m.doc.Info = &cp
}

func sameSchema(a, b *openapi3.SchemaRef) bool {
	left, err := json.Marshal(a)
	if err != nil {
		return false
	}
	right, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(left) == string(right)
}

// referencedSchemas lists the schema names ref points at directly, without
// following references.
func referencedSchemas(ref *openapi3.SchemaRef) []string {
	var names []string
	seen := make(map[*openapi3.Schema]bool)

	var walk func(*openapi3.SchemaRef)
	walk = func(r *openapi3.SchemaRef) {
		if r == nil {
			return
		}
		if r.Ref != "" {
			if name := schemaRefName(r.Ref); name != "" {
				names = append(names, name)
			}
			return
		}
		s := r.Value
		if s == nil || seen[s] {
			return
		}
		seen[s] = true

		for _, prop := range s.Properties {
			walk(prop)
		}
		walk(s.AdditionalProperties.Schema)
		walk(s.Items)
		for _, member := range s.AllOf {
			walk(member)
		}
		for _, member := range s.AnyOf {
			walk(member)
		}
		for _, member := range s.OneOf {
			walk(member)
		}
		walk(s.Not)
	}
	walk(ref)

	return names
}

func firstWins[M ~map[string]V, V any](dst, src M) M {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(M, len(src))
	}
	for name, value := range src {
		if _, ok := dst[name]; !ok {
			dst[name] = value
		}
	}
	return dst
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
