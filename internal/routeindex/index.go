// Package routeindex maps published paths to the HTTP methods the proxy's
// routing rules expose for them.
package routeindex

import (
	"sort"
	"strings"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/proxyconfig"
)

// Options controls how routes are indexed.
type Options struct {
	// AnyMethod makes a route without methods publish every method.
	AnyMethod bool
}

// Index is a read-only mapping of path to published methods.
type Index struct {
	entries map[string]*entry
}

type entry struct {
	methods   map[string]struct{}
	anyMethod bool
}

// Build indexes every route with a non-empty match path. Routes sharing a
// path union their method sets.
func Build(routes proxyconfig.Routes, opts Options) Index {
	entries := make(map[string]*entry, len(routes))

	for _, route := range routes {
		if route == nil || route.Match.Path == "" {
			continue
		}

		e, ok := entries[route.Match.Path]
		if !ok {
			e = &entry{methods: make(map[string]struct{})}
			entries[route.Match.Path] = e
		}

		if len(route.Match.Methods) == 0 && opts.AnyMethod {
			e.anyMethod = true
		}
		for _, method := range route.Match.Methods {
			e.methods[strings.ToUpper(strings.TrimSpace(method))] = struct{}{}
		}
	}

	return Index{entries: entries}
}

// Has reports whether path is published at all.
func (idx Index) Has(path string) bool {
	_, ok := idx.entries[path]
	return ok
}

// Allows reports whether method is published for path.
func (idx Index) Allows(path, method string) bool {
	e, ok := idx.entries[path]
	if !ok {
		return false
	}
	if e.anyMethod {
		return true
	}
	_, ok = e.methods[strings.ToUpper(method)]
	return ok
}

// Methods returns the sorted methods published for path and whether the path
// is indexed. A path published for every method reports ok with no methods.
func (idx Index) Methods(path string) ([]string, bool) {
	e, ok := idx.entries[path]
	if !ok {
		return nil, false
	}

	methods := make([]string, 0, len(e.methods))
	for method := range e.methods {
		methods = append(methods, method)
	}
	sort.Strings(methods)

	return methods, true
}

// Len returns the number of indexed paths.
func (idx Index) Len() int {
	return len(idx.entries)
}
