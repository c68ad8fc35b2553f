package merge

import (
	"regexp"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/proxyconfig"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/routeindex"
)

// SourceFilter restricts and prefixes the paths of one source document.
type SourceFilter struct {
	// Pattern keeps only the original path keys it matches. Nil keeps all.
	Pattern *regexp.Regexp
	Prefix  string
	// OnlyPublished keeps only the prefixed path and method pairs found in the route index.
	OnlyPublished bool
}

// FilterFor returns the filter configured on source.
func FilterFor(source *proxyconfig.SwaggerSource) SourceFilter {
	return SourceFilter{
		Pattern:       source.PathFilter(),
		Prefix:        source.PrefixPath,
		OnlyPublished: source.AddOnlyPublishedPaths,
	}
}

// PathEntry is a path that survived filtering, keyed as it is published.
type PathEntry struct {
	Key      string
	Original string
	Item     *openapi3.PathItem
}

// FilterPaths returns the paths of doc that survive filter, sorted by
// original key. Restricted paths are shallow copies without the operations
// the index does not publish; a path left without operations is dropped.
func FilterPaths(doc *openapi3.T, filter SourceFilter, idx routeindex.Index) []PathEntry {
	if doc.Paths == nil {
		return nil
	}

	items := doc.Paths.Map()
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]PathEntry, 0, len(keys))
	for _, key := range keys {
		item := items[key]
		if item == nil {
			continue
		}
		if filter.Pattern != nil && !filter.Pattern.MatchString(key) {
			continue
		}

		published := filter.Prefix + key
		if filter.OnlyPublished {
			if !idx.Has(published) {
				continue
			}
			item = restrict(item, published, idx)
			if item == nil {
				continue
			}
		}

		entries = append(entries, PathEntry{Key: published, Original: key, Item: item})
	}
	return entries
}

func restrict(item *openapi3.PathItem, key string, idx routeindex.Index) *openapi3.PathItem {
	cp := *item
	for method := range item.Operations() {
		if !idx.Allows(key, method) {
			cp.SetOperation(method, nil)
		}
	}
	if len(cp.Operations()) == 0 {
		return nil
	}
	return &cp
}
