// Package aggregator assembles one OpenAPI document per requested name from
// the sources of the proxy configuration.
package aggregator

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/getkin/kin-openapi/openapi3"
	"golang.org/x/sync/errgroup"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/fetch"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/merge"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/metrics"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/proxyconfig"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/routeindex"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/transform"
)

// DefaultMaxConcurrentFetches bounds the fetches running at once within one aggregation.
const DefaultMaxConcurrentFetches = 8

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithMaxConcurrentFetches overrides DefaultMaxConcurrentFetches. Values
// below one are ignored.
func WithMaxConcurrentFetches(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxConcurrentFetches = n
		}
	}
}

// Aggregator builds merged documents. It is safe for concurrent use: every
// call works on the configuration snapshot current when it started.
type Aggregator struct {
	store                *proxyconfig.Store
	fetcher              fetch.Fetcher
	registry             *transform.Registry
	log                  logger.ILogger
	maxConcurrentFetches int
}

// New returns an Aggregator reading its configuration from store.
func New(store *proxyconfig.Store, fetcher fetch.Fetcher, registry *transform.Registry, log logger.ILogger, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:                store,
		fetcher:              fetcher,
		registry:             registry,
		log:                  log,
		maxConcurrentFetches: DefaultMaxConcurrentFetches,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// job is one source document to fetch and fold.
type job struct {
	cluster *proxyconfig.Cluster
	dest    *proxyconfig.Destination
	source  *proxyconfig.SwaggerSource
	path    string

	doc *openapi3.T
}

// Aggregate returns the document called name.
//
// In CommonDocument mode the common document folds every cluster; in
// PerCluster mode a document folds the cluster of the same name. Any other
// name yields an empty document. Sources are fetched in parallel and folded
// in configuration order. Any error aborts the whole call.
func (a *Aggregator) Aggregate(ctx context.Context, name string) (doc *openapi3.T, err error) {
	start := time.Now()
	cfg := a.store.Load()
	defer func() {
		paths := 0
		if doc != nil {
			paths = doc.Paths.Len()
		}
		metrics.RecordAggregation(ctx, metricsDocument(cfg, name), err, time.Since(start), paths)
	}()

	idx := routeindex.Build(cfg.Routes, routeindex.Options{AnyMethod: cfg.Options.PublishAnyMethodRoutes})

	jobs := plan(selectClusters(cfg, name))
	if len(jobs) == 0 {
		return merge.EmptyDocument(name), nil
	}

	if err := a.fetchAll(ctx, jobs); err != nil {
		a.log.Errorf("Failed to aggregate %q: %v", name, err)
		return nil, err
	}

	m := merge.New(name, merge.Options{
		SchemaPolicy: cfg.Options.SchemaConflictPolicy,
		PathPolicy:   cfg.Options.PathConflictPolicy,
	})
	routes := make(map[string][]*proxyconfig.Route)
	for _, j := range jobs {
		clusterRoutes, ok := routes[j.cluster.Name]
		if !ok {
			clusterRoutes = cfg.RoutesForCluster(j.cluster.Name)
			routes[j.cluster.Name] = clusterRoutes
		}
		if err := a.fold(m, cfg.Options, idx, clusterRoutes, j); err != nil {
			a.log.Errorf("Failed to aggregate %q: %v", name, err)
			return nil, err
		}
	}

	stats := m.Stats()
	a.log.Infof("Aggregated %q from %d documents: %d paths, %d schemas (%d renamed, %d combined, %d duplicate paths skipped) in %s",
		name, len(jobs), stats.Paths, stats.Schemas, stats.RenamedSchemas, stats.CombinedSchemas, stats.SkippedPaths, time.Since(start))
	return m.Result(), nil
}

// Documents returns the names Aggregate can produce a non-empty document for.
func (a *Aggregator) Documents() []string {
	return documentNames(a.store.Load())
}

// metricsDocument keeps the document tag bounded: names requested from the
// outside that cfg cannot produce share one tag value.
func metricsDocument(cfg *proxyconfig.Config, name string) string {
	if slices.Contains(documentNames(cfg), name) {
		return name
	}
	return metrics.UnknownDocument
}

func documentNames(cfg *proxyconfig.Config) []string {
	var names []string
	for _, cluster := range cfg.Clusters {
		if !cluster.HasSources() {
			continue
		}
		if cfg.Options.DocumentMode == proxyconfig.CommonDocument {
			return []string{cfg.Options.CommonDocumentName}
		}
		names = append(names, cluster.Name)
	}
	return names
}

func selectClusters(cfg *proxyconfig.Config, name string) []*proxyconfig.Cluster {
	if cfg.Options.DocumentMode == proxyconfig.CommonDocument {
		if name == cfg.Options.CommonDocumentName {
			return cfg.Clusters
		}
		return nil
	}
	if cluster := cfg.Cluster(name); cluster != nil {
		return []*proxyconfig.Cluster{cluster}
	}
	return nil
}

func plan(clusters []*proxyconfig.Cluster) []*job {
	var jobs []*job
	for _, cluster := range clusters {
		for _, dest := range cluster.Destinations {
			for _, source := range dest.Swaggers {
				for _, path := range source.Paths {
					jobs = append(jobs, &job{cluster: cluster, dest: dest, source: source, path: path})
				}
			}
		}
	}
	return jobs
}

func (a *Aggregator) fetchAll(ctx context.Context, jobs []*job) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxConcurrentFetches)

	for _, j := range jobs {
		g.Go(func() error {
			doc, err := a.fetcher.Fetch(gctx, fetch.Target{Cluster: j.cluster.Name, Destination: j.dest}, j.path)
			metrics.RecordFetch(ctx, j.cluster.Name, err)
			if err != nil {
				return err
			}
			j.doc = doc
			return nil
		})
	}
	return g.Wait()
}

func (a *Aggregator) fold(m *merge.Merger, opts proxyconfig.Options, idx routeindex.Index, routes []*proxyconfig.Route, j *job) error {
	if err := m.AddComponents(j.doc); err != nil {
		return fmt.Errorf("cluster %q source %s: %w", j.cluster.Name, j.path, err)
	}

	for _, entry := range merge.FilterPaths(j.doc, merge.FilterFor(j.source), idx) {
		if err := a.transformOperations(entry.Item, opts.UnrecognizedTransformPolicy, routes); err != nil {
			return err
		}
		if err := m.AddPath(entry.Key, entry.Item); err != nil {
			return err
		}
	}

	m.AppendSecurity(j.doc.Security)
	m.AppendTags(j.doc.Tags)
	if j.source.MetadataPath != "" && j.source.MetadataPath == j.path {
		m.SetInfo(j.doc.Info)
	}
	return nil
}

func (a *Aggregator) transformOperations(item *openapi3.PathItem, policy proxyconfig.TransformPolicy, routes []*proxyconfig.Route) error {
	ops := item.Operations()
	methods := make([]string, 0, len(ops))
	for method := range ops {
		methods = append(methods, method)
	}
	sort.Strings(methods)

	for _, method := range methods {
		for _, route := range routes {
			for _, directive := range route.Transforms {
				if err := a.registry.ApplyOperation(ops[method], route.Name, directive, policy); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
