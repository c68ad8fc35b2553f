// Package proxyconfig provides the reverse proxy configuration consumed by the
// aggregator: clusters, destinations, OpenAPI sources, routes and aggregation
// options.
//
// A Config is immutable once loaded. Reloads produce a new Config which is
// swapped into a Store as a whole, so readers always see a consistent snapshot.
package proxyconfig

import (
	"regexp"
)

// DocumentMode selects how clusters map to aggregated documents.
type DocumentMode string

const (
	// PerCluster produces one document per cluster, named after the cluster.
	PerCluster DocumentMode = "PerCluster"
	// CommonDocument folds every cluster into a single document.
	CommonDocument DocumentMode = "CommonDocument"
)

// SchemaConflictPolicy selects how two different schemas sharing a name are merged.
type SchemaConflictPolicy string

const (
	// Rename keeps both schemas, suffixing the later one with a number.
	Rename SchemaConflictPolicy = "Rename"
	// Combine merges both schemas into one, making one-sided properties nullable.
	Combine SchemaConflictPolicy = "Combine"
)

// PathConflictPolicy selects what happens when two sources publish the same path key.
type PathConflictPolicy string

const (
	// KeepFirst keeps the path from the first source in configuration order.
	KeepFirst PathConflictPolicy = "KeepFirst"
	// FailOnConflict aborts the aggregation.
	FailOnConflict PathConflictPolicy = "Fail"
)

// TransformPolicy selects what happens with a transform directive no plugin recognizes.
type TransformPolicy string

const (
	// FailUnrecognized aborts the aggregation.
	FailUnrecognized TransformPolicy = "Fail"
	// IgnoreUnrecognized leaves the operation untouched.
	IgnoreUnrecognized TransformPolicy = "Ignore"
)

// DefaultCommonDocumentName is the document name used in CommonDocument mode
// when none is configured.
const DefaultCommonDocumentName = "gateway"

// Config is the top level proxy configuration.
type Config struct {
	Options  Options  `yaml:"options"`
	Routes   Routes   `yaml:"routes"`
	Clusters Clusters `yaml:"clusters"`
}

// Options holds the aggregation settings.
type Options struct {
	DocumentMode                DocumentMode         `yaml:"documentMode"`
	CommonDocumentName          string               `yaml:"commonDocumentName"`
	SchemaConflictPolicy        SchemaConflictPolicy `yaml:"schemaConflictPolicy"`
	PathConflictPolicy          PathConflictPolicy   `yaml:"pathConflictPolicy"`
	UnrecognizedTransformPolicy TransformPolicy      `yaml:"unrecognizedTransformPolicy"`
	// PublishAnyMethodRoutes treats routes without methods as publishing every method.
	PublishAnyMethodRoutes bool `yaml:"publishAnyMethodRoutes"`
}

// Clusters is an ordered set of clusters keyed by name.
type Clusters []*Cluster

// Cluster is a named group of backend destinations.
type Cluster struct {
	Name         string       `yaml:"-"`
	Destinations Destinations `yaml:"destinations"`
}

// Destinations is an ordered set of destinations keyed by name.
type Destinations []*Destination

// Destination is one backend instance.
type Destination struct {
	Name    string `yaml:"-"`
	Address string `yaml:"address"`
	// AccessTokenClientName references the credential used to call the destination.
	AccessTokenClientName string           `yaml:"accessTokenClientName"`
	Swaggers              []*SwaggerSource `yaml:"swaggers"`
}

// SwaggerSource describes the OpenAPI documents fetched from a destination and
// how their paths are filtered and prefixed.
type SwaggerSource struct {
	// Paths are fetched in order, each yielding one document.
	Paths                  []string `yaml:"paths"`
	PrefixPath             string   `yaml:"prefixPath"`
	PathFilterRegexPattern string   `yaml:"pathFilterRegexPattern"`
	// AddOnlyPublishedPaths keeps only the path and method combinations exposed by routes.
	AddOnlyPublishedPaths bool `yaml:"addOnlyPublishedPaths"`
	// MetadataPath names the source path whose info block becomes the document info.
	MetadataPath string `yaml:"metadataPath"`

	filter *regexp.Regexp
}

// PathFilter returns the compiled PathFilterRegexPattern, or nil when no
// pattern is configured. It is populated by Validate.
func (s *SwaggerSource) PathFilter() *regexp.Regexp {
	return s.filter
}

// Routes is an ordered set of routes keyed by name.
type Routes []*Route

// Route is a proxy routing rule.
type Route struct {
	Name       string      `yaml:"-"`
	ClusterID  string      `yaml:"clusterId"`
	Match      RouteMatch  `yaml:"match"`
	Transforms []Transform `yaml:"transforms"`
}

// RouteMatch holds the request match of a route.
type RouteMatch struct {
	Path    string   `yaml:"path"`
	Methods []string `yaml:"methods"`
}

// Transform is one named transform directive. Name is the first key of the
// directive as written in the configuration.
type Transform struct {
	Name   string
	Values map[string]string
}

// Empty returns a configuration with no clusters and default options.
func Empty() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// IsEmpty reports whether the configuration has no clusters.
func (c *Config) IsEmpty() bool {
	return len(c.Clusters) == 0
}

// Cluster returns the cluster with the given name, or nil.
func (c *Config) Cluster(name string) *Cluster {
	for _, cluster := range c.Clusters {
		if cluster.Name == name {
			return cluster
		}
	}
	return nil
}

// RoutesForCluster returns the routes targeting the given cluster in configuration order.
func (c *Config) RoutesForCluster(clusterID string) []*Route {
	var routes []*Route
	for _, route := range c.Routes {
		if route.ClusterID == clusterID {
			routes = append(routes, route)
		}
	}
	return routes
}

// HasSources reports whether any destination of the cluster declares a source path.
func (c *Cluster) HasSources() bool {
	for _, dest := range c.Destinations {
		for _, source := range dest.Swaggers {
			if len(source.Paths) > 0 {
				return true
			}
		}
	}
	return false
}

func (c *Config) applyDefaults() {
	if c.Options.DocumentMode == "" {
		c.Options.DocumentMode = PerCluster
	}
	if c.Options.CommonDocumentName == "" {
		c.Options.CommonDocumentName = DefaultCommonDocumentName
	}
	if c.Options.SchemaConflictPolicy == "" {
		c.Options.SchemaConflictPolicy = Rename
	}
	if c.Options.PathConflictPolicy == "" {
		c.Options.PathConflictPolicy = KeepFirst
	}
	if c.Options.UnrecognizedTransformPolicy == "" {
		c.Options.UnrecognizedTransformPolicy = FailUnrecognized
	}
}
