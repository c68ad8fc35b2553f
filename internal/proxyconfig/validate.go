package proxyconfig

import (
	"fmt"
	"regexp"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/aggerrors"
)

// Validate checks a decoded configuration and compiles the path filters of
// its sources. It returns the first problem found as a ConfigurationError.
func Validate(cfg *Config) error {
	if cfg == nil {
		return &aggerrors.ConfigurationError{Message: "configuration is missing"}
	}

	if err := validateOptions(cfg.Options); err != nil {
		return err
	}

	for _, cluster := range cfg.Clusters {
		if cluster == nil {
			return &aggerrors.ConfigurationError{Option: "clusters", Message: "null cluster"}
		}
		for _, dest := range cluster.Destinations {
			if err := validateDestination(cluster.Name, dest); err != nil {
				return err
			}
		}
	}

	for _, route := range cfg.Routes {
		if route == nil {
			return &aggerrors.ConfigurationError{Option: "routes", Message: "null route"}
		}
		option := "routes." + route.Name
		if route.ClusterID == "" {
			return &aggerrors.ConfigurationError{Option: option + ".clusterId", Message: "is required"}
		}
		if cfg.Cluster(route.ClusterID) == nil {
			return &aggerrors.ConfigurationError{Option: option + ".clusterId", Value: route.ClusterID, Message: "unknown cluster"}
		}
		for i, t := range route.Transforms {
			if t.Name == "" || len(t.Values) == 0 {
				return &aggerrors.ConfigurationError{Option: fmt.Sprintf("%s.transforms[%d]", option, i), Message: "empty transform"}
			}
		}
	}

	return nil
}

func validateOptions(opts Options) error {
	switch opts.DocumentMode {
	case PerCluster, CommonDocument:
	default:
		return &aggerrors.ConfigurationError{Option: "options.documentMode", Value: opts.DocumentMode, Message: "expected PerCluster or CommonDocument"}
	}

	switch opts.SchemaConflictPolicy {
	case Rename, Combine:
	default:
		return &aggerrors.ConfigurationError{Option: "options.schemaConflictPolicy", Value: opts.SchemaConflictPolicy, Message: "expected Rename or Combine"}
	}

	switch opts.PathConflictPolicy {
	case KeepFirst, FailOnConflict:
	default:
		return &aggerrors.ConfigurationError{Option: "options.pathConflictPolicy", Value: opts.PathConflictPolicy, Message: "expected KeepFirst or Fail"}
	}

	switch opts.UnrecognizedTransformPolicy {
	case FailUnrecognized, IgnoreUnrecognized:
	default:
		return &aggerrors.ConfigurationError{Option: "options.unrecognizedTransformPolicy", Value: opts.UnrecognizedTransformPolicy, Message: "expected Fail or Ignore"}
	}

	return nil
}

func validateDestination(cluster string, dest *Destination) error {
	option := fmt.Sprintf("clusters.%s.destinations", cluster)
	if dest == nil {
		return &aggerrors.ConfigurationError{Option: option, Message: "null destination"}
	}
	option += "." + dest.Name

	if len(dest.Swaggers) > 0 && dest.Address == "" {
		return &aggerrors.ConfigurationError{Option: option + ".address", Message: "is required when swaggers are declared"}
	}

	for i, source := range dest.Swaggers {
		sourceOption := fmt.Sprintf("%s.swaggers[%d]", option, i)
		if source == nil {
			return &aggerrors.ConfigurationError{Option: sourceOption, Message: "null source"}
		}
		if len(source.Paths) == 0 {
			return &aggerrors.ConfigurationError{Option: sourceOption + ".paths", Message: "at least one path is required"}
		}
		if source.PathFilterRegexPattern == "" {
			source.filter = nil
			continue
		}
		filter, err := regexp.Compile(source.PathFilterRegexPattern)
		if err != nil {
			return &aggerrors.ConfigurationError{
				Option:  sourceOption + ".pathFilterRegexPattern",
				Value:   source.PathFilterRegexPattern,
				Message: "invalid regular expression",
				Cause:   err,
			}
		}
		source.filter = filter
	}

	return nil
}
