package proxyconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/aggerrors"
)

// LoadFile reads, decodes and validates the proxy configuration file at path.
func LoadFile(path string) (*Config, error) {
	// #nosec G304 -- path is provided by trusted config/flag.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy configuration: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes and validates a YAML or JSON proxy configuration.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &aggerrors.ConfigurationError{Message: "failed to decode proxy configuration", Cause: err}
	}

	cfg.applyDefaults()

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UnmarshalYAML decodes the clusters mapping, keeping document order.
func (c *Clusters) UnmarshalYAML(value *yaml.Node) error {
	items, err := decodeNamed(value, "clusters", func(cluster *Cluster, name string) {
		cluster.Name = name
	})
	if err != nil {
		return err
	}
	*c = items
	return nil
}

// UnmarshalYAML decodes the destinations mapping, keeping document order.
func (d *Destinations) UnmarshalYAML(value *yaml.Node) error {
	items, err := decodeNamed(value, "destinations", func(dest *Destination, name string) {
		dest.Name = name
	})
	if err != nil {
		return err
	}
	*d = items
	return nil
}

// UnmarshalYAML decodes the routes mapping, keeping document order.
func (r *Routes) UnmarshalYAML(value *yaml.Node) error {
	items, err := decodeNamed(value, "routes", func(route *Route, name string) {
		route.Name = name
	})
	if err != nil {
		return err
	}
	*r = items
	return nil
}

// UnmarshalYAML decodes a flat string mapping; the first key names the transform.
func (t *Transform) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return &aggerrors.ConfigurationError{Option: "transforms", Message: fmt.Sprintf("line %d: must be a mapping", value.Line)}
	}
	if len(value.Content) == 0 {
		return &aggerrors.ConfigurationError{Option: "transforms", Message: fmt.Sprintf("line %d: empty transform", value.Line)}
	}

	values := make(map[string]string, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return &aggerrors.ConfigurationError{
				Option:  "transforms." + key.Value,
				Message: fmt.Sprintf("line %d: value must be a scalar", val.Line),
			}
		}
		if _, dup := values[key.Value]; dup {
			return &aggerrors.ConfigurationError{Option: "transforms." + key.Value, Message: "duplicate key"}
		}
		values[key.Value] = val.Value
	}

	t.Name = value.Content[0].Value
	t.Values = values
	return nil
}

// decodeNamed decodes a YAML mapping of name to T into a slice in document
// order, rejecting duplicate names.
func decodeNamed[T any](value *yaml.Node, section string, setName func(*T, string)) ([]*T, error) {
	if value.Kind == yaml.ScalarNode && value.ShortTag() == "!!null" {
		return nil, nil
	}
	if value.Kind != yaml.MappingNode {
		return nil, &aggerrors.ConfigurationError{Option: section, Message: fmt.Sprintf("line %d: must be a mapping", value.Line)}
	}

	items := make([]*T, 0, len(value.Content)/2)
	seen := make(map[string]struct{}, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		if _, dup := seen[name]; dup {
			return nil, &aggerrors.ConfigurationError{Option: section + "." + name, Message: "duplicate key"}
		}
		seen[name] = struct{}{}

		item := new(T)
		if err := value.Content[i+1].Decode(item); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", section, name, err)
		}
		setName(item, name)
		items = append(items, item)
	}

	return items, nil
}
