// Package transform holds the route transform plugins. A plugin may build a
// runtime request transform for the proxy, rewrite documented operations so
// they describe what callers of the proxy actually send, or both.
package transform

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/aggerrors"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/proxyconfig"
)

// RequestTransform mutates a request before it is forwarded to a destination.
type RequestTransform func(*http.Request)

// RequestTransformFactory builds request transforms from route directives.
type RequestTransformFactory interface {
	// Validate reports whether the factory handles params and, if so, what is wrong with them.
	Validate(params map[string]string) (handled bool, errs []error)
	// Build returns the transform for params. handled is false when the
	// directive belongs to another factory.
	Build(params map[string]string) (transform RequestTransform, handled bool, err error)
}

// OperationTransformer rewrites a documented operation for a route directive.
type OperationTransformer interface {
	TransformOperation(op *openapi3.Operation, params map[string]string) (handled bool)
}

// ErrNoCapability is returned when registering a plugin that implements
// neither RequestTransformFactory nor OperationTransformer.
var ErrNoCapability = errors.New("plugin implements no transform capability")

// Registry keeps plugins in registration order, split by capability.
type Registry struct {
	factories    []RequestTransformFactory
	transformers []OperationTransformer
}

// NewRegistry returns a registry holding plugins.
func NewRegistry(plugins ...any) (*Registry, error) {
	r := &Registry{}
	for _, plugin := range plugins {
		if err := r.Register(plugin); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Default returns a registry with the built-in plugins.
func Default() *Registry {
	return &Registry{
		factories:    []RequestTransformFactory{HeaderRename{}, RequestHeader{}},
		transformers: []OperationTransformer{HeaderRename{}},
	}
}

// Register adds plugin under every capability it implements.
func (r *Registry) Register(plugin any) error {
	factory, isFactory := plugin.(RequestTransformFactory)
	transformer, isTransformer := plugin.(OperationTransformer)
	if !isFactory && !isTransformer {
		return fmt.Errorf("%w: %T", ErrNoCapability, plugin)
	}

	if isFactory {
		r.factories = append(r.factories, factory)
	}
	if isTransformer {
		r.transformers = append(r.transformers, transformer)
	}
	return nil
}

// ApplyOperation runs the first operation transformer that handles directive.
// A directive no transformer handles is still recognized when a request
// transform factory validates it. An unrecognized directive returns an
// UnrecognizedTransformError unless policy is IgnoreUnrecognized.
func (r *Registry) ApplyOperation(op *openapi3.Operation, route string, directive proxyconfig.Transform, policy proxyconfig.TransformPolicy) error {
	for _, transformer := range r.transformers {
		if transformer.TransformOperation(op, directive.Values) {
			return nil
		}
	}

	if r.recognized(directive) || policy == proxyconfig.IgnoreUnrecognized {
		return nil
	}
	return &aggerrors.UnrecognizedTransformError{Route: route, Directive: directive.Name}
}

func (r *Registry) recognized(directive proxyconfig.Transform) bool {
	for _, factory := range r.factories {
		if handled, _ := factory.Validate(directive.Values); handled {
			return true
		}
	}
	return false
}

// Validate checks every directive of route against the request transform
// factories, joining all problems found.
func (r *Registry) Validate(route *proxyconfig.Route) error {
	var errs []error
	for _, directive := range route.Transforms {
		handled := false
		for _, factory := range r.factories {
			ok, problems := factory.Validate(directive.Values)
			if !ok {
				continue
			}
			handled = true
			for _, problem := range problems {
				errs = append(errs, fmt.Errorf("route %q transform %s: %w", route.Name, directive.Name, problem))
			}
			break
		}
		if !handled {
			errs = append(errs, &aggerrors.UnrecognizedTransformError{Route: route.Name, Directive: directive.Name})
		}
	}
	return errors.Join(errs...)
}

// BuildRequestTransforms returns the request transform chain of route in
// directive order.
func (r *Registry) BuildRequestTransforms(route *proxyconfig.Route) ([]RequestTransform, error) {
	chain := make([]RequestTransform, 0, len(route.Transforms))

	for _, directive := range route.Transforms {
		built := false
		for _, factory := range r.factories {
			transform, handled, err := factory.Build(directive.Values)
			if err != nil {
				return nil, fmt.Errorf("route %q transform %s: %w", route.Name, directive.Name, err)
			}
			if handled {
				chain = append(chain, transform)
				built = true
				break
			}
		}
		if !built {
			return nil, &aggerrors.UnrecognizedTransformError{Route: route.Name, Directive: directive.Name}
		}
	}

	return chain, nil
}

// Chain applies transforms to req in order.
func Chain(req *http.Request, transforms []RequestTransform) {
	for _, transform := range transforms {
		transform(req)
	}
}
