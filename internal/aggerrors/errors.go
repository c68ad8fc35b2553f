// Package aggerrors provides the error kinds returned by an aggregation.
//
// Every kind aborts the aggregation call it occurs in; callers receive no
// partial document. Use errors.Is with the sentinels for coarse checks and
// errors.As with the typed errors when the details matter:
//
//	doc, err := agg.Aggregate(ctx, "billing")
//	if err != nil {
//	    var fetchErr *aggerrors.FetchError
//	    if errors.As(err, &fetchErr) {
//	        // upstream unreachable, map to 502
//	    }
//	}
package aggerrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrFetch indicates a source document could not be retrieved.
	ErrFetch = errors.New("fetch error")

	// ErrParse indicates a retrieved body is not a valid OpenAPI document.
	ErrParse = errors.New("parse error")

	// ErrSchemaConflict indicates two schemas could not be combined.
	ErrSchemaConflict = errors.New("schema conflict")

	// ErrPathConflict indicates a path key collision under a failing policy.
	ErrPathConflict = errors.New("path conflict")

	// ErrUnrecognizedTransform indicates no plugin recognizes a transform directive.
	ErrUnrecognizedTransform = errors.New("unrecognized transform")

	// ErrConfiguration indicates malformed proxy or application configuration.
	ErrConfiguration = errors.New("configuration error")
)

// FetchError represents a network or transport failure, or a non-success
// status, while retrieving a source document.
type FetchError struct {
	Cluster     string
	Destination string
	URL         string
	// StatusCode is the HTTP status received (0 if no response)
	StatusCode int
	Message    string
	Cause      error
}

// Error returns a human-readable error message.
func (e *FetchError) Error() string {
	msg := "fetch error"
	if e.URL != "" {
		msg += " for " + e.URL
	}
	if e.Cluster != "" || e.Destination != "" {
		msg += fmt.Sprintf(" (cluster %q, destination %q)", e.Cluster, e.Destination)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

// ParseError represents a source body that could not be read as an OpenAPI document.
type ParseError struct {
	URL     string
	Message string
	Cause   error
}

// Error returns a human-readable error message.
func (e *ParseError) Error() string {
	msg := "parse error"
	if e.URL != "" {
		msg += " in " + e.URL
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// SchemaConflictError is raised by the combine policy when two same-named
// schemas declare different types for one property.
type SchemaConflictError struct {
	Schema    string
	Property  string
	LeftType  string
	RightType string
	Message   string
}

// Error returns a human-readable error message.
func (e *SchemaConflictError) Error() string {
	msg := "schema conflict"
	if e.Schema != "" {
		msg += " in " + e.Schema
	}
	if e.Property != "" {
		msg += fmt.Sprintf(": property %q is %q on one side and %q on the other", e.Property, e.LeftType, e.RightType)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap returns nil as SchemaConflictError has no underlying cause.
func (e *SchemaConflictError) Unwrap() error {
	return nil
}

// Is reports whether target matches this error type.
func (e *SchemaConflictError) Is(target error) bool {
	return target == ErrSchemaConflict
}

// PathConflictError is raised when a published path key is produced twice and
// the path conflict policy forbids keeping the first one.
type PathConflictError struct {
	Path string
}

// Error returns a human-readable error message.
func (e *PathConflictError) Error() string {
	return fmt.Sprintf("path conflict: %q is published by more than one source", e.Path)
}

// Unwrap returns nil as PathConflictError has no underlying cause.
func (e *PathConflictError) Unwrap() error {
	return nil
}

// Is reports whether target matches this error type.
func (e *PathConflictError) Is(target error) bool {
	return target == ErrPathConflict
}

// UnrecognizedTransformError is raised when no registered plugin recognizes a
// transform directive declared on a route.
type UnrecognizedTransformError struct {
	Route     string
	Directive string
}

// Error returns a human-readable error message.
func (e *UnrecognizedTransformError) Error() string {
	msg := "unrecognized transform"
	if e.Directive != "" {
		msg += " " + e.Directive
	}
	if e.Route != "" {
		msg += fmt.Sprintf(" on route %q", e.Route)
	}
	return msg
}

// Unwrap returns nil as UnrecognizedTransformError has no underlying cause.
func (e *UnrecognizedTransformError) Unwrap() error {
	return nil
}

// Is reports whether target matches this error type.
func (e *UnrecognizedTransformError) Is(target error) bool {
	return target == ErrUnrecognizedTransform
}

// ConfigurationError represents malformed configuration, such as a missing
// required section or an invalid value.
type ConfigurationError struct {
	// Option is the dotted location of the problematic entry (e.g. "clusters.billing.destinations")
	Option  string
	Value   any
	Message string
	Cause   error
}

// Error returns a human-readable error message.
func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Option != "" {
		msg += " for " + e.Option
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
