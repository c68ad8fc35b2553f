package aggerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsIs(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name     string
		err      error
		sentinel error
		contains string
	}{
		{
			name:     "fetch",
			err:      &FetchError{Cluster: "billing", Destination: "primary", URL: "http://b/swagger.json", Cause: cause},
			sentinel: ErrFetch,
			contains: `cluster "billing"`,
		},
		{
			name:     "fetch status",
			err:      &FetchError{URL: "http://b/swagger.json", StatusCode: 503},
			sentinel: ErrFetch,
			contains: "status 503",
		},
		{
			name:     "parse",
			err:      &ParseError{URL: "http://b/swagger.json", Cause: cause},
			sentinel: ErrParse,
			contains: "parse error in http://b/swagger.json",
		},
		{
			name:     "schema conflict",
			err:      &SchemaConflictError{Schema: "Invoice", Property: "total", LeftType: "string", RightType: "integer"},
			sentinel: ErrSchemaConflict,
			contains: `property "total"`,
		},
		{
			name:     "path conflict",
			err:      &PathConflictError{Path: "/a"},
			sentinel: ErrPathConflict,
			contains: `"/a"`,
		},
		{
			name:     "unrecognized transform",
			err:      &UnrecognizedTransformError{Route: "r1", Directive: "Bogus"},
			sentinel: ErrUnrecognizedTransform,
			contains: `Bogus on route "r1"`,
		},
		{
			name:     "configuration",
			err:      &ConfigurationError{Option: "clusters", Message: "must be a mapping"},
			sentinel: ErrConfiguration,
			contains: "for clusters: must be a mapping",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("aggregating: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Contains(t, tt.err.Error(), tt.contains)
		})
	}
}

func TestErrorsAsAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("outer: %w", &FetchError{URL: "http://x", Cause: cause})

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "http://x", fetchErr.URL)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrParse)
}
