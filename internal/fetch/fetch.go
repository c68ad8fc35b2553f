// Package fetch retrieves OpenAPI documents from cluster destinations.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/aggerrors"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/proxyconfig"
)

// DefaultMaxDocumentBytes bounds the size of a fetched document.
const DefaultMaxDocumentBytes int64 = 16 << 20

// Target identifies the destination a document is fetched from.
type Target struct {
	Cluster     string
	Destination *proxyconfig.Destination
}

// Fetcher retrieves and parses one source document.
type Fetcher interface {
	Fetch(ctx context.Context, target Target, sourcePath string) (*openapi3.T, error)
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithMaxDocumentBytes overrides DefaultMaxDocumentBytes.
func WithMaxDocumentBytes(n int64) Option {
	return func(f *HTTPFetcher) {
		f.maxBytes = n
	}
}

// HTTPFetcher fetches documents with GET requests against the destination address.
type HTTPFetcher struct {
	clients  ClientProvider
	maxBytes int64
}

// NewHTTPFetcher returns a fetcher taking its clients from clients.
func NewHTTPFetcher(clients ClientProvider, opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		clients:  clients,
		maxBytes: DefaultMaxDocumentBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs the destination address joined with sourcePath and parses the body.
// Transport failures, non-2xx statuses and oversized bodies are FetchErrors; a
// body that is not an OpenAPI document is a ParseError.
func (f *HTTPFetcher) Fetch(ctx context.Context, target Target, sourcePath string) (*openapi3.T, error) {
	url := JoinURL(target.Destination.Address, sourcePath)
	fetchErr := func(status int, msg string, cause error) error {
		return &aggerrors.FetchError{
			Cluster:     target.Cluster,
			Destination: target.Destination.Name,
			URL:         url,
			StatusCode:  status,
			Message:     msg,
			Cause:       cause,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fetchErr(0, "invalid request", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.8")

	resp, err := f.clients.Client(target.Cluster, target.Destination).Do(req)
	if err != nil {
		return nil, fetchErr(0, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fetchErr(resp.StatusCode, "unexpected status", nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fetchErr(resp.StatusCode, "failed to read body", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fetchErr(resp.StatusCode, fmt.Sprintf("document exceeds %d bytes", f.maxBytes), nil)
	}

	doc, err := Parse(body)
	if err != nil {
		return nil, &aggerrors.ParseError{URL: url, Message: "invalid OpenAPI document", Cause: err}
	}
	return doc, nil
}

// JoinURL appends path to address as written. Separators are the
// configuration's concern, so a path may also be a query such as "?format=json".
func JoinURL(address, path string) string {
	return address + path
}
