package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/aggerrors"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/proxyconfig"
)

const openAPIJSON = `{
  "openapi": "3.0.3",
  "info": {"title": "billing", "version": "1.0"},
  "paths": {
    "/invoices": {
      "get": {
        "responses": {
          "200": {
            "description": "ok",
            "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Invoice"}}}
          }
        }
      }
    }
  },
  "components": {
    "schemas": {
      "Invoice": {"type": "object", "properties": {"id": {"type": "string"}}}
    }
  }
}`

const swaggerYAML = `
swagger: "2.0"
info:
  title: legacy
  version: "2.1"
paths:
  /orders:
    get:
      produces: [application/json]
      responses:
        "200":
          description: ok
          schema:
            $ref: "#/definitions/Order"
definitions:
  Order:
    type: object
    properties:
      total:
        type: integer
`

func newTarget(address string) Target {
	return Target{
		Cluster:     "billing",
		Destination: &proxyconfig.Destination{Name: "primary", Address: address},
	}
}

func TestFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/swagger/v1/swagger.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(openAPIJSON))
	})
	mux.HandleFunc("/swagger/v2/swagger.yaml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(swaggerYAML))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := NewHTTPFetcher(NewCachingClients())

	doc, err := fetcher.Fetch(context.Background(), newTarget(server.URL+"/"), "/swagger/v1/swagger.json")
	require.NoError(t, err)
	assert.Equal(t, "billing", doc.Info.Title)
	item := doc.Paths.Value("/invoices")
	require.NotNil(t, item)
	require.NotNil(t, item.Get)
	schema := item.Get.Responses.Value("200").Value.Content.Get("application/json").Schema
	assert.Equal(t, "#/components/schemas/Invoice", schema.Ref)
	require.NotNil(t, schema.Value, "local references are resolved")

	doc, err = fetcher.Fetch(context.Background(), newTarget(server.URL), "swagger/v2/swagger.yaml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc.OpenAPI, "3."), "swagger 2.0 is converted")
	assert.Equal(t, "legacy", doc.Info.Title)
	require.NotNil(t, doc.Paths.Value("/orders"))
	assert.Contains(t, doc.Components.Schemas, "Order")
}

func TestFetchErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})
	mux.HandleFunc("/garbage", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not an api</html>"))
	})
	mux.HandleFunc("/unversioned", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"info": {"title": "x"}}`))
	})
	mux.HandleFunc("/large", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(openAPIJSON))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := NewHTTPFetcher(NewCachingClients(), WithMaxDocumentBytes(64))

	tests := []struct {
		name       string
		address    string
		path       string
		wantErr    error
		wantStatus int
	}{
		{"non-success status", server.URL, "/missing", aggerrors.ErrFetch, http.StatusNotFound},
		{"unreachable destination", "http://127.0.0.1:1", "/swagger.json", aggerrors.ErrFetch, 0},
		{"oversized body", server.URL, "/large", aggerrors.ErrFetch, http.StatusOK},
		{"not a document", server.URL, "/garbage", aggerrors.ErrParse, 0},
		{"unknown version", server.URL, "/unversioned", aggerrors.ErrParse, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fetcher.Fetch(context.Background(), newTarget(tt.address), tt.path)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var fetchErr *aggerrors.FetchError
			if tt.wantErr == aggerrors.ErrFetch {
				require.ErrorAs(t, err, &fetchErr)
				assert.Equal(t, "billing", fetchErr.Cluster)
				assert.Equal(t, "primary", fetchErr.Destination)
				assert.Equal(t, tt.wantStatus, fetchErr.StatusCode)
			}
		})
	}
}

func TestFetchHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(openAPIJSON))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPFetcher(NewCachingClients()).Fetch(ctx, newTarget(server.URL), "/")
	require.Error(t, err)
	assert.ErrorIs(t, err, aggerrors.ErrFetch)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCachingClientsRevalidate(t *testing.T) {
	var hits, revalidations atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			revalidations.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(openAPIJSON))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(NewCachingClients())
	target := newTarget(server.URL)

	for i := 0; i < 2; i++ {
		doc, err := fetcher.Fetch(context.Background(), target, "/swagger.json")
		require.NoError(t, err)
		assert.NotNil(t, doc.Paths.Value("/invoices"))
	}
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(1), revalidations.Load())
}

func TestCachingClientsPerDestination(t *testing.T) {
	clients := NewCachingClients()
	a := &proxyconfig.Destination{Name: "a"}
	b := &proxyconfig.Destination{Name: "b"}

	assert.Same(t, clients.Client("billing", a), clients.Client("billing", a))
	assert.NotSame(t, clients.Client("billing", a), clients.Client("billing", b))
	assert.NotSame(t, clients.Client("billing", a), clients.Client("accounts", a))
	assert.Equal(t, "billing_a", ClientName("billing", "a"))
}

func TestCachingClientsAuthorize(t *testing.T) {
	var seen atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(openAPIJSON))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(NewCachingClients(WithoutCache(), WithAuthorizer(StaticTokens{"identity": "t0ken"})))

	target := newTarget(server.URL)
	target.Destination.AccessTokenClientName = "identity"
	_, err := fetcher.Fetch(context.Background(), target, "/swagger.json")
	require.NoError(t, err)
	assert.Equal(t, "Bearer t0ken", seen.Load())

	unknown := newTarget(server.URL)
	unknown.Destination.Name = "other"
	unknown.Destination.AccessTokenClientName = "nobody"
	_, err = fetcher.Fetch(context.Background(), unknown, "/swagger.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, aggerrors.ErrFetch)
}

func TestCachingClientsFollowDestinationChanges(t *testing.T) {
	var seen atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(openAPIJSON))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(NewCachingClients(WithoutCache(), WithAuthorizer(StaticTokens{"identity": "t0ken"})))

	steps := []struct {
		name      string
		tokenName string
		want      string
	}{
		{name: "anonymous", tokenName: "", want: ""},
		{name: "token client added", tokenName: "identity", want: "Bearer t0ken"},
		{name: "token client removed", tokenName: "", want: ""},
	}
	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			// Each step is a fresh snapshot reusing the cluster and destination names.
			target := newTarget(server.URL)
			target.Destination.AccessTokenClientName = step.tokenName

			_, err := fetcher.Fetch(context.Background(), target, "/swagger.json")
			require.NoError(t, err)
			assert.Equal(t, step.want, seen.Load())
		})
	}
}

func TestCachingClientsRebuildOnAddressChange(t *testing.T) {
	clients := NewCachingClients()
	before := clients.Client("billing", &proxyconfig.Destination{Name: "a", Address: "http://old"})

	assert.Same(t, before, clients.Client("billing", &proxyconfig.Destination{Name: "a", Address: "http://old"}))
	assert.NotSame(t, before, clients.Client("billing", &proxyconfig.Destination{Name: "a", Address: "http://new"}))
}

func TestCachingClientsRetain(t *testing.T) {
	clients := NewCachingClients()
	kept := clients.Client("billing", &proxyconfig.Destination{Name: "a"})
	dropped := clients.Client("billing", &proxyconfig.Destination{Name: "b"})

	clients.Retain(&proxyconfig.Config{Clusters: proxyconfig.Clusters{{
		Name:         "billing",
		Destinations: proxyconfig.Destinations{{Name: "a"}},
	}}})

	assert.Same(t, kept, clients.Client("billing", &proxyconfig.Destination{Name: "a"}))
	assert.NotSame(t, dropped, clients.Client("billing", &proxyconfig.Destination{Name: "b"}))
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		address, path, want string
	}{
		{"http://a", "/s.json", "http://a/s.json"},
		{"http://a/base", "/v1/s.json", "http://a/base/v1/s.json"},
		{"http://a/s", "?format=json", "http://a/s?format=json"},
		{"http://a", "", "http://a"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinURL(tt.address, tt.path))
	}
}
