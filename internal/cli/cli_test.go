package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const backendDoc = `{
  "openapi": "3.0.3",
  "info": {"title": "Billing API", "version": "1"},
  "paths": {
    "/invoices": {
      "get": {"summary": "list", "responses": {"200": {"description": "ok"}}},
      "post": {"summary": "create", "responses": {"201": {"description": "created"}}}
    }
  }
}`

const proxyTemplate = `
routes:
  invoices:
    clusterId: billing
    match: {path: /invoices, methods: [GET]}
    transforms:
      - %s
clusters:
  billing:
    destinations:
      primary:
        address: {{address}}
        swaggers:
          - paths: [/swagger.json]
            addOnlyPublishedPaths: true
`

func writeProxyConfig(t *testing.T, address, transform string) string {
	t.Helper()
	content := strings.Replace(proxyTemplate, "{{address}}", address, 1)
	content = strings.Replace(content, "%s", transform, 1)
	path := filepath.Join(t.TempDir(), "proxy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func backend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(backendDoc))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := New(logger.NewConsoleLogger(io.Discard))
	c.SetOutput(&out)
	c.SetArgs(args)
	err := c.Execute()
	return out.String(), err
}

func TestAggregateCommand(t *testing.T) {
	proxy := writeProxyConfig(t, backend(t).URL, "RequestHeader: X-Trace\n        Set: on")

	out, err := run(t, "aggregate", "--proxy-config", proxy, "--name", "billing")
	require.NoError(t, err)

	var doc struct {
		Paths map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Contains(t, doc.Paths, "/invoices")
	assert.Contains(t, doc.Paths["/invoices"], "get")
	assert.NotContains(t, doc.Paths["/invoices"], "post")
}

func TestAggregateCommandYAMLToFile(t *testing.T) {
	proxy := writeProxyConfig(t, backend(t).URL, "RequestHeader: X-Trace\n        Set: on")
	output := filepath.Join(t.TempDir(), "billing.yaml")

	_, err := run(t, "aggregate", "-p", proxy, "-n", "billing", "-f", "yaml", "-o", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "/invoices:")
}

func TestExportCommand(t *testing.T) {
	proxy := writeProxyConfig(t, backend(t).URL, "RequestHeader: X-Trace\n        Set: on")
	output := filepath.Join(t.TempDir(), "billing.json")

	_, err := run(t, "export", "-p", proxy, "-n", "billing", "-f", "confluence", "-o", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type": "doc"`)
	assert.Contains(t, string(data), "/invoices")
}

func TestExportCommandRejectsFormat(t *testing.T) {
	_, err := run(t, "export", "-p", "unused.yaml", "-n", "billing", "-f", "html", "-o", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestDocumentsCommand(t *testing.T) {
	proxy := writeProxyConfig(t, "http://billing.internal", "RequestHeader: X-Trace\n        Set: on")

	out, err := run(t, "documents", "-p", proxy)
	require.NoError(t, err)
	assert.Equal(t, "billing\n", out)
}

func TestCheckCommand(t *testing.T) {
	good := writeProxyConfig(t, "http://billing.internal", "RenameHeader: X-Api-Key\n        Set: X-Billing-Key")
	out, err := run(t, "check", "-p", good)
	require.NoError(t, err)
	assert.Contains(t, out, "1 clusters, 1 routes, documents: billing")

	bad := writeProxyConfig(t, "http://billing.internal", "PathRemovePrefix: /billing")
	_, err = run(t, "check", "-p", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PathRemovePrefix")
}

func TestMissingProxyConfig(t *testing.T) {
	_, err := run(t, "documents", "-p", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
