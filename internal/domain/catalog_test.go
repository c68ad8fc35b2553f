package domain

import (
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogDoc = `{
  "openapi": "3.0.3",
  "info": {"title": "Billing API", "version": "3.2", "description": "Invoices"},
  "servers": [{"url": "https://api.example.com"}],
  "tags": [{"name": "invoices", "description": "Invoice management"}],
  "paths": {
    "/invoices": {
      "parameters": [{"name": "tenant", "in": "query", "schema": {"type": "string"}}],
      "post": {
        "tags": ["invoices"],
        "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Invoice"}}}},
        "responses": {"201": {"description": "created"}}
      },
      "get": {
        "tags": ["invoices"],
        "operationId": "listInvoices",
        "parameters": [
          {"name": "tenant", "in": "query", "required": true, "schema": {"type": "string"}},
          {"name": "X-Api-Key", "in": "header", "schema": {"type": "string", "format": "uuid"}}
        ],
        "responses": {
          "404": {"description": "missing"},
          "200": {"description": "ok", "content": {"application/json": {"schema": {"type": "array", "items": {"$ref": "#/components/schemas/Invoice"}}}}}
        }
      }
    },
    "/health": {"get": {"responses": {"200": {"description": "ok"}}}}
  },
  "components": {
    "schemas": {
      "Invoice": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string"},
          "customer": {"nullable": true, "allOf": [{"$ref": "#/components/schemas/Customer"}]}
        }
      },
      "Customer": {"type": "object", "properties": {"name": {"type": "string"}}}
    },
    "securitySchemes": {"bearer": {"type": "http", "scheme": "bearer"}}
  }
}`

func TestFromOpenAPI(t *testing.T) {
	doc, err := openapi3.NewLoader().LoadFromData([]byte(catalogDoc))
	require.NoError(t, err)

	c := FromOpenAPI("billing", doc)

	assert.Equal(t, "billing", c.Name)
	assert.Equal(t, "Billing API", c.Title)
	assert.Equal(t, "3.2", c.Version)
	assert.Equal(t, []Server{{URL: "https://api.example.com"}}, c.Servers)

	require.Len(t, c.Endpoints, 3)
	assert.Equal(t, "/health", c.Endpoints[0].Path)
	assert.Equal(t, "GET", c.Endpoints[1].Method)
	assert.Equal(t, "POST", c.Endpoints[2].Method)

	list := c.Endpoints[1]
	assert.Equal(t, "listInvoices", list.OperationID)
	assert.Equal(t, []Parameter{
		{Name: "tenant", In: "query", Required: true, Type: "string"},
		{Name: "X-Api-Key", In: "header", Type: "string (uuid)"},
	}, list.Parameters, "operation parameters override path parameters")
	require.Len(t, list.Responses, 2)
	assert.Equal(t, "200", list.Responses[0].Status)
	assert.Equal(t, []Media{{ContentType: "application/json", Type: "array of Invoice"}}, list.Responses[0].Media)

	create := c.Endpoints[2]
	require.NotNil(t, create.RequestBody)
	assert.True(t, create.RequestBody.Required)
	assert.Equal(t, "Invoice", create.RequestBody.Media[0].Type)
	assert.Equal(t, []Parameter{{Name: "tenant", In: "query", Type: "string"}}, create.Parameters)

	require.Len(t, c.Schemas, 2)
	assert.Equal(t, "Customer", c.Schemas[0].Name)
	invoice := c.Schemas[1]
	assert.Equal(t, "object", invoice.Type)
	assert.Equal(t, []Property{
		{Name: "customer", Type: "Customer", Nullable: true},
		{Name: "id", Type: "string", Required: true},
	}, invoice.Properties)

	assert.Equal(t, []SecurityScheme{{Name: "bearer", Type: "http", Scheme: "bearer"}}, c.SecuritySchemes)
}

func TestFromOpenAPINil(t *testing.T) {
	c := FromOpenAPI("idle", nil)
	assert.Equal(t, "idle", c.Title)
	assert.Empty(t, c.Endpoints)
}

func TestByTag(t *testing.T) {
	c := &Catalog{
		Tags: []Tag{{Name: "invoices", Description: "Invoice management"}},
		Endpoints: []Endpoint{
			{Path: "/a", Method: "GET", Tags: []string{"invoices", "reports"}},
			{Path: "/b", Method: "GET"},
			{Path: "/c", Method: "GET", Tags: []string{"invoices"}},
		},
	}

	groups := c.ByTag()
	require.Len(t, groups, 3)
	assert.Equal(t, DefaultTag, groups[0].Tag)
	assert.Equal(t, "invoices", groups[1].Tag)
	assert.Equal(t, "Invoice management", groups[1].Description)
	assert.Len(t, groups[1].Endpoints, 2)
	assert.Equal(t, "reports", groups[2].Tag)
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		name   string
		schema *openapi3.SchemaRef
		want   string
	}{
		{name: "nil", schema: nil, want: ""},
		{name: "ref", schema: openapi3.NewSchemaRef("#/components/schemas/Foo", nil), want: "Foo"},
		{name: "string", schema: openapi3.NewStringSchema().NewRef(), want: "string"},
		{name: "array", schema: openapi3.NewArraySchema().WithItems(openapi3.NewIntegerSchema()).NewRef(), want: "array of integer"},
		{name: "untyped", schema: openapi3.NewSchema().NewRef(), want: "any"},
		{name: "one of", schema: openapi3.NewOneOfSchema(openapi3.NewStringSchema(), openapi3.NewBoolSchema()).NewRef(), want: "one of string, boolean"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeName(tt.schema))
		})
	}
}
