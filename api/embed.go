// Package api embeds the OpenAPI description served by the HTTP API.
package api

import _ "embed"

//go:embed openapi.yml
var OpenAPISpec []byte
