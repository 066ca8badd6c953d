package swagger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	httpSwagger "github.com/swaggo/http-swagger"
)

const (
	SpecYAMLPath = "/openapi.yml"
	SpecJSONPath = "/openapi.json"
)

// Document is a validated OpenAPI description kept in both wire formats.
type Document struct {
	raw     []byte
	jsonDoc []byte
	T       *openapi3.T
}

// Load parses and validates an OpenAPI 3 document. A broken description
// fails startup instead of being served.
func Load(ctx context.Context, data []byte) (*Document, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode openapi document: %w", err)
	}
	return &Document{raw: data, jsonDoc: asJSON, T: doc}, nil
}

func (d *Document) ServeYAML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(d.raw)
}

func (d *Document) ServeJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(d.jsonDoc)
}

func Handler() http.Handler {
	return httpSwagger.Handler(
		httpSwagger.URL(SpecYAMLPath),
	)
}
