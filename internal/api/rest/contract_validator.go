package rest

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// OpenAPIDocument returns the embedded API description
func OpenAPIDocument() []byte {
	return openAPIDocument
}

// LoadOpenAPI parses and validates the embedded document
func LoadOpenAPI(ctx context.Context) (*openapi3.T, error) {
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(openAPIDocument)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}
	return doc, nil
}

// ContractValidator checks requests against the published API contract
type ContractValidator struct {
	doc    *openapi3.T
	router routers.Router
}

// NewContractValidator builds a validator over the embedded document
func NewContractValidator(ctx context.Context) (*ContractValidator, error) {
	doc, err := LoadOpenAPI(ctx)
	if err != nil {
		return nil, err
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}
	return &ContractValidator{doc: doc, router: router}, nil
}

// ValidateRequest matches req to an operation and validates its parameters
// and body. Bearer authentication is enforced by the middleware, not here.
func (cv *ContractValidator) ValidateRequest(req *http.Request) error {
	route, pathParams, err := cv.router.FindRoute(req)
	if err != nil {
		return fmt.Errorf("no matching route found: %w", err)
	}
	input := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}
	if err := openapi3filter.ValidateRequest(req.Context(), input); err != nil {
		return fmt.Errorf("request validation failed: %w", err)
	}
	return nil
}

// HasOperation reports whether the document describes method+path
func (cv *ContractValidator) HasOperation(method, path string) bool {
	item := cv.doc.Paths.Find(path)
	if item == nil {
		return false
	}
	return item.GetOperation(method) != nil
}
