package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	legacyrouter "github.com/getkin/kin-openapi/routers/legacy"

	"github.com/frahmantamala/messaging-permissions/internal"
)

// OpenAPIValidator rejects requests whose parameters or body do not match
// the published contract. Requests for paths the document does not describe
// are passed through untouched.
type OpenAPIValidator struct {
	router routers.Router
	logger *slog.Logger
}

func NewOpenAPIValidatorFromFile(path string, logger *slog.Logger) (*OpenAPIValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi document %s: %w", path, err)
	}
	return NewOpenAPIValidator(doc, logger)
}

func NewOpenAPIValidator(doc *openapi3.T, logger *slog.Logger) (*OpenAPIValidator, error) {
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	router, err := legacyrouter.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAPIValidator{router: router, logger: logger}, nil
}

func (v *OpenAPIValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := v.router.FindRoute(r)
		if err != nil {
			// unknown route or method; let chi answer 404/405
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			v.logger.WarnContext(r.Context(), "request rejected by openapi validation",
				"method", r.Method,
				"path", r.URL.Path,
				"error", err)
			writeValidationError(w, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeValidationError(w http.ResponseWriter, err error) {
	message := "request does not match the API contract"
	field := ""

	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			field = reqErr.Parameter.Name
		}
		if reqErr.Reason != "" {
			message = reqErr.Reason
		}
		var schemaErr *openapi3.SchemaError
		if errors.As(reqErr.Err, &schemaErr) {
			if ptr := schemaErr.JSONPointer(); len(ptr) > 0 {
				field = ptr[len(ptr)-1]
			}
			message = schemaErr.Reason
		}
	}

	appErr := internal.NewValidationError(message, internal.ErrCodeValidationFailed)
	if field != "" {
		appErr = internal.NewValidationFieldError(field, message, internal.ErrCodeValidationFailed)
	}

	status, body := appErr.ToHTTPResponse()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
