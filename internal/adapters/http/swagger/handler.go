// Package swagger serves the OpenAPI description of the session API.
package swagger

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register attaches GET /openapi.yaml to r.
func Register(r chi.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})
}
