package httpapi

import (
	"embed"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

//go:embed openapi.json swagger.html
var docFiles embed.FS

// mountOpenAPI serves a static, hand-authored OpenAPI document and a
// minimal swagger-ui landing page. The original (main.rs) generates its
// document with utoipa + utoipa-swagger-ui; no Go OpenAPI/swagger-ui
// library appears anywhere in the retrieval pack, so this is carried as
// a deliberate, documented use of embed rather than a fabricated
// dependency (see DESIGN.md).
//
// baseURL, when non-empty (the CLI's --baseurl), is stamped into the
// document's "servers" field so generated clients point at the public
// address rather than the bind address.
func mountOpenAPI(r chi.Router, baseURL string) {
	r.Get("/api-doc/openapi.json", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		b, _ := docFiles.ReadFile("openapi.json")
		if baseURL != "" {
			b = withServerURL(b, baseURL)
		}
		_, _ = w.Write(b)
	})
	r.Get("/swagger-ui", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		b, _ := docFiles.ReadFile("swagger.html")
		_, _ = w.Write(b)
	})
}

func withServerURL(doc []byte, baseURL string) []byte {
	var parsed map[string]any
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return doc
	}
	parsed["servers"] = []map[string]string{{"url": baseURL}}
	patched, err := json.Marshal(parsed)
	if err != nil {
		return doc
	}
	return patched
}
