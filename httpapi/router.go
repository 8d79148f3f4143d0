package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/knaw-huc/textsurf/pool"
)

// NewRouter builds the full textsurf HTTP surface over p, routed with
// chi. log receives one line per request.
func NewRouter(p *pool.Pool, log *logrus.Logger, baseURL string) http.Handler {
	a := &api{pool: p, log: log}

	r := chi.NewRouter()
	r.Use(serverHeaderMiddleware)
	r.Use(corsMiddleware)
	r.Use(loggingMiddleware(log))

	r.Get("/", a.list)
	r.Delete("/", a.deleteAll)
	r.Get("/stat/*", a.stat)
	r.Get("/*", a.get)
	r.Post("/*", a.create)
	r.Put("/*", a.put)
	r.Delete("/*", a.deleteOne)

	r.Route("/api2", func(r chi.Router) {
		r.Get("/{id}", a.api2Get)
		r.Get("/{id}/{region}", a.api2GetRegion)
		r.Post("/{id}", a.api2Create)
		r.Put("/{id}", a.api2Put)
		r.Delete("/{id}", a.api2Delete)
	})

	mountOpenAPI(r, baseURL)
	return r
}
