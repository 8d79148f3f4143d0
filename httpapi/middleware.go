package httpapi

import (
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// serverVersion is stamped into every response's Server header.
// Set from cmd/textsurf's build-time version string.
var serverVersion = "dev"

// SetVersion overrides the version reported in the Server header.
func SetVersion(v string) { serverVersion = v }

// corsMiddleware wraps handler with a fixed
// "Access-Control-Allow-Origin: *" policy, set on every response whether
// or not the request carries an Origin header.
func corsMiddleware(handler http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}).Handler(handler)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		c.ServeHTTP(w, r)
	})
}

// serverHeaderMiddleware stamps every response with Server: textsurf/<version>.
func serverHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "textsurf/"+serverVersion)
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware emits one structured line per request at debug level,
// and at error level when the handler reports a server-side failure.
func loggingMiddleware(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			entry := log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   sw.status,
				"duration": time.Since(start),
			})
			if sw.status >= 500 {
				entry.Error("request failed")
			} else {
				entry.Debug("request handled")
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
