package middlewares

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/policyreg/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// WithMetrics instrumenta requests con contadores, latencia e inflight.
// La etiqueta de ruta es el patrón de chi (/v1/policies/{name}), no el path
// concreto, para no explotar la cardinalidad.
func WithMetrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method := strings.ToUpper(r.Method)
			metrics.HTTPInflight.Inc()
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				metrics.HTTPInflight.Dec()
				route := "unmatched"
				if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}
				metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
				metrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
