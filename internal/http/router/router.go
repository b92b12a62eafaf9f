// Package router arma el handler HTTP del nodo sobre chi.
package router

import (
	"net/http"

	clusterctrl "github.com/dropDatabas3/policyreg/internal/http/controllers/cluster"
	"github.com/dropDatabas3/policyreg/internal/http/controllers/health"
	"github.com/dropDatabas3/policyreg/internal/http/controllers/policies"
	httperrors "github.com/dropDatabas3/policyreg/internal/http/errors"
	mw "github.com/dropDatabas3/policyreg/internal/http/middlewares"
	"github.com/dropDatabas3/policyreg/internal/rate"
	"github.com/go-chi/chi/v5"
)

// Deps contiene todo lo que necesita el router.
type Deps struct {
	Policies *policies.Controller
	Cluster  *clusterctrl.Controller
	Health   *health.Controller

	// Leader decide si las escrituras se aceptan en este nodo.
	Leader mw.LeaderState
	// LeaderURLs nodeID -> base URL, para redirects opcionales al líder.
	LeaderURLs map[string]string

	// Metrics handler de /metrics (promhttp). Opcional.
	Metrics http.Handler

	// RateLimiter limita escrituras de /v1/policies. Opcional.
	RateLimiter rate.Limiter
}

// New registra todas las rutas.
//
//	GET    /readyz
//	GET    /metrics
//	GET    /v1/policies
//	GET    /v1/policies/{name}
//	PUT    /v1/policies/{name}            (líder)
//	DELETE /v1/policies/{name}            (líder)
//	POST   /internal/v1/acks
//	GET    /internal/v1/cluster/members
//	POST   /internal/v1/cluster/members   (líder)
//	DELETE /internal/v1/cluster/members/{id} (líder)
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.WithRecover(), mw.WithRequestID(), mw.WithMetrics())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// Health y métricas sin logging (muy frecuentes)
	if d.Health != nil {
		r.Get("/readyz", d.Health.Readyz)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(mw.WithLogging())

		if d.Policies != nil {
			r.Route("/v1/policies", func(r chi.Router) {
				r.Use(mw.RequireLeader(d.Leader, d.LeaderURLs), mw.WithWriteRateLimit(d.RateLimiter))
				r.Get("/", d.Policies.List)
				r.Get("/{name}", d.Policies.Get)
				r.Put("/{name}", d.Policies.Put)
				r.Delete("/{name}", d.Policies.Delete)
			})
		}

		if d.Cluster != nil {
			r.Route("/internal/v1", func(r chi.Router) {
				// Los acks llegan al líder desde los followers: sin RequireLeader.
				r.Post("/acks", d.Cluster.Ack)
				r.Route("/cluster/members", func(r chi.Router) {
					r.Use(mw.RequireLeader(d.Leader, d.LeaderURLs))
					r.Get("/", d.Cluster.Members)
					r.Post("/", d.Cluster.AddMember)
					r.Delete("/{id}", d.Cluster.RemoveMember)
				})
			})
		}
	})

	return r
}
