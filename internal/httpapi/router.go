// Package httpapi wires the §6 HTTP surface onto a chi router: health,
// status, agent registry, dispatch, contracts, compression, ingestion,
// critique, and the gut-state/event-stream routes. Grounded on
// Sergey-Bar-Alfred's services/gateway/router/router.go (chi.NewRouter,
// a middleware chain of RequestID/Recoverer/request-logger/body-size-
// limit, versioned r.Route("/v1", ...) mounting).
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/tracerun/coreruntime/internal/agents"
	"github.com/tracerun/coreruntime/internal/compression"
	"github.com/tracerun/coreruntime/internal/contracts"
	"github.com/tracerun/coreruntime/internal/critique"
	"github.com/tracerun/coreruntime/internal/eventstream"
	"github.com/tracerun/coreruntime/internal/gut"
	"github.com/tracerun/coreruntime/internal/ingestion"
	"github.com/tracerun/coreruntime/internal/metrics"
)

// Deps bundles every subsystem the HTTP surface calls into. All fields
// are required.
type Deps struct {
	Registry    *agents.Registry
	Dispatcher  *agents.Dispatcher
	Contracts   *contracts.Store
	Ingestion   *ingestion.Engine
	GutManager  *gut.Manager
	Compression *compression.Engine
	Critique    *critique.Engine
	Stream      *eventstream.Handler
}

// NewRouter builds the full API surface over deps.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)
	r.Use(maxBodySize(2 << 20))

	r.Get("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}).ServeHTTP)

	h := &handlers{deps: deps}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/status", h.status)

		r.Post("/agents/register", h.registerAgent)
		r.Get("/agents", h.listAgents)

		r.Post("/orchestrate", h.orchestrate)
		r.Get("/contracts", h.listContracts)

		r.Post("/compress", h.compress)
		r.Post("/ingest", h.ingest)

		r.Post("/critique", h.critiqueArtifact)
		r.Post("/critique-and-ingest", h.critiqueAndIngest)

		r.Get("/gut/state", h.gutState)
		r.Post("/gut/clear", h.gutClear)
		r.Get("/gut/ws", h.gutWebsocket)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(rw, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("req_id", chimw.GetReqID(r.Context())).
			Int("status", rw.Status()).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

func maxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
