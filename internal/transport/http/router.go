// Package http assembles the route tree and the middleware chain.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"supplytrace/internal/eventlog"
	"supplytrace/internal/platform/middleware"
	"supplytrace/internal/transport/http/shared"
	dErrors "supplytrace/pkg/domain-errors"
)

// Registrar mounts a module's routes onto the router. Both domain handlers
// implement it.
type Registrar interface {
	Register(r chi.Router)
}

// Deps carries everything the router needs. Events may be nil, in which case
// the events route reports an empty log.
type Deps struct {
	Logger   *slog.Logger
	Identity Registrar
	Product  Registrar
	Events   eventlog.Store
	Timeout  time.Duration
}

// NewRouter wires the middleware chain and mounts all routes.
func NewRouter(deps Deps) http.Handler {
	timeout := deps.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recovery(deps.Logger),
		middleware.RequestID,
		middleware.RequestTime,
		middleware.Logger(deps.Logger),
		middleware.Timeout(timeout),
	)

	deps.Identity.Register(r)
	deps.Product.Register(r)

	r.Get("/events", handleEvents(deps.Events))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func handleEvents(store eventlog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			shared.WriteJSON(w, http.StatusOK, []eventlog.Event{})
			return
		}
		events, err := store.List(r.Context())
		if err != nil {
			shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list events"))
			return
		}
		if events == nil {
			events = []eventlog.Event{}
		}
		shared.WriteJSON(w, http.StatusOK, events)
	}
}
