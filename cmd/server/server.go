// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/maitredhq/maitred/internal/api"
	"github.com/maitredhq/maitred/internal/api/agendaapi"
	"github.com/maitredhq/maitred/internal/api/availability"
	"github.com/maitredhq/maitred/internal/config"
	"github.com/maitredhq/maitred/internal/ratelimit"
	"github.com/maitredhq/maitred/internal/store"
)

func newServer(cfg *config.Config, db *store.Store) *http.Server {
	availability.InitHandlers(cfg, db)
	agendaapi.InitHandlers(cfg, db)

	router := http.NewServeMux()
	registerRoutes(router, cfg)

	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithAuthToken(cfg.App.AuthToken),
		api.WithRequestID,
	)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, cfg *config.Config) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Availability reads are the hot, retried path; rate limit them per
	// caller so the client's backoff has a Retry-After hint to honor.
	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: cfg.Availability.RateLimitPerMin})
	availabilityMux := http.NewServeMux()
	availability.RegisterRoutes(availabilityMux)
	mux.Handle("/api/v1/availability", limiter.Wrap(availabilityMux))

	agendaapi.RegisterRoutes(mux)
}
