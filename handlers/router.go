package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter monta as rotas HTTP do registro. Com gatherer nil a rota
// /metrics não é registrada.
func NewRouter(reg Registry, logger *slog.Logger, gatherer prometheus.Gatherer) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	propertyHandler := NewPropertyHandler(reg)
	tokenHandler := NewTokenHandler(reg)
	accountHandler := NewAccountHandler(reg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(VerifySignature(logger))

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/collection", propertyHandler.Collection)

	r.Route("/properties", func(r chi.Router) {
		r.Post("/", propertyHandler.MintProperty)
		r.Get("/", propertyHandler.ListProperties)
		r.Get("/{id}", propertyHandler.GetProperty)
	})

	r.Route("/tokens/{id}", func(r chi.Router) {
		r.Get("/owner", tokenHandler.OwnerOf)
		r.Get("/events", tokenHandler.Events)
		r.Post("/transfer", tokenHandler.Transfer)
		r.Post("/approve", tokenHandler.Approve)
		r.Post("/burn", tokenHandler.Burn)
	})

	r.Get("/accounts/{address}/balance", accountHandler.Balance)
	r.Get("/accounts/{address}/tokens", accountHandler.TokensOf)

	return r
}
