package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"route-tracker/internal/api/handlers"
	"route-tracker/internal/auth"
	"route-tracker/internal/platform/obs"
	"route-tracker/internal/session"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(ctl *session.Controller, authn *auth.Authenticator) http.Handler {
	mux := http.NewServeMux()

	h := &handlers.SessionHandler{Controller: ctl, Auth: authn}
	guard := func(fn http.HandlerFunc) http.Handler { return requireAuth(authn, fn) }

	mux.HandleFunc("GET /health", handlers.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /login", h.Login)

	mux.Handle("POST /logout", guard(h.Logout))
	mux.Handle("PUT /position", guard(h.UpdatePosition))
	mux.Handle("DELETE /position", guard(h.ClearPosition))
	mux.Handle("POST /stops", guard(h.UploadStops))
	mux.Handle("POST /route", guard(h.ComputeRoute))
	mux.Handle("GET /route", guard(h.GetRoute))
	mux.Handle("DELETE /route", guard(h.ResetRoute))
	mux.Handle("POST /route/stops/{index}/complete", guard(h.CompleteStop))
	mux.Handle("POST /route/stops/{index}/skip", guard(h.SkipStop))
	mux.Handle("GET /route/navigation", guard(h.Navigation))
	mux.Handle("POST /tick", guard(h.Tick))
	mux.Handle("PUT /view", guard(h.SetView))

	return requestIDMiddleware(loggingMiddleware(metricsMiddleware(mux)))
}
