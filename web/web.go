// Package web provides the JSON reporting API.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cloudmeter/cloudmeter/app"
)

// Handler provides the HTTP endpoints.
type Handler struct {
	reports *app.Service
	logger  zerolog.Logger
}

// Deps contains dependencies for the web handler.
type Deps struct {
	Reports *app.Service
	Logger  zerolog.Logger
}

// New creates the web handler.
func New(deps Deps) *Handler {
	return &Handler{
		reports: deps.Reports,
		logger:  deps.Logger.With().Str("component", "web").Logger(),
	}
}

// Routes returns the HTTP router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requestLogger)

	r.Get("/healthz", h.Health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/reports", h.GetReport)
		r.Post("/refresh", h.Refresh)
		r.Get("/users/{userID}/roles", h.GetUserRoles)
		r.Get("/users/{userID}/attributes", h.GetUserAttributes)
	})

	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		h.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
