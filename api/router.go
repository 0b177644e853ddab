package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterParams router settings
type RouterParams struct {
	// RequestTimeout per request processing timeout
	RequestTimeout time.Duration
	// MetricsPath where to serve metrics. Ignored if MetricsHandler is nil.
	MetricsPath string
	// MetricsHandler optional metrics handler
	MetricsHandler http.Handler
}

/*
NewRouter define the HTTP router

	@param handler *Handler - vault REST handlers
	@param params RouterParams - router settings
	@returns router
*/
func NewRouter(handler *Handler, params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(handler.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(params.RequestTimeout))

	r.Get("/health", handler.Health)
	if params.MetricsHandler != nil {
		r.Method(http.MethodGet, params.MetricsPath, params.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/secret", handler.CreateSecret)
		r.Post("/secret/{id}/unlock", handler.UnlockSecret)
	})

	return r
}
