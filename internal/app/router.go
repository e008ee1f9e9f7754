package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tasklight/tasklight/internal/auth"
	"github.com/tasklight/tasklight/internal/observability"
	"github.com/tasklight/tasklight/internal/tasks"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	Gate        *auth.Gate
	AuthHandler *auth.Handler
	TaskHandler *tasks.Handler
	Metrics     *observability.Metrics
}

// NewRouter constructs the chi.Router with Tasklight defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(params.Gate.Attach)
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(AuthRateLimit(params.Config))
		params.AuthHandler.MountRoutes(r)
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Use(params.Gate.RequireUser)
		params.TaskHandler.MountRoutes(r)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
