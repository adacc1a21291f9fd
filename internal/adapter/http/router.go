package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(deployH *DeployHandler, unitH *UnitHandler, apiToken string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware)
	r.Use(bodySizeLimitMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMiddleware(apiToken))

		r.Route("/deploys", func(r chi.Router) {
			r.Post("/", deployH.Create)
			r.Get("/{id}", deployH.Get)
		})

		r.Post("/pipelines", deployH.RunPipeline)

		r.Route("/units", func(r chi.Router) {
			r.Get("/", unitH.List)
			r.Route("/{unit}", func(r chi.Router) {
				r.Get("/", unitH.Get)
				r.Get("/status", unitH.Status)
				r.Get("/health", unitH.Health)
				r.Get("/logs", unitH.GetLogs)
				r.Post("/teardown", unitH.Teardown)
			})
		})
	})

	return r
}
