package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/app"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/httpx"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/log"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log.Logger, NoColor: true}),
		middleware.Recoverer,
	)

	root.Get("/healthz", Health(app))
	root.Method(http.MethodGet, "/metrics", app.Metrics.Handler())
	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Get("/forms/{ref}", PublicGetForm(app))
	api.Group(func(r chi.Router) {
		r.Use(app.Limiter.Middleware)
		r.Post("/forms/submit", PublicSubmitForm(app))
		r.Post("/forms/{ref}/submissions", PublicSubmitForm(app))
	})

	api.Route("/admin", func(r chi.Router) {
		r.Use(middlewares.Admin(app.TokenSecret))

		// CRUD form
		r.Post("/forms", CreateForm(app))
		r.Get("/forms", ListForms(app))
		r.Get("/forms/{id}", GetFormById(app))
		r.Put("/forms/{id}", UpdateForm(app))
		r.Delete("/forms/{id}", DeleteForm(app))

		r.Get("/forms/{id}/submissions", GetFormSubmissions(app))
		r.Get("/submissions/{id}", GetSubmission(app))
		r.Patch("/submissions/{id}", UpdateSubmissionStatus(app))
	})

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	return api
}

func Health(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := app.Ping(r.Context()); err != nil {
			httpx.LogStatus(w, http.StatusServiceUnavailable, log.ErrorLevel, "db.ping")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
