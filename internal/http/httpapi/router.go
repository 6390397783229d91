package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"vidforge/internal/http/handlers"
	"vidforge/internal/middleware"
)

func NewRouter(app *handlers.App, logger zerolog.Logger, allowedOrigins []string) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(allowedOrigins))

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/renders", func(r chi.Router) {
		r.Post("/", app.CreateRender)
		r.Get("/{id}", app.GetRender)
		r.Delete("/{id}", app.CancelRender)
	})

	return r
}
