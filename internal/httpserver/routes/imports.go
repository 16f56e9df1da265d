package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/matjip/internal/httpserver/deps"
	"github.com/MrSnakeDoc/matjip/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/matjip/internal/httpserver/mw"
)

func init() { Mount("/api/imports", registerImports) }

func registerImports(r chi.Router, d deps.Deps) {
	limit := mw.RateLimit(mw.RateLimitConfig{
		Rate:       d.ImportRate,
		Burst:      d.ImportBurst,
		MaxEntries: 10000,
		TrustProxy: d.TrustProxy,
	})

	r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))

	// global sweep, operators only
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)).Post("/reenrich", handlers.Reenrich(d))

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireUser)
		r.With(limit).Post("/naver", handlers.ImportNaver(d))
		r.Get("/", handlers.ListImports(d))
		r.Delete("/{id}", handlers.UndoImport(d))
	})
}
