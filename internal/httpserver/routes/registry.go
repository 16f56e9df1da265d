package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/matjip/internal/httpserver/deps"
)

// Registrar adds one group of routes.
type Registrar func(r chi.Router, d deps.Deps)

type mount struct {
	prefix string
	reg    Registrar
}

var mounts []mount

// Register adds reg at the router root.
func Register(reg Registrar) { Mount("", reg) }

// Mount adds reg inside a sub-router at prefix. Files in this package
// call it from init.
func Mount(prefix string, reg Registrar) {
	mounts = append(mounts, mount{prefix: prefix, reg: reg})
}

// RegisterAll mounts every registrar on r in registration order. Called
// once from httpserver.NewRouter.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, m := range mounts {
		if m.prefix == "" {
			m.reg(r, d)
			continue
		}
		r.Route(m.prefix, func(sub chi.Router) { m.reg(sub, d) })
	}
}
