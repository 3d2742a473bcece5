// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"concord/internal/config"
	"concord/internal/infrastructure"
	"concord/pkg/middleware"
	"concord/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// The event hub is registered with the lifecycle coordinator so observers
// are notified on shutdown.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(cfg, runtime)

	domain.Hub.Start(runtime.Lifecycle)

	mux := http.NewServeMux()
	registerRoutes(mux, domain)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.MaxBody(cfg.API.MaxBodySizeBytes()))
	m.Use(middleware.Logger(runtime.Infrastructure.Logger))

	return m, nil
}
