package api

import (
	"net/http"

	"concord/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain) {
	routes.Register(
		mux,
		domain.Items.Handler().Routes(),
		domain.Traits.Handler().Routes(),
		domain.Validations.Handler().Routes(),
	)

	// Websocket upgrade bypasses the route group plumbing; the hub is its
	// own handler.
	mux.Handle("GET /events", domain.Hub)
}
