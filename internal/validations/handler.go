package validations

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"concord/pkg/handlers"
	"concord/pkg/routes"
)

// Handler provides HTTP endpoints for validation dispatch.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "validations"),
	}
}

// Routes returns the route group definition for validation endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/validations",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/dispatch", Handler: h.Dispatch},
			{Method: "POST", Pattern: "/run", Handler: h.Run},
		},
	}
}

// Dispatch accepts an explicit batch and acknowledges before processing.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var cmd DispatchCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidDispatch)
		return
	}

	receipt, err := h.sys.Dispatch(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, receipt)
}

// Run starts a full sweep over unprocessed items for a batch type.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var cmd RunCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidDispatch)
		return
	}

	receipt, err := h.sys.Run(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, receipt)
}
