package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/ground-booking/internal/application"
)

type groundCatalog interface {
	ListResources(ctx context.Context) ([]application.Resource, error)
	GetResource(ctx context.Context, id string) (application.Resource, error)
}

type GroundHandler struct {
	catalog   groundCatalog
	responder responder
}

func NewGroundHandler(catalog groundCatalog, logger *slog.Logger) *GroundHandler {
	return &GroundHandler{catalog: catalog, responder: newResponder(logger)}
}

func (h *GroundHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.catalog == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resources, err := h.catalog.ListResources(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	grounds := make([]groundDTO, 0, len(resources))
	for _, resource := range resources {
		grounds = append(grounds, toGroundDTO(resource))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listGroundsResponse{Grounds: grounds})
}

func (h *GroundHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.catalog == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	groundID, ok := GroundIDFromContext(r.Context())
	if !ok || strings.TrimSpace(groundID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidGroundID)
		return
	}

	resource, err := h.catalog.GetResource(r.Context(), groundID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toGroundDTO(resource))
}
