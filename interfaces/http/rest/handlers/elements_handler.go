package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/aymericbeaumet/loupe/application/session"
	"github.com/aymericbeaumet/loupe/domain/graph"
	apperrors "github.com/aymericbeaumet/loupe/pkg/errors"
	"github.com/aymericbeaumet/loupe/pkg/validation"
)

// ElementsHandler builds graph elements server side, for clients that lay
// out the graph themselves.
type ElementsHandler struct {
	fetcher session.Fetcher
	builder graph.Builder
	errors  *apperrors.ErrorHandler
	logger  *zap.Logger
}

// NewElementsHandler creates a new elements handler
func NewElementsHandler(fetcher session.Fetcher, errs *apperrors.ErrorHandler, logger *zap.Logger) *ElementsHandler {
	return &ElementsHandler{fetcher: fetcher, errors: errs, logger: logger}
}

// ElementsResponse is returned by GET /api/v1/elements.
type ElementsResponse struct {
	Query    string              `json:"query"`
	Elements []graph.ElementJSON `json:"elements"`
	Stats    graph.Stats         `json:"stats"`
}

// GetElements handles GET /api/v1/elements
func (h *ElementsHandler) GetElements(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if err := validation.Var("query", query, "max=1024"); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	payload, err := h.fetcher.Fetch(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	elements, err := h.builder.Build(payload)
	if err != nil {
		h.errors.Handle(w, r, apperrors.NewMalformedError("trie fragment", err))
		return
	}

	respondJSON(w, h.logger, http.StatusOK, ElementsResponse{
		Query:    query,
		Elements: graph.EncodeAll(elements),
		Stats:    graph.Summarize(elements),
	})
}
