package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/seqimprove/seqimprove-go/pkg/library"
	"github.com/seqimprove/seqimprove-go/pkg/metrics"
	"github.com/seqimprove/seqimprove-go/pkg/models"
)

// LibraryRegistry is the part of the library store the API mutates
type LibraryRegistry interface {
	Import(ctx context.Context, id, sourceURL, authToken string) (string, error)
	Remove(id string) error
	List() []models.LibraryInfo
	Len() int
}

// LibraryHandler handles feature library import, removal and listing
type LibraryHandler struct {
	registry LibraryRegistry
	metrics  *metrics.Metrics
}

// NewLibraryHandler creates a new library handler
func NewLibraryHandler(registry LibraryRegistry, m *metrics.Metrics) *LibraryHandler {
	return &LibraryHandler{
		registry: registry,
		metrics:  m,
	}
}

// HandleLibraries handles GET /api/libraries
func (h *LibraryHandler) HandleLibraries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.registry.List())
}

// HandleImport handles POST /api/importLibrary
func (h *LibraryHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.LibraryImportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	id := req.Identifier
	if id == "" {
		id = req.URL
	}

	text, err := h.registry.Import(r.Context(), id, req.URL, req.Token)
	h.metrics.RecordLibraryOperation("import", err)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, library.ErrFetchFailed):
			status = http.StatusBadGateway
		case errors.Is(err, library.ErrParseFailed):
			status = http.StatusUnprocessableEntity
		}
		writeErrorResponse(w, status, fmt.Sprintf("Failed to import library: %v", err))
		return
	}
	h.metrics.SetLibrariesLoaded(h.registry.Len())

	writeJSONResponse(w, http.StatusOK, models.LibraryImportResponse{
		Identifier: id,
		Sbol:       text,
	})
}

// HandleDelete handles POST /api/deleteLibrary
func (h *LibraryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.LibraryDeleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.Identifier == "" {
		writeErrorResponse(w, http.StatusBadRequest, "identifier is required")
		return
	}

	err := h.registry.Remove(req.Identifier)
	h.metrics.RecordLibraryOperation("remove", err)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("Library %s does not exist", req.Identifier))
			return
		}
		writeErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete library: %v", err))
		return
	}
	h.metrics.SetLibrariesLoaded(h.registry.Len())

	writeJSONResponse(w, http.StatusOK, models.LibraryDeleteResponse{
		Message: fmt.Sprintf("Library %s deleted", req.Identifier),
	})
}
