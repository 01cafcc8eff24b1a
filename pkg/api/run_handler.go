package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/seqimprove/seqimprove-go/pkg/models"
	"github.com/seqimprove/seqimprove-go/pkg/runstore"
)

// RunReader reads the annotation run history
type RunReader interface {
	GetRun(ctx context.Context, id string) (*models.AnnotationRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.AnnotationRun, error)
}

// RunHandler handles annotation run history requests
type RunHandler struct {
	runs RunReader
}

// NewRunHandler creates a new run handler
func NewRunHandler(runs RunReader) *RunHandler {
	return &RunHandler{runs: runs}
}

// HandleRuns handles GET /api/runs
func (h *RunHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runs, err := h.runs.ListRuns(r.Context(), parseLimit(r, runstore.DefaultListLimit))
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list runs: %v", err))
		return
	}
	writeJSONResponse(w, http.StatusOK, runs)
}

// HandleRun handles GET /api/runs/{id}
func (h *RunHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if idx := strings.Index(runID, "/"); idx != -1 {
		runID = runID[:idx]
	}
	if runID == "" {
		h.HandleRuns(w, r)
		return
	}

	run, err := h.runs.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("Run not found: %s", runID))
			return
		}
		writeErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get run: %v", err))
		return
	}
	writeJSONResponse(w, http.StatusOK, run)
}
