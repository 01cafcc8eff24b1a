package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/seqimprove/seqimprove-go/pkg/models"
	"github.com/seqimprove/seqimprove-go/pkg/ner"
)

// TextAnnotator grounds free text to ontology terms
type TextAnnotator interface {
	AnnotateText(ctx context.Context, text string) (*ner.Aggregation, error)
}

// PartFinder finds registry parts similar to a design
type PartFinder interface {
	FindSimilar(ctx context.Context, topLevelURI string) []models.SimilarPart
}

// DiscoveryHandler handles free-text annotation and similar-part lookups
type DiscoveryHandler struct {
	text    TextAnnotator
	similar PartFinder
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(text TextAnnotator, similar PartFinder) *DiscoveryHandler {
	return &DiscoveryHandler{
		text:    text,
		similar: similar,
	}
}

// HandleAnnotateText handles POST /api/annotateText
func (h *DiscoveryHandler) HandleAnnotateText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.AnnotateTextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeErrorResponse(w, http.StatusBadRequest, "text is required")
		return
	}

	agg, err := h.text.AnnotateText(r.Context(), req.Text)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ner.ErrServiceFailed) || errors.Is(err, ner.ErrMalformedResponse) {
			status = http.StatusBadGateway
		}
		writeErrorResponse(w, status, fmt.Sprintf("Failed to annotate text: %v", err))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.AnnotateTextResponse{
		Text:        req.Text,
		Annotations: agg.Groups,
	})
}

// HandleFindSimilarParts handles POST /api/findSimilarParts. Lookup
// failures yield an empty list.
func (h *DiscoveryHandler) HandleFindSimilarParts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.FindSimilarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.FindSimilarResponse{
		SimilarParts: h.similar.FindSimilar(r.Context(), req.TopLevelURI),
	})
}
