package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/seqimprove/seqimprove-go/pkg/annotation"
	"github.com/seqimprove/seqimprove-go/pkg/models"
	"github.com/seqimprove/seqimprove-go/pkg/tools"
)

// SequenceAnnotator annotates a design against feature libraries
type SequenceAnnotator interface {
	Annotate(ctx context.Context, raw string, libraryIDs []string, cleanFirst bool) (*annotation.Result, error)
}

// AnnotationHandler handles design annotation, cleanup and conversion
type AnnotationHandler struct {
	annotator SequenceAnnotator
	cleaner   tools.Cleaner
	converter tools.Converter
}

// NewAnnotationHandler creates a new annotation handler
func NewAnnotationHandler(annotator SequenceAnnotator, cleaner tools.Cleaner, converter tools.Converter) *AnnotationHandler {
	return &AnnotationHandler{
		annotator: annotator,
		cleaner:   cleaner,
		converter: converter,
	}
}

// HandleAnnotateSequence handles POST /api/annotateSequence
func (h *AnnotationHandler) HandleAnnotateSequence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.AnnotateSequenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.AnnotateSequenceError{
			ErrorMessage: fmt.Sprintf("Invalid request body: %v", err),
		})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.AnnotateSequenceError{ErrorMessage: err.Error()})
		return
	}

	result, err := h.annotator.Annotate(r.Context(), req.CompleteSbolContent, req.PartLibraries, req.CleanSBOL)
	if err != nil {
		status := http.StatusInternalServerError
		message := err.Error()
		var aerr *annotation.Error
		if errors.As(err, &aerr) {
			message = aerr.Message
			if aerr.Kind == annotation.BadRequest {
				status = http.StatusBadRequest
			}
		}
		writeJSONResponse(w, status, models.AnnotateSequenceError{
			Sbol:         req.CompleteSbolContent,
			ErrorMessage: message,
		})
		return
	}

	writeJSONResponse(w, http.StatusOK, models.AnnotateSequenceResponse{
		RunID:       result.RunID,
		Annotations: result.Annotations,
		Failures:    result.Failures,
	})
}

// HandleCleanSBOL handles POST /api/cleanSBOL
func (h *AnnotationHandler) HandleCleanSBOL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.CleanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Sbol) == "" {
		writeErrorResponse(w, http.StatusBadRequest, "sbol is required")
		return
	}

	cleaned, err := h.cleaner.Clean(r.Context(), req.Sbol, req.Namespace)
	if err != nil {
		writeErrorResponse(w, toolStatus(err), fmt.Sprintf("Failed to clean document: %v", err))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.CleanResponse{Sbol: cleaned})
}

// HandleConvert handles POST /api/convert
func (h *AnnotationHandler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.ConvertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.converter.Convert(r.Context(), req.Content, req.From, req.To)
	if err != nil {
		writeErrorResponse(w, toolStatus(err), fmt.Sprintf("Failed to convert document: %v", err))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.ConvertResponse{
		Content: out,
		Format:  strings.ToLower(strings.TrimSpace(req.To)),
	})
}

func toolStatus(err error) int {
	switch {
	case errors.Is(err, tools.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, tools.ErrToolFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
