package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/seqimprove/seqimprove-go/pkg/models"
)

// PluginStatusMessage is the body of GET /status
const PluginStatusMessage = "The plugin is up and running"

// acceptedTypes are the top-level RDF types the curation plugin handles
var acceptedTypes = []string{"Component", "Sequence", "ComponentDefinition"}

// PluginHandler implements the SynBioHub curation plugin contract
type PluginHandler struct {
	frontendLocation string
}

// NewPluginHandler creates a plugin handler that sends users to the
// given front end
func NewPluginHandler(frontendLocation string) *PluginHandler {
	return &PluginHandler{frontendLocation: frontendLocation}
}

// HandleStatus handles GET /status
func (h *PluginHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(PluginStatusMessage))
}

// HandleEvaluate handles POST /evaluate
func (h *PluginHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.PluginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	for _, t := range acceptedTypes {
		if req.Type == t {
			writeJSONResponse(w, http.StatusOK, map[string]any{"needs_interface": false})
			return
		}
	}

	writeJSONResponse(w, http.StatusTeapot, map[string]any{
		"message":  "Supported types include: " + strings.Join(acceptedTypes, ", "),
		"typeSent": req.Type,
	})
}

// HandleRun handles POST /run
func (h *PluginHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body json.RawMessage
	if err := decodeJSON(w, r, &body); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	query, err := formEncode(body)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"needs_interface": true,
		"own_interface":   true,
		"interface":       h.frontendLocation + "?" + query,
	})
}

// formEncode turns a JSON object into a query string, keeping the key
// order of the body. Object, array and null values are written as
// compact JSON.
func formEncode(body []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return "", fmt.Errorf("expected a JSON object")
	}

	var pairs []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		key, ok := tok.(string)
		if !ok {
			return "", fmt.Errorf("unexpected token %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return "", err
		}

		value, err := formValue(raw)
		if err != nil {
			return "", err
		}
		pairs = append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(value))
	}
	return strings.Join(pairs, "&"), nil
}

func formValue(raw json.RawMessage) (string, error) {
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		// numbers, booleans and null
		return string(raw), nil
	}
}
