package api

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// maxBodySize bounds request bodies; design documents can be large
const maxBodySize = 64 << 20

// writeJSONResponse writes a JSON response with the given status code
func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(data)
}

// writeErrorResponse writes an error response with the given status code
// and message
func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeJSONResponse(w, statusCode, map[string]any{
		"error":  message,
		"status": "error",
	})
}

// decodeJSON decodes a bounded request body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v)
}

// parseLimit extracts a positive limit query parameter, returning
// defaultLimit if it is missing or invalid
func parseLimit(r *http.Request, defaultLimit int) int {
	limitParam := r.URL.Query().Get("limit")
	if limitParam == "" {
		return defaultLimit
	}
	if limit, err := strconv.Atoi(limitParam); err == nil && limit > 0 {
		return limit
	}
	return defaultLimit
}
