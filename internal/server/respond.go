package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/technojoe/claude-token-share/internal/logger"
)

// maxBodyBytes caps request bodies; generous enough for a base64 chart
// image alongside the post text.
const maxBodyBytes = 12 << 20

// envelope is the wire shape of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: false, Error: msg}); err != nil {
		logger.Error("failed to encode error response", "error", err)
	}
}

// decodeJSON reads a size-capped JSON body into dst, rejecting unknown
// fields so client typos surface as errors instead of silent drops.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
