package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// RespondJSON writes v as a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", slog.Any("error", err))
	}
}

// Ack is the envelope for webhook acknowledgements and simple mutations.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RespondAck writes a 200 acknowledgement regardless of processing outcome.
// Payment gateways retry on non-2xx; acknowledging stops the retry loop.
func RespondAck(w http.ResponseWriter, message string) {
	RespondJSON(w, http.StatusOK, Ack{Success: true, Message: message})
}
