package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Sent when a payload cannot be encoded; prebuilt so it cannot fail itself.
var encodeFailureBody = []byte(`{"error":"Failed to encode response"}`)

// RespondWithJSON writes payload as JSON with the given status code. A
// payload that cannot be encoded is logged and answered with a 500.
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Default().WithPrefix("api").Error("failed to encode response", "type", fmt.Sprintf("%T", payload), "status", code, "err", err)
		code, body = http.StatusInternalServerError, encodeFailureBody
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		log.Default().WithPrefix("api").Debug("failed to write response", "status", code, "err", err)
	}
}

// RespondWithError writes an ErrorResponse.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}
