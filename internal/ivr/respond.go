package ivr

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ringdesk/ringdesk/internal/telephony"
)

// envelope is the standard API response wrapper.
// All JSON responses use this format: { "data": ..., "error": ... }
type envelope struct {
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

// writeJSON writes a JSON response with the given status code and data payload.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Data: data}); err != nil {
		slog.Error("failed to encode json response", "error", err)
	}
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Error: msg}); err != nil {
		slog.Error("failed to encode json error response", "error", err)
	}
}

// writeDocument renders a call-control document to the provider. Render
// failures degrade to a bare hangup document rather than a 5xx, which the
// provider would surface to the caller as an error tone.
func writeDocument(w http.ResponseWriter, doc *telephony.Document) {
	body, err := doc.Render()
	if err != nil {
		slog.Error("failed to render call-control document", "error", err)
		body, _ = telephony.SayAndHangup("We're sorry, something went wrong. Goodbye.").Render()
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("failed to write call-control document", "error", err)
	}
}

// writeAck answers a status-only callback with an empty 200.
func writeAck(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
}
