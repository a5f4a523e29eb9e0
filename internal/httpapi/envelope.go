package httpapi

import (
	"encoding/json"
	"net/http"
	"time"
)

// envelope is the stable response shape for every endpoint.
type envelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Count     *int      `json:"count,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	env.Timestamp = time.Now().UTC()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

// writeData writes a success envelope with a payload and item count.
func writeData(w http.ResponseWriter, data any, count int) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Count: &count})
}

// writeMessage writes a success envelope with a count and human message.
func writeMessage(w http.ResponseWriter, count int, message string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Count: &count, Message: message})
}

// writeError writes a failure envelope.
func writeError(w http.ResponseWriter, status int, errText, message string) {
	writeJSON(w, status, envelope{Success: false, Error: errText, Message: message})
}
