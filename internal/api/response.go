package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// withWarning annotates a success body with a non-fatal warning. Used by the
// fail-soft paths: the operation succeeded in memory but a durable step
// (event persistence, archiving, collection save) failed.
func withWarning(body map[string]interface{}, err error, context string) map[string]interface{} {
	if err != nil {
		body["warning"] = fmt.Sprintf("%s: %s", context, err)
	}
	return body
}
