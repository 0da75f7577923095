// Package handlers is the request boundary: thin adapters that translate
// wire objects into Store and Session Registry operations. All business
// logic lives in the session, matchmaker, sweeper, and rating
// packages — handlers only validate input, authenticate, and shape output.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jonradoff/arena-server/internal/middleware"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func clientIP(r *http.Request) string {
	return middleware.GetClientIP(r)
}
