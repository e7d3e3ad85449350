package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var errInvertedRange = errors.New("'to' date is before 'from' date")

func errBadDate(param string) error {
	return fmt.Errorf("query parameter '%s' must be YYYY-MM-DD", param)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
