package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"mingle_server/utils"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError maps the error taxonomy onto HTTP statuses.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, utils.ErrAuthentication):
		status = http.StatusUnauthorized
	case errors.Is(err, utils.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, utils.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, utils.ErrPersistence):
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

// requestUserID returns the authenticated user id placed in the request
// context by the auth middleware.
func requestUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := utils.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, utils.ErrAuthentication)
		return "", false
	}
	return userID, true
}
