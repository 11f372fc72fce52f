package controllers

import (
	"encoding/json"
	"log"
	"net/http"

	"mingle_server/services"
	"mingle_server/utils"
)

// ActionController struct
type ActionController struct {
	ActionService *services.ActionService
}

// NewActionController initializes the action controller
func NewActionController(service *services.ActionService) *ActionController {
	return &ActionController{ActionService: service}
}

// HandleRecordAction - registers a like/pass/super_like toward another user
func (c *ActionController) HandleRecordAction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	var request struct {
		TargetID string `json:"targetId"`
		Action   string `json:"action"`
		Context  string `json:"context"`
		EventRef string `json:"eventRef,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondError(w, utils.Validationf("invalid request body"))
		return
	}

	result, err := c.ActionService.RecordAction(r.Context(), userID, request.TargetID, request.Action, request.Context, request.EventRef)
	if err != nil {
		log.Printf("❌ Failed to record action from %s: %v", userID, err)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// HandleUnmatch - dissolves an existing match
func (c *ActionController) HandleUnmatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	var request struct {
		TargetID string `json:"targetId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondError(w, utils.Validationf("invalid request body"))
		return
	}

	if err := c.ActionService.Unmatch(r.Context(), userID, request.TargetID); err != nil {
		log.Printf("❌ Failed to unmatch %s and %s: %v", userID, request.TargetID, err)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// HandleListMatches - fetches the caller's active matches
func (c *ActionController) HandleListMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}
	matches, err := c.ActionService.ListMatches(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"matches": matches})
}

// HandleListAdmirers - fetches users currently liking the caller
func (c *ActionController) HandleListAdmirers(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}
	admirers, err := c.ActionService.ListAdmirers(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"admirers": admirers})
}
