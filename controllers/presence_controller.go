package controllers

import (
	"net/http"

	"mingle_server/services"
	"mingle_server/utils"

	"github.com/gorilla/mux"
)

// PresenceController struct
type PresenceController struct {
	PresenceService *services.PresenceService
}

// NewPresenceController initializes the presence controller
func NewPresenceController(service *services.PresenceService) *PresenceController {
	return &PresenceController{PresenceService: service}
}

// HandleGetStatus - immediate presence snapshot. Subsequent changes are
// pushed over the realtime channel; consumers apply both idempotently.
func (c *PresenceController) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestUserID(w, r); !ok {
		return
	}
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		respondError(w, utils.Validationf("userId is required"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"userId": userID,
		"online": c.PresenceService.IsOnline(userID),
	})
}
