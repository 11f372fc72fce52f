package routes

import (
	"mingle_server/controllers"
	"mingle_server/services"
	"mingle_server/utils"

	"github.com/gorilla/mux"
)

// RegisterPresenceRoutes sets up routes for presence snapshots under /api/presence
func RegisterPresenceRoutes(r *mux.Router, presenceService *services.PresenceService, issuer *utils.TokenIssuer) {
	controller := controllers.NewPresenceController(presenceService)

	presenceRouter := r.PathPrefix("/api/presence").Subrouter()
	presenceRouter.Use(issuer.Middleware)

	presenceRouter.HandleFunc("/{userId}", controller.HandleGetStatus).Methods("GET")
}
