package routes

import (
	"mingle_server/controllers"
	"mingle_server/services"
	"mingle_server/utils"

	"github.com/gorilla/mux"
)

// RegisterActionRoutes sets up routes for like/pass/match operations under /api/actions
func RegisterActionRoutes(r *mux.Router, actionService *services.ActionService, issuer *utils.TokenIssuer) {
	controller := controllers.NewActionController(actionService)

	actionRouter := r.PathPrefix("/api/actions").Subrouter()
	actionRouter.Use(issuer.Middleware)

	actionRouter.HandleFunc("", controller.HandleRecordAction).Methods("POST")
	actionRouter.HandleFunc("/unmatch", controller.HandleUnmatch).Methods("POST")
	actionRouter.HandleFunc("/matches", controller.HandleListMatches).Methods("GET")
	actionRouter.HandleFunc("/admirers", controller.HandleListAdmirers).Methods("GET")
}
