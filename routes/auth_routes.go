package routes

import (
	"mingle_server/controllers"
	"mingle_server/utils"

	"github.com/gorilla/mux"
)

// RegisterAuthRoutes sets up the development token endpoint under /api/auth
func RegisterAuthRoutes(r *mux.Router, issuer *utils.TokenIssuer) {
	controller := controllers.NewAuthController(issuer)

	authRouter := r.PathPrefix("/api/auth").Subrouter()
	authRouter.HandleFunc("/token", controller.HandleIssueToken).Methods("POST")
}
