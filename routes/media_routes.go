package routes

import (
	"mingle_server/controllers"
	"mingle_server/services"
	"mingle_server/utils"

	"github.com/gorilla/mux"
)

// RegisterMediaRoutes sets up presigned-URL routes under /api/media
func RegisterMediaRoutes(r *mux.Router, s3Service *services.S3Service, issuer *utils.TokenIssuer) {
	controller := controllers.NewMediaController(s3Service)

	mediaRouter := r.PathPrefix("/api/media").Subrouter()
	mediaRouter.Use(issuer.Middleware)

	mediaRouter.HandleFunc("/upload-url", controller.HandleUploadURL).Methods("POST")
	mediaRouter.HandleFunc("/read-url", controller.HandleReadURL).Methods("GET")
}
