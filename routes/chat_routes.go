package routes

import (
	"mingle_server/controllers"
	"mingle_server/services"
	"mingle_server/utils"

	"github.com/gorilla/mux"
)

// RegisterChatRoutes sets up routes for chat-related operations under /api/chat
func RegisterChatRoutes(r *mux.Router, chatService *services.ChatService, issuer *utils.TokenIssuer) {
	controller := controllers.NewChatController(chatService)

	chatRouter := r.PathPrefix("/api/chat").Subrouter()
	chatRouter.Use(issuer.Middleware)

	chatRouter.HandleFunc("/messages", controller.HandleSendMessage).Methods("POST")
	chatRouter.HandleFunc("/messages", controller.HandleGetMessages).Methods("GET")
	chatRouter.HandleFunc("/messages/read", controller.HandleMarkRead).Methods("POST")
}
