package controllers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"mingle_server/models"
	"mingle_server/services"
	"mingle_server/utils"
)

// ChatController struct
type ChatController struct {
	ChatService *services.ChatService
}

// NewChatController initializes the chat controller
func NewChatController(service *services.ChatService) *ChatController {
	return &ChatController{ChatService: service}
}

// HandleSendMessage - stateless fallback send. Converges on the same
// persistence call as the realtime channel and returns the persisted
// message so the client can reconcile its provisional copy.
func (c *ChatController) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	var request struct {
		PairID  string `json:"pairId"`
		Content string `json:"content"`
		Kind    string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondError(w, utils.Validationf("invalid request body"))
		return
	}

	message, err := c.ChatService.Append(r.Context(), request.PairID, userID, request.Content, request.Kind)
	if err != nil {
		log.Printf("❌ Fallback send failed for pair %s: %v", request.PairID, err)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, message)
}

// HandleGetMessages - fetches one page of message history
func (c *ChatController) HandleGetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	pairID := r.URL.Query().Get("pairId")
	if pairID == "" {
		respondError(w, utils.Validationf("pairId is required"))
		return
	}
	if !models.PairContains(pairID, userID) {
		respondError(w, utils.Validationf("not a member of this pair"))
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, hasMore, err := c.ChatService.GetHistory(r.Context(), pairID, page, limit)
	if err != nil {
		log.Printf("❌ Failed to fetch messages for pair %s: %v", pairID, err)
		respondError(w, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"hasMore":  hasMore,
	})
}

// HandleMarkRead - marks messages addressed to the caller as read
func (c *ChatController) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	var request struct {
		PairID string `json:"pairId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondError(w, utils.Validationf("invalid request body"))
		return
	}

	if err := c.ChatService.MarkRead(r.Context(), request.PairID, userID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
