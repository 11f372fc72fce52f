package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"mingle_server/models"
	"mingle_server/utils"

	"github.com/google/uuid"
)

// Broadcaster is implemented by the realtime hub. Services stay unaware of
// websocket details; tests run with a nil or fake broadcaster.
type Broadcaster interface {
	// BroadcastToRoom delivers a frame to every session currently in the
	// room, including the sender's other devices.
	BroadcastToRoom(room string, frame models.Frame)
	// SendToUser delivers a frame to every live session of the user.
	SendToUser(userID string, frame models.Frame)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
	maxMessageLength    = 4000
)

// ChatService persists chat messages and fans them out to live sessions.
type ChatService struct {
	Messages  MessageRepository
	Pairs     PairRepository
	Notifier  Notifier
	Broadcast Broadcaster
	Clock     func() time.Time
}

func (s *ChatService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// Append validates, persists and broadcasts a new message. Both the realtime
// channel and the stateless fallback converge here; the returned message
// carries the server-assigned id and timestamp.
func (s *ChatService) Append(ctx context.Context, pairID, senderID, content, kind string) (*models.Message, error) {
	if kind == "" {
		kind = models.KindText
	}
	if !models.IsValidKind(kind) {
		return nil, utils.Validationf("unknown message kind %q", kind)
	}
	if kind == models.KindSystem {
		return nil, utils.Validationf("system messages are server-issued")
	}
	if content == "" {
		return nil, utils.Validationf("content is required")
	}
	if len(content) > maxMessageLength {
		return nil, utils.Validationf("content exceeds %d bytes", maxMessageLength)
	}
	if senderID == "" {
		return nil, utils.ErrAuthentication
	}

	record, err := s.Pairs.Get(ctx, pairID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pair %s: %w", pairID, err)
	}
	receiverID, ok := models.PairPeer(record.PairKey, senderID)
	if !ok {
		return nil, utils.Validationf("sender is not a member of pair %s", pairID)
	}
	if !record.IsMatch {
		return nil, utils.Validationf("pair %s is not matched", pairID)
	}

	message := models.Message{
		MessageID:  uuid.NewString(),
		PairID:     record.PairKey,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Kind:       kind,
		CreatedAt:  models.FormatTimestamp(s.now()),
	}

	if err := s.Messages.Append(ctx, message); err != nil {
		log.Printf("❌ Failed to store message for pair %s: %v", pairID, err)
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	if s.Broadcast != nil {
		s.Broadcast.BroadcastToRoom(record.PairKey, models.Frame{
			Type:    models.FrameMessage,
			Message: &message,
		})
	}
	if s.Notifier != nil {
		s.Notifier.MessagePersisted(message)
	}
	return &message, nil
}

// GetHistory returns one page of persisted messages, oldest-first within the
// page, plus whether older pages exist.
func (s *ChatService) GetHistory(ctx context.Context, pairID string, page, limit int) ([]models.Message, bool, error) {
	if pairID == "" {
		return nil, false, utils.Validationf("pairId is required")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	messages, hasMore, err := s.Messages.ListByPair(ctx, pairID, page, limit)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch messages for %s: %w", pairID, err)
	}
	return messages, hasMore, nil
}

// MarkRead stamps readAt on every unread message addressed to readerID.
func (s *ChatService) MarkRead(ctx context.Context, pairID, readerID string) error {
	if pairID == "" {
		return utils.Validationf("pairId is required")
	}
	if !models.PairContains(pairID, readerID) {
		return utils.Validationf("reader is not a member of pair %s", pairID)
	}
	readAt := models.FormatTimestamp(s.now())
	if err := s.Messages.MarkRead(ctx, pairID, readerID, readAt); err != nil {
		return fmt.Errorf("failed to mark messages read for %s: %w", pairID, err)
	}
	return nil
}
