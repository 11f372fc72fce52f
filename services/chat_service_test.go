package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mingle_server/models"
	"mingle_server/utils"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	frames []models.Frame
}

func (b *recordingBroadcaster) BroadcastToRoom(room string, frame models.Frame) {
	b.mu.Lock()
	b.frames = append(b.frames, frame)
	b.mu.Unlock()
}

func (b *recordingBroadcaster) SendToUser(userID string, frame models.Frame) {
	b.mu.Lock()
	b.frames = append(b.frames, frame)
	b.mu.Unlock()
}

func matchedPair(t *testing.T, pairs PairRepository, userA, userB string) string {
	t.Helper()
	record := models.NewPairRecord(userA, userB)
	now := models.FormatTimestamp(time.Now())
	record.Actions[userA] = models.PairAction{Action: models.ActionLike, Context: models.ContextFeed, Timestamp: now}
	record.Actions[userB] = models.PairAction{Action: models.ActionLike, Context: models.ContextFeed, Timestamp: now}
	record.IsMatch = true
	record.MatchedAt = now
	record.MatchContext = models.ContextFeed
	if err := pairs.Create(context.Background(), record); err != nil {
		t.Fatalf("Create pair: %v", err)
	}
	return record.PairKey
}

func newChatService(t *testing.T) (*ChatService, *recordingBroadcaster, string) {
	t.Helper()
	pairs := NewMemoryPairRepository()
	broadcast := &recordingBroadcaster{}
	svc := &ChatService{
		Messages:  NewMemoryMessageRepository(),
		Pairs:     pairs,
		Broadcast: broadcast,
	}
	pairKey := matchedPair(t, pairs, "alice", "bob")
	return svc, broadcast, pairKey
}

func TestAppendAssignsServerIDAndBroadcasts(t *testing.T) {
	svc, broadcast, pairKey := newChatService(t)

	message, err := svc.Append(context.Background(), pairKey, "alice", "hi", models.KindText)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if message.MessageID == "" || strings.HasPrefix(message.MessageID, "local-") {
		t.Fatalf("message id must be server-assigned, got %q", message.MessageID)
	}
	if message.ReceiverID != "bob" {
		t.Fatalf("receiver must be the pair peer, got %q", message.ReceiverID)
	}
	if message.CreatedAt == "" {
		t.Fatal("createdAt must be set")
	}

	broadcast.mu.Lock()
	defer broadcast.mu.Unlock()
	if len(broadcast.frames) != 1 || broadcast.frames[0].Type != models.FrameMessage {
		t.Fatalf("expected one message broadcast, got %+v", broadcast.frames)
	}
}

func TestAppendRejectsNonMemberAndUnmatched(t *testing.T) {
	svc, _, pairKey := newChatService(t)
	ctx := context.Background()

	if _, err := svc.Append(ctx, pairKey, "mallory", "hi", models.KindText); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("non-member send: expected ErrValidation, got %v", err)
	}
	if _, err := svc.Append(ctx, "missing#pair", "alice", "hi", models.KindText); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("absent pair: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Append(ctx, pairKey, "alice", "hi", models.KindSystem); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("client system message: expected ErrValidation, got %v", err)
	}
	if _, err := svc.Append(ctx, pairKey, "alice", "", models.KindText); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("empty content: expected ErrValidation, got %v", err)
	}

	unmatched := models.NewPairRecord("carol", "dave")
	if err := svc.Pairs.Create(ctx, unmatched); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Append(ctx, unmatched.PairKey, "carol", "hi", models.KindText); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("unmatched pair send: expected ErrValidation, got %v", err)
	}
}

func TestGetHistoryPagesOldestFirst(t *testing.T) {
	svc, _, pairKey := newChatService(t)
	ctx := context.Background()

	// Deterministic timestamps, one second apart.
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	svc.Clock = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	contents := []string{"m1", "m2", "m3", "m4", "m5"}
	for _, content := range contents {
		if _, err := svc.Append(ctx, pairKey, "alice", content, models.KindText); err != nil {
			t.Fatalf("Append(%s): %v", content, err)
		}
	}

	// Page 1 holds the most recent two, oldest-first within the page.
	page1, hasMore, err := svc.GetHistory(ctx, pairKey, 1, 2)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if !hasMore {
		t.Fatal("expected more pages")
	}
	if len(page1) != 2 || page1[0].Content != "m4" || page1[1].Content != "m5" {
		t.Fatalf("unexpected page 1: %+v", page1)
	}

	page3, hasMore, err := svc.GetHistory(ctx, pairKey, 3, 2)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if hasMore {
		t.Fatal("page 3 is the last page")
	}
	if len(page3) != 1 || page3[0].Content != "m1" {
		t.Fatalf("unexpected page 3: %+v", page3)
	}
}

func TestMarkReadStampsPeerMessages(t *testing.T) {
	svc, _, pairKey := newChatService(t)
	ctx := context.Background()

	svc.Append(ctx, pairKey, "alice", "one", models.KindText)
	svc.Append(ctx, pairKey, "bob", "two", models.KindText)

	if err := svc.MarkRead(ctx, pairKey, "bob"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	messages, _, err := svc.GetHistory(ctx, pairKey, 1, 10)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	for _, m := range messages {
		if m.ReceiverID == "bob" && m.ReadAt == "" {
			t.Fatalf("message to bob not marked read: %+v", m)
		}
		if m.ReceiverID == "alice" && m.ReadAt != "" {
			t.Fatalf("alice's unread message wrongly stamped: %+v", m)
		}
	}

	if err := svc.MarkRead(ctx, pairKey, "mallory"); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("non-member MarkRead: expected ErrValidation, got %v", err)
	}
}
