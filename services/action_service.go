package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mingle_server/config"
	"mingle_server/models"
	"mingle_server/utils"

	"github.com/google/uuid"
)

// pairWriteRetries bounds the optimistic-concurrency retry loop. Both sides
// of a pair can race on the same record; the loser re-reads and re-applies.
const pairWriteRetries = 5

// ActionService owns the action ledger and derives mutual-match state.
type ActionService struct {
	Pairs         PairRepository
	Messages      MessageRepository
	Notifier      Notifier
	Broadcast     Broadcaster
	UnmatchPolicy string
	Clock         func() time.Time
}

// ActionResult reports whether the recorded action completed a new match.
type ActionResult struct {
	IsNewMatch bool                  `json:"isNewMatch"`
	Match      *models.MatchSnapshot `json:"match,omitempty"`
}

func (as *ActionService) now() time.Time {
	if as.Clock != nil {
		return as.Clock()
	}
	return time.Now()
}

// RecordAction upserts the single directional entry for fromUser and
// re-evaluates the match predicate. Safe to retry: a repeated action
// overwrites the same slot and reports IsNewMatch only once.
func (as *ActionService) RecordAction(ctx context.Context, fromUser, toUser, action, actionContext, eventRef string) (*ActionResult, error) {
	if fromUser == "" || toUser == "" {
		return nil, utils.Validationf("fromUser and toUser are required")
	}
	if fromUser == toUser {
		return nil, utils.Validationf("cannot act on yourself")
	}
	if !models.IsValidAction(action) {
		return nil, utils.Validationf("unknown action %q", action)
	}
	if !models.IsValidContext(actionContext) {
		return nil, utils.Validationf("unknown context %q", actionContext)
	}

	pairKey := models.CanonicalPairKey(fromUser, toUser)

	var lastErr error
	for attempt := 0; attempt < pairWriteRetries; attempt++ {
		record, err := as.Pairs.Get(ctx, pairKey)
		created := false
		if errors.Is(err, utils.ErrNotFound) {
			record = models.NewPairRecord(fromUser, toUser)
			created = true
		} else if err != nil {
			return nil, fmt.Errorf("failed to load pair %s: %w", pairKey, err)
		}

		expectedVersion := record.Version
		record.Actions[fromUser] = models.PairAction{
			Action:    action,
			Context:   actionContext,
			EventRef:  eventRef,
			Timestamp: models.FormatTimestamp(as.now()),
		}

		isNewMatch := false
		if !record.IsMatch && !record.Unmatched && as.mutualInterest(record) {
			record.IsMatch = true
			record.MatchedAt = models.FormatTimestamp(as.now())
			// The action that completed the pair defines the match context.
			record.MatchContext = actionContext
			record.MatchEventRef = eventRef
			isNewMatch = true
		}
		record.Version++

		if created {
			err = as.Pairs.Create(ctx, record)
		} else {
			err = as.Pairs.Update(ctx, record, expectedVersion)
		}
		if errors.Is(err, utils.ErrConflict) {
			// Lost the race on this record; re-read and re-apply.
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to store pair %s: %w", pairKey, err)
		}

		result := &ActionResult{IsNewMatch: isNewMatch}
		if isNewMatch {
			result.Match = record.Snapshot()
			as.announceMatch(ctx, record)
		}
		return result, nil
	}
	return nil, fmt.Errorf("failed to store pair %s: %w", pairKey, lastErr)
}

// mutualInterest reports whether both directions' current actions are positive.
func (as *ActionService) mutualInterest(record *models.PairRecord) bool {
	if len(record.Members) != 2 {
		return false
	}
	for _, member := range record.Members {
		entry, ok := record.Actions[member]
		if !ok || !models.IsPositiveAction(entry.Action) {
			return false
		}
	}
	return true
}

// announceMatch persists the system greeting and notifies collaborators and
// live sessions. The match itself is already durable at this point.
func (as *ActionService) announceMatch(ctx context.Context, record *models.PairRecord) {
	snapshot := record.Snapshot()
	log.Printf("💘 Pair %s matched (context: %s)", record.PairKey, record.MatchContext)

	greeting := models.Message{
		MessageID: uuid.NewString(),
		PairID:    record.PairKey,
		Content:   "It's a match! Say hi 👋",
		Kind:      models.KindSystem,
		CreatedAt: models.FormatTimestamp(as.now()),
	}
	if as.Messages != nil {
		if err := as.Messages.Append(ctx, greeting); err != nil {
			log.Printf("❌ Failed to store match greeting for %s: %v", record.PairKey, err)
		}
	}

	if as.Notifier != nil {
		as.Notifier.MatchCreated(*snapshot)
	}
	if as.Broadcast != nil {
		for _, member := range record.Members {
			as.Broadcast.SendToUser(member, models.Frame{
				Type:  models.FrameMatch,
				Match: snapshot,
			})
		}
	}
}

// Unmatch clears the match fields. Under the retain policy the action
// history survives and the pair can never auto-rematch; under purge both
// direction slots are cleared so a later mutual re-like matches again.
func (as *ActionService) Unmatch(ctx context.Context, userA, userB string) error {
	if userA == "" || userB == "" {
		return utils.Validationf("both user ids are required")
	}
	if userA == userB {
		return utils.Validationf("cannot unmatch yourself")
	}

	pairKey := models.CanonicalPairKey(userA, userB)

	var lastErr error
	for attempt := 0; attempt < pairWriteRetries; attempt++ {
		record, err := as.Pairs.Get(ctx, pairKey)
		if err != nil {
			return fmt.Errorf("failed to load pair %s: %w", pairKey, err)
		}
		if !record.IsMatch {
			return nil
		}

		expectedVersion := record.Version
		record.IsMatch = false
		record.MatchedAt = ""
		record.MatchContext = ""
		record.MatchEventRef = ""
		if as.UnmatchPolicy == config.UnmatchPurge {
			record.Actions = make(map[string]models.PairAction)
			record.Unmatched = false
		} else {
			record.Unmatched = true
		}
		record.Version++

		err = as.Pairs.Update(ctx, record, expectedVersion)
		if errors.Is(err, utils.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to store pair %s: %w", pairKey, err)
		}
		log.Printf("💔 Pair %s unmatched (policy: %s)", pairKey, as.policy())
		return nil
	}
	return fmt.Errorf("failed to store pair %s: %w", pairKey, lastErr)
}

func (as *ActionService) policy() string {
	if as.UnmatchPolicy == config.UnmatchPurge {
		return config.UnmatchPurge
	}
	return config.UnmatchRetain
}

// ListMatches returns the user's active matches.
func (as *ActionService) ListMatches(ctx context.Context, userID string) ([]models.MatchSnapshot, error) {
	if userID == "" {
		return nil, utils.Validationf("userId is required")
	}
	records, err := as.Pairs.ListByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pairs for %s: %w", userID, err)
	}
	matches := make([]models.MatchSnapshot, 0, len(records))
	for i := range records {
		if records[i].IsMatch {
			matches = append(matches, *records[i].Snapshot())
		}
	}
	return matches, nil
}

// ListAdmirers returns users whose current action toward userID is positive
// while the pair is not matched. Pairs the user already passed on are hidden.
func (as *ActionService) ListAdmirers(ctx context.Context, userID string) ([]models.Admirer, error) {
	if userID == "" {
		return nil, utils.Validationf("userId is required")
	}
	records, err := as.Pairs.ListByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pairs for %s: %w", userID, err)
	}
	admirers := make([]models.Admirer, 0)
	for i := range records {
		record := &records[i]
		if record.IsMatch || record.Unmatched {
			continue
		}
		peer, ok := models.PairPeer(record.PairKey, userID)
		if !ok {
			continue
		}
		peerAction, ok := record.Actions[peer]
		if !ok || !models.IsPositiveAction(peerAction.Action) {
			continue
		}
		if own, ok := record.Actions[userID]; ok && own.Action == models.ActionPass {
			continue
		}
		admirers = append(admirers, models.Admirer{
			UserID:    peer,
			Action:    peerAction.Action,
			Context:   peerAction.Context,
			Timestamp: peerAction.Timestamp,
		})
	}
	return admirers, nil
}
