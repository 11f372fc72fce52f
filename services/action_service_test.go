package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"mingle_server/config"
	"mingle_server/models"
	"mingle_server/utils"
)

func newActionService(policy string) (*ActionService, *MemoryPairRepository, *MemoryMessageRepository) {
	pairs := NewMemoryPairRepository()
	messages := NewMemoryMessageRepository()
	return &ActionService{
		Pairs:         pairs,
		Messages:      messages,
		UnmatchPolicy: policy,
	}, pairs, messages
}

func TestMutualLikeMatchesExactlyOnce(t *testing.T) {
	svc, _, _ := newActionService(config.UnmatchRetain)
	ctx := context.Background()

	first, err := svc.RecordAction(ctx, "alice", "bob", models.ActionLike, models.ContextFeed, "")
	if err != nil {
		t.Fatalf("RecordAction: %v", err)
	}
	if first.IsNewMatch {
		t.Fatal("one-sided like must not match")
	}

	second, err := svc.RecordAction(ctx, "bob", "alice", models.ActionLike, models.ContextFeed, "")
	if err != nil {
		t.Fatalf("RecordAction: %v", err)
	}
	if !second.IsNewMatch {
		t.Fatal("mutual like must match")
	}
	if second.Match == nil || second.Match.MatchContext != models.ContextFeed {
		t.Fatalf("unexpected match snapshot: %+v", second.Match)
	}

	// Any further action on a matched pair reports no new match.
	third, err := svc.RecordAction(ctx, "alice", "bob", models.ActionSuperLike, models.ContextFeed, "")
	if err != nil {
		t.Fatalf("RecordAction: %v", err)
	}
	if third.IsNewMatch {
		t.Fatal("matched pair must not report a second new match")
	}
}

func TestConcurrentMutualLikeMatchesOnce(t *testing.T) {
	svc, _, _ := newActionService(config.UnmatchRetain)
	ctx := context.Background()

	results := make([]*ActionResult, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r, err := svc.RecordAction(ctx, "1", "2", models.ActionLike, models.ContextFeed, "")
		if err != nil {
			t.Errorf("RecordAction(1→2): %v", err)
			return
		}
		results[0] = r
	}()
	go func() {
		defer wg.Done()
		r, err := svc.RecordAction(ctx, "2", "1", models.ActionLike, models.ContextFeed, "")
		if err != nil {
			t.Errorf("RecordAction(2→1): %v", err)
			return
		}
		results[1] = r
	}()
	wg.Wait()

	newMatches := 0
	for _, r := range results {
		if r != nil && r.IsNewMatch {
			newMatches++
		}
	}
	if newMatches != 1 {
		t.Fatalf("expected exactly one IsNewMatch, got %d", newMatches)
	}

	record, err := svc.Pairs.Get(ctx, models.CanonicalPairKey("1", "2"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !record.IsMatch || record.MatchedAt == "" || record.MatchContext != models.ContextFeed {
		t.Fatalf("unexpected record state: %+v", record)
	}
}

func TestPassBlocksMatchUntilOverwritten(t *testing.T) {
	svc, _, _ := newActionService(config.UnmatchRetain)
	ctx := context.Background()

	if _, err := svc.RecordAction(ctx, "alice", "bob", models.ActionPass, models.ContextFeed, ""); err != nil {
		t.Fatalf("RecordAction: %v", err)
	}
	result, err := svc.RecordAction(ctx, "bob", "alice", models.ActionLike, models.ContextFeed, "")
	if err != nil {
		t.Fatalf("RecordAction: %v", err)
	}
	if result.IsNewMatch {
		t.Fatal("pass + like must not match")
	}

	// The pass direction overwrites to a like; now both are positive.
	result, err = svc.RecordAction(ctx, "alice", "bob", models.ActionLike, models.ContextFeed, "")
	if err != nil {
		t.Fatalf("RecordAction: %v", err)
	}
	if !result.IsNewMatch {
		t.Fatal("overwriting a pass with a like must complete the match")
	}
}

func TestActionOverwritesSingleDirectionSlot(t *testing.T) {
	svc, pairs, _ := newActionService(config.UnmatchRetain)
	ctx := context.Background()

	sequence := []string{models.ActionLike, models.ActionPass, models.ActionSuperLike, models.ActionLike}
	for _, action := range sequence {
		if _, err := svc.RecordAction(ctx, "alice", "bob", action, models.ContextFeed, ""); err != nil {
			t.Fatalf("RecordAction(%s): %v", action, err)
		}
	}

	record, err := pairs.Get(ctx, models.CanonicalPairKey("alice", "bob"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(record.Actions) != 1 {
		t.Fatalf("expected one entry for the direction, got %d", len(record.Actions))
	}
	if record.Actions["alice"].Action != models.ActionLike {
		t.Fatalf("latest action must win, got %q", record.Actions["alice"].Action)
	}
}

func TestEventContextCapturedFromCompletingAction(t *testing.T) {
	svc, _, _ := newActionService(config.UnmatchRetain)
	ctx := context.Background()

	if _, err := svc.RecordAction(ctx, "alice", "bob", models.ActionLike, models.ContextFeed, ""); err != nil {
		t.Fatalf("RecordAction: %v", err)
	}
	result, err := svc.RecordAction(ctx, "bob", "alice", models.ActionSuperLike, models.ContextEvent, "event-42")
	if err != nil {
		t.Fatalf("RecordAction: %v", err)
	}
	if !result.IsNewMatch {
		t.Fatal("expected a match")
	}
	if result.Match.MatchContext != models.ContextEvent || result.Match.MatchEventRef != "event-42" {
		t.Fatalf("match context must come from the completing action, got %+v", result.Match)
	}
}

func TestRecordActionValidation(t *testing.T) {
	svc, _, _ := newActionService(config.UnmatchRetain)
	ctx := context.Background()

	cases := []struct {
		name                             string
		from, to, action, context, event string
	}{
		{"self target", "alice", "alice", models.ActionLike, models.ContextFeed, ""},
		{"bad action", "alice", "bob", "wink", models.ContextFeed, ""},
		{"bad context", "alice", "bob", models.ActionLike, "billboard", ""},
		{"missing target", "alice", "", models.ActionLike, models.ContextFeed, ""},
	}
	for _, tc := range cases {
		if _, err := svc.RecordAction(ctx, tc.from, tc.to, tc.action, tc.context, tc.event); !errors.Is(err, utils.ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestMatchPersistsSystemGreeting(t *testing.T) {
	svc, _, messages := newActionService(config.UnmatchRetain)
	ctx := context.Background()

	if _, err := svc.RecordAction(ctx, "alice", "bob", models.ActionLike, models.ContextFeed, ""); err != nil {
		t.Fatalf("RecordAction: %v", err)
	}
	if _, err := svc.RecordAction(ctx, "bob", "alice", models.ActionLike, models.ContextFeed, ""); err != nil {
		t.Fatalf("RecordAction: %v", err)
	}

	pairKey := models.CanonicalPairKey("alice", "bob")
	stored, _, err := messages.ListByPair(ctx, pairKey, 1, 10)
	if err != nil {
		t.Fatalf("ListByPair: %v", err)
	}
	if len(stored) != 1 || stored[0].Kind != models.KindSystem {
		t.Fatalf("expected one system greeting, got %+v", stored)
	}
}

func TestUnmatchRetainNeverRematches(t *testing.T) {
	svc, _, _ := newActionService(config.UnmatchRetain)
	ctx := context.Background()

	svc.RecordAction(ctx, "alice", "bob", models.ActionLike, models.ContextFeed, "")
	svc.RecordAction(ctx, "bob", "alice", models.ActionLike, models.ContextFeed, "")

	if err := svc.Unmatch(ctx, "alice", "bob"); err != nil {
		t.Fatalf("Unmatch: %v", err)
	}

	record, err := svc.Pairs.Get(ctx, models.CanonicalPairKey("alice", "bob"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.IsMatch || record.MatchedAt != "" || record.MatchContext != "" {
		t.Fatalf("match fields must be cleared: %+v", record)
	}
	if len(record.Actions) == 0 {
		t.Fatal("retain policy must keep the action history")
	}

	// A fresh mutual like must not re-trigger under retain.
	result, err := svc.RecordAction(ctx, "alice", "bob", models.ActionLike, models.ContextFeed, "")
	if err != nil {
		t.Fatalf("RecordAction: %v", err)
	}
	if result.IsNewMatch {
		t.Fatal("retain policy must never auto-rematch")
	}
}

func TestUnmatchPurgeAllowsRematch(t *testing.T) {
	svc, _, _ := newActionService(config.UnmatchPurge)
	ctx := context.Background()

	svc.RecordAction(ctx, "alice", "bob", models.ActionLike, models.ContextFeed, "")
	svc.RecordAction(ctx, "bob", "alice", models.ActionLike, models.ContextFeed, "")

	if err := svc.Unmatch(ctx, "alice", "bob"); err != nil {
		t.Fatalf("Unmatch: %v", err)
	}

	record, err := svc.Pairs.Get(ctx, models.CanonicalPairKey("alice", "bob"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(record.Actions) != 0 {
		t.Fatalf("purge policy must clear the action slots: %+v", record.Actions)
	}

	svc.RecordAction(ctx, "alice", "bob", models.ActionLike, models.ContextFeed, "")
	result, err := svc.RecordAction(ctx, "bob", "alice", models.ActionLike, models.ContextFeed, "")
	if err != nil {
		t.Fatalf("RecordAction: %v", err)
	}
	if !result.IsNewMatch {
		t.Fatal("purge policy must allow a mutual re-like to match again")
	}
}

func TestUnmatchIsIdempotent(t *testing.T) {
	svc, _, _ := newActionService(config.UnmatchRetain)
	ctx := context.Background()

	svc.RecordAction(ctx, "alice", "bob", models.ActionLike, models.ContextFeed, "")
	svc.RecordAction(ctx, "bob", "alice", models.ActionLike, models.ContextFeed, "")

	if err := svc.Unmatch(ctx, "alice", "bob"); err != nil {
		t.Fatalf("Unmatch: %v", err)
	}
	if err := svc.Unmatch(ctx, "alice", "bob"); err != nil {
		t.Fatalf("second Unmatch must be a no-op, got %v", err)
	}
}

func TestListMatchesAndAdmirers(t *testing.T) {
	svc, _, _ := newActionService(config.UnmatchRetain)
	ctx := context.Background()

	// carol likes bob; bob has not responded.
	svc.RecordAction(ctx, "carol", "bob", models.ActionSuperLike, models.ContextFeed, "")
	// alice and bob match.
	svc.RecordAction(ctx, "alice", "bob", models.ActionLike, models.ContextFeed, "")
	svc.RecordAction(ctx, "bob", "alice", models.ActionLike, models.ContextFeed, "")
	// bob passed on dave, who likes bob.
	svc.RecordAction(ctx, "dave", "bob", models.ActionLike, models.ContextFeed, "")
	svc.RecordAction(ctx, "bob", "dave", models.ActionPass, models.ContextFeed, "")

	matches, err := svc.ListMatches(ctx, "bob")
	if err != nil {
		t.Fatalf("ListMatches: %v", err)
	}
	if len(matches) != 1 || matches[0].PairKey != models.CanonicalPairKey("alice", "bob") {
		t.Fatalf("unexpected matches: %+v", matches)
	}

	admirers, err := svc.ListAdmirers(ctx, "bob")
	if err != nil {
		t.Fatalf("ListAdmirers: %v", err)
	}
	if len(admirers) != 1 || admirers[0].UserID != "carol" {
		t.Fatalf("expected carol as the only admirer, got %+v", admirers)
	}
	if admirers[0].Action != models.ActionSuperLike {
		t.Fatalf("admirer action should surface, got %q", admirers[0].Action)
	}
}
