package models

import (
	"sort"
	"strings"
)

// PairAction is the single stored action for one direction of a pair.
// A later action from the same user replaces it, never appends.
type PairAction struct {
	Action    string `dynamodbav:"action" json:"action"`
	Context   string `dynamodbav:"context" json:"context"`
	EventRef  string `dynamodbav:"eventRef,omitempty" json:"eventRef,omitempty"`
	Timestamp string `dynamodbav:"timestamp" json:"timestamp"`
}

// PairRecord is the canonical record for an unordered user pair.
type PairRecord struct {
	PairKey       string                `dynamodbav:"pairKey" json:"pairKey"`
	Members       []string              `dynamodbav:"members" json:"members"`
	Actions       map[string]PairAction `dynamodbav:"actions" json:"actions"`
	IsMatch       bool                  `dynamodbav:"isMatch" json:"isMatch"`
	// Unmatched marks a pair whose match was explicitly dissolved while the
	// action history was retained; such a pair never auto-rematches.
	Unmatched     bool                  `dynamodbav:"unmatched,omitempty" json:"unmatched,omitempty"`
	MatchedAt     string                `dynamodbav:"matchedAt,omitempty" json:"matchedAt,omitempty"`
	MatchContext  string                `dynamodbav:"matchContext,omitempty" json:"matchContext,omitempty"`
	MatchEventRef string                `dynamodbav:"matchEventRef,omitempty" json:"matchEventRef,omitempty"`
	Version       int64                 `dynamodbav:"version" json:"-"`
}

// MatchSnapshot is the application-facing view of a mutual match.
type MatchSnapshot struct {
	PairKey       string   `json:"pairKey"`
	Users         []string `json:"users"`
	MatchedAt     string   `json:"matchedAt"`
	MatchContext  string   `json:"matchContext"`
	MatchEventRef string   `json:"matchEventRef,omitempty"`
}

// Admirer describes a user whose current action toward another user is
// positive while the pair is not (yet) matched.
type Admirer struct {
	UserID    string `json:"userId"`
	Action    string `json:"action"`
	Context   string `json:"context"`
	Timestamp string `json:"timestamp"`
}

const pairKeySeparator = "#"

// CanonicalPairKey builds the storage key for an unordered pair,
// smaller id first.
func CanonicalPairKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + pairKeySeparator + userB
}

// PairMembers splits a pair key back into its two member ids.
func PairMembers(pairKey string) (string, string, bool) {
	parts := strings.SplitN(pairKey, pairKeySeparator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// PairContains reports whether userID is one of the pair's members.
func PairContains(pairKey, userID string) bool {
	a, b, ok := PairMembers(pairKey)
	return ok && (a == userID || b == userID)
}

// PairPeer returns the other member of the pair.
func PairPeer(pairKey, userID string) (string, bool) {
	a, b, ok := PairMembers(pairKey)
	if !ok {
		return "", false
	}
	switch userID {
	case a:
		return b, true
	case b:
		return a, true
	}
	return "", false
}

// NewPairRecord creates an empty record for the two users.
func NewPairRecord(userA, userB string) *PairRecord {
	members := []string{userA, userB}
	sort.Strings(members)
	return &PairRecord{
		PairKey: CanonicalPairKey(userA, userB),
		Members: members,
		Actions: make(map[string]PairAction),
	}
}

// Snapshot builds a MatchSnapshot from a matched record.
func (p *PairRecord) Snapshot() *MatchSnapshot {
	users := make([]string, len(p.Members))
	copy(users, p.Members)
	return &MatchSnapshot{
		PairKey:       p.PairKey,
		Users:         users,
		MatchedAt:     p.MatchedAt,
		MatchContext:  p.MatchContext,
		MatchEventRef: p.MatchEventRef,
	}
}
