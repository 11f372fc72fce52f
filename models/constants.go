package models

// ✅ Action types a user can take on another user
const (
	ActionLike      = "like"
	ActionPass      = "pass"
	ActionSuperLike = "super_like"
)

// ✅ Contexts an action can originate from
const (
	ContextFeed  = "feed"
	ContextEvent = "event"
)

// ✅ Message kinds
const (
	KindText   = "text"
	KindImage  = "image"
	KindSystem = "system"
)

// PairsTable is the DynamoDB table name for pair records
const PairsTable = "Pairs"

// MessagesTable is the DynamoDB table name for chat messages
const MessagesTable = "Messages"

// TimestampLayout is a fixed-width RFC3339 variant. Trailing zeros are kept
// so that lexicographic order of stored timestamps equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// IsPositiveAction reports whether an action expresses interest.
func IsPositiveAction(action string) bool {
	return action == ActionLike || action == ActionSuperLike
}

// IsValidAction reports whether the action is one of the known types.
func IsValidAction(action string) bool {
	return action == ActionLike || action == ActionPass || action == ActionSuperLike
}

// IsValidContext reports whether the context is one of the known origins.
func IsValidContext(context string) bool {
	return context == ContextFeed || context == ContextEvent
}

// IsValidKind reports whether the message kind is one of the known kinds.
func IsValidKind(kind string) bool {
	return kind == KindText || kind == KindImage || kind == KindSystem
}
