package services

import (
	"log"

	"mingle_server/models"
)

// Notifier is the hook consumed by the fan-out/notification collaborator.
// It fires after a message or match is durably persisted; out-of-band
// delivery (push etc.) is the collaborator's concern.
type Notifier interface {
	MessagePersisted(message models.Message)
	MatchCreated(match models.MatchSnapshot)
}

// LogNotifier is the default collaborator stand-in.
type LogNotifier struct{}

func (LogNotifier) MessagePersisted(message models.Message) {
	log.Printf("📬 Message persisted for pair %s (id %s)", message.PairID, message.MessageID)
}

func (LogNotifier) MatchCreated(match models.MatchSnapshot) {
	log.Printf("💘 New match for pair %s at %s", match.PairKey, match.MatchedAt)
}
