package models

import "time"

// Message is a persisted chat message. Ids are always server-assigned;
// client-side provisional copies never reach the store.
type Message struct {
	MessageID  string `dynamodbav:"messageId" json:"messageId"`
	PairID     string `dynamodbav:"pairId" json:"pairId"`
	SenderID   string `dynamodbav:"senderId" json:"senderId"`
	ReceiverID string `dynamodbav:"receiverId" json:"receiverId"`
	Content    string `dynamodbav:"content" json:"content"`
	Kind       string `dynamodbav:"kind" json:"kind"`
	CreatedAt  string `dynamodbav:"createdAt" json:"createdAt"`
	ReadAt     string `dynamodbav:"readAt,omitempty" json:"readAt,omitempty"`
}

// SortKey is the range key under the pair partition. The fixed-width
// timestamp prefix keeps range queries in chronological order; the id
// suffix disambiguates same-instant messages.
func (m *Message) SortKey() string {
	return m.CreatedAt + "#" + m.MessageID
}

// CreatedTime parses the stored timestamp. Zero time on malformed input.
func (m *Message) CreatedTime() time.Time {
	t, err := time.Parse(TimestampLayout, m.CreatedAt)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, m.CreatedAt)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

// FormatTimestamp renders t in the storage layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
