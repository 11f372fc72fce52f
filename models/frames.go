package models

// Frame types exchanged over the realtime channel.
const (
	FrameAuthenticate = "authenticate"
	FrameAuthOK       = "auth_ok"
	FrameJoin         = "join"
	FrameJoined       = "joined"
	FrameLeave        = "leave"
	FrameMessage      = "message"
	FrameTypingStart  = "typing_start"
	FrameTypingStop   = "typing_stop"
	FramePresence     = "presence"
	FrameMatch        = "match"
	FrameError        = "error"
)

// Frame is the JSON envelope for every realtime event. Fields are used
// depending on Type; unused ones are omitted on the wire.
type Frame struct {
	Type         string         `json:"type"`
	Token        string         `json:"token,omitempty"`
	PairID       string         `json:"pairId,omitempty"`
	Content      string         `json:"content,omitempty"`
	Kind         string         `json:"kind,omitempty"`
	UserID       string         `json:"userId,omitempty"`
	ConnectionID string         `json:"connectionId,omitempty"`
	Online       *bool          `json:"online,omitempty"`
	Message      *Message       `json:"message,omitempty"`
	Match        *MatchSnapshot `json:"match,omitempty"`
	Code         string         `json:"code,omitempty"`
	Error        string         `json:"error,omitempty"`
}
