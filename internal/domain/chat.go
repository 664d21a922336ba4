package domain

import "time"

// Chat turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is a single message in a chat session.
type ChatTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatReply is what the bridge hands back to the UI. Fallback is set when the
// text came from the local canned table instead of the generation API, so the
// front end can mark it as demo output.
type ChatReply struct {
	Text      string `json:"response"`
	SessionID string `json:"sessionId"`
	Fallback  bool   `json:"fallback,omitempty"`
}
