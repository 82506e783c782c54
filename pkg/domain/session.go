package domain

import "time"

// Status is the interpreter state of a session.
type Status string

const (
	StatusIdle            Status = "idle"              // before Start or after Reset
	StatusRunning         Status = "running"           // processing nodes
	StatusWaitingForInput Status = "waiting_for_input" // parked on a condition node
	StatusCompleted       Status = "completed"         // sink state
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleBot    Role = "bot"
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// Message is a transcript entry. It is never modified after being appended.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	NodeID    string    `json:"node_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BotMessage builds a bot message originating from nodeID.
func BotMessage(nodeID, content string) Message {
	return Message{Role: RoleBot, Content: content, NodeID: nodeID}
}

// UserMessage builds a user message received at nodeID.
func UserMessage(nodeID, content string) Message {
	return Message{Role: RoleUser, Content: content, NodeID: nodeID}
}

// SystemMessage builds a system trace message originating from nodeID.
func SystemMessage(nodeID, content string) Message {
	return Message{Role: RoleSystem, Content: content, NodeID: nodeID}
}

// Session is a snapshot of one run of a Flow.
type Session struct {
	ID            string    `json:"id"`
	FlowID        string    `json:"flow_id,omitempty"`
	CurrentNodeID string    `json:"current_node_id,omitempty"`
	Status        Status    `json:"status"`
	Transcript    []Message `json:"transcript"`
	PendingInput  bool      `json:"pending_input"`
	Generation    uint64    `json:"generation"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewSession creates an idle session.
func NewSession(id string) *Session {
	return &Session{
		ID:         id,
		Status:     StatusIdle,
		Transcript: []Message{},
	}
}

// Snapshot returns a copy of the session that does not share the transcript slice.
func (s *Session) Snapshot() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Transcript = make([]Message, len(s.Transcript))
	copy(cp.Transcript, s.Transcript)
	return &cp
}

// Terminal reports whether the session reached its sink state.
func (s *Session) Terminal() bool {
	return s.Status == StatusCompleted
}
