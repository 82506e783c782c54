package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter     EventType = "node_enter"
	EventNodeLeave     EventType = "node_leave"
	EventStatusChange  EventType = "status_change"
	EventInput         EventType = "input"
	EventMisconfigured EventType = "misconfigured"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	FlowID    string    `json:"flow_id,omitempty"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeType NodeType `json:"node_type"`
}

// StatusEvent represents a transition of the session state machine.
type StatusEvent struct {
	EventBase
	From Status `json:"from"`
	To   Status `json:"to"`
}

// InputEvent represents a user submission evaluated at a condition node.
type InputEvent struct {
	EventBase
	NodeID  string `json:"node_id"`
	Outcome bool   `json:"outcome"`
}

// MisconfigurationEvent represents a recovered flow defect (dangling reference, dispatch failure).
type MisconfigurationEvent struct {
	EventBase
	NodeID string `json:"node_id"`
	Err    error  `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks run synchronously on the run goroutine and must not call back into the interpreter.
type LifecycleHooks struct {
	OnNodeEnter     func(context.Context, *NodeEvent)
	OnNodeLeave     func(context.Context, *NodeEvent)
	OnStatusChange  func(context.Context, *StatusEvent)
	OnInput         func(context.Context, *InputEvent)
	OnMisconfigured func(context.Context, *MisconfigurationEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:     chain(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:     chain(h.OnNodeLeave, other.OnNodeLeave),
		OnStatusChange:  chain(h.OnStatusChange, other.OnStatusChange),
		OnInput:         chain(h.OnInput, other.OnInput),
		OnMisconfigured: chain(h.OnMisconfigured, other.OnMisconfigured),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
