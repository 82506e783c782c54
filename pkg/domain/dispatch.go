package domain

import "time"

// Emission is a message produced by a dispatcher.
// After is the pause the interpreter observes before appending it.
type Emission struct {
	Message Message
	After   time.Duration
}

// DispatchResult is what an action dispatcher produced for a node.
type DispatchResult struct {
	// Emitted messages, appended to the transcript in order.
	Emitted []Emission

	// AwaitsInput parks the session until SubmitInput is called.
	AwaitsInput bool

	// NextHint names the successor explicitly, bypassing default resolution.
	NextHint string

	// Hold is the pause after the last emission before the run advances.
	Hold time.Duration
}

// Emit appends an immediate message to the result.
func (r *DispatchResult) Emit(m Message) {
	r.Emitted = append(r.Emitted, Emission{Message: m})
}

// EmitAfter appends a message preceded by a pause.
func (r *DispatchResult) EmitAfter(d time.Duration, m Message) {
	r.Emitted = append(r.Emitted, Emission{Message: m, After: d})
}
