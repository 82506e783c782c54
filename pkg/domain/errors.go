package domain

import (
	"errors"
	"fmt"
)

// ErrMalformedFlow is matched by MalformedFlowError via errors.Is.
var ErrMalformedFlow = errors.New("malformed flow")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrFlowNotFound is returned when a loader has no flow with the requested ID.
var ErrFlowNotFound = errors.New("flow not found")

// ErrSessionReset is returned by a blocking run whose session was reset or restarted
// while it was still processing.
var ErrSessionReset = errors.New("session was reset")

// MalformedFlowError reports a flow that cannot be started.
type MalformedFlowError struct {
	FlowID     string
	StartNodes int
}

func (e *MalformedFlowError) Error() string {
	return fmt.Sprintf("malformed flow %q: expected exactly one start node, found %d", e.FlowID, e.StartNodes)
}

func (e *MalformedFlowError) Is(target error) bool {
	return target == ErrMalformedFlow
}

// DanglingReferenceError reports an edge or connection pointing at a missing node.
type DanglingReferenceError struct {
	NodeID   string // node holding the reference
	TargetID string // id that does not exist
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("node %q references missing node %q", e.NodeID, e.TargetID)
}
