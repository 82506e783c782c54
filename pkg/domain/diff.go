package domain

// SessionDiff represents the changes between two session snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SessionDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	CurrentNodeID *string `json:"current_node_id,omitempty"`
	Status        *Status `json:"status,omitempty"`

	// Transcript contains messages appended since the old snapshot.
	// When Rewritten is set the transcript was cleared (reset/restart) and
	// Transcript carries the full new transcript instead.
	Transcript []Message `json:"transcript,omitempty"`
	Rewritten  bool      `json:"rewritten,omitempty"`
}

// Diff calculates the difference between oldSession and newSession.
// If oldSession is nil, it returns a diff representing the entire newSession (initial load).
// It returns nil when nothing changed.
func Diff(oldSession, newSession *Session) *SessionDiff {
	if newSession == nil {
		return nil
	}

	diff := &SessionDiff{
		SessionID: newSession.ID,
	}

	if oldSession == nil || oldSession.CurrentNodeID != newSession.CurrentNodeID {
		id := newSession.CurrentNodeID
		diff.CurrentNodeID = &id
	}
	if oldSession == nil || oldSession.Status != newSession.Status {
		status := newSession.Status
		diff.Status = &status
	}

	diff.Transcript, diff.Rewritten = diffTranscript(oldSession, newSession)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// diffTranscript relies on the transcript being append-only within a generation.
func diffTranscript(old, new *Session) ([]Message, bool) {
	if old == nil {
		if len(new.Transcript) == 0 {
			return nil, false
		}
		return new.Transcript, false
	}

	if old.Generation != new.Generation || len(new.Transcript) < len(old.Transcript) {
		return new.Transcript, true
	}

	if len(new.Transcript) > len(old.Transcript) {
		return new.Transcript[len(old.Transcript):], false
	}
	return nil, false
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return d.CurrentNodeID == nil &&
		d.Status == nil &&
		len(d.Transcript) == 0 &&
		!d.Rewritten
}
