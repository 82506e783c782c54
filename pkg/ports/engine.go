package ports

import (
	"context"

	"github.com/aretw0/flowrun/pkg/domain"
)

// SessionService is the surface transport adapters (HTTP, MCP, CLI) drive.
// It is implemented by session.Manager.
type SessionService interface {
	// Start runs flowID in a fresh session until it waits for input or completes.
	// An empty sessionID asks the service to allocate one.
	Start(ctx context.Context, sessionID, flowID string) (*domain.Session, error)

	// SubmitInput forwards user text to a waiting session. accepted is false when the
	// session was not waiting for input and nothing changed.
	SubmitInput(ctx context.Context, sessionID, text string) (snap *domain.Session, accepted bool, err error)

	// Reset returns the session to idle with an empty transcript.
	Reset(ctx context.Context, sessionID string) (*domain.Session, error)

	// Get returns the current snapshot of a session.
	Get(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete discards the session.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of known sessions.
	List(ctx context.Context) ([]string, error)
}
