package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/flowrun/internal/presentation/graph"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/aretw0/flowrun/pkg/ports"
)

// Inspect formats.
const (
	FormatJSON    = "json"
	FormatMermaid = "mermaid"
)

// ListSessions prints the ids held by the backend store.
func ListSessions(ctx context.Context, b *Backend, w io.Writer) error {
	ids, err := b.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No active sessions found.")
		return nil
	}
	fmt.Fprintln(w, "Active Sessions:")
	for _, id := range ids {
		fmt.Fprintln(w, "- "+id)
	}
	return nil
}

// LoadSession reads a snapshot from the store, falling back to the transcript
// archive for sessions that finished and were evicted.
func LoadSession(ctx context.Context, b *Backend, sessionID string) (*domain.Session, error) {
	snap, err := b.Store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) && b.Archiver != nil {
		return b.Archiver.Get(ctx, sessionID)
	}
	return snap, err
}

// InspectSession prints a session as indented JSON, or as a Mermaid graph of its
// flow with the visited path highlighted. The graph needs flows.
func InspectSession(ctx context.Context, b *Backend, flows ports.FlowLoader, sessionID, format string, w io.Writer) error {
	snap, err := LoadSession(ctx, b, sessionID)
	if err != nil {
		return fmt.Errorf("error loading session '%s': %w", sessionID, err)
	}

	switch format {
	case "", FormatJSON:
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling session: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	case FormatMermaid:
		if flows == nil {
			return errors.New("mermaid output requires the flow source (--flows)")
		}
		flow, err := flows.LoadFlow(ctx, snap.FlowID)
		if err != nil {
			return err
		}
		fmt.Fprint(w, graph.GenerateMermaid(flow, graph.OverlayFromSession(snap)))
		return nil
	}
	return fmt.Errorf("unknown format %q (use %s or %s)", format, FormatJSON, FormatMermaid)
}

// RemoveSessions deletes every id and reports each outcome. It fails if any
// removal failed.
func RemoveSessions(ctx context.Context, b *Backend, ids []string, w io.Writer) error {
	var errs []error
	for _, id := range ids {
		if err := b.Store.Delete(ctx, id); err != nil {
			fmt.Fprintf(w, "Error removing '%s': %v\n", id, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "Removed session '%s'\n", id)
	}
	return errors.Join(errs...)
}
