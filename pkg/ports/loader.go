package ports

import (
	"context"

	"github.com/aretw0/flowrun/pkg/domain"
)

// FlowLoader defines how flow definitions are retrieved.
// This allows the storage layer (files, Loam, memory) to be decoupled from the engine.
type FlowLoader interface {
	// LoadFlow returns the flow with the given ID.
	// Returns domain.ErrFlowNotFound if the flow does not exist.
	LoadFlow(ctx context.Context, id string) (*domain.Flow, error)

	// ListFlows returns the IDs of every flow available, sorted.
	ListFlows(ctx context.Context) ([]string, error)
}
