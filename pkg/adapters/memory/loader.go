package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/flowrun/pkg/domain"
)

// Registry implements ports.FlowLoader over flows held in memory.
// Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	flows map[string]*domain.Flow
}

// NewRegistry creates a registry seeded with flows.
func NewRegistry(flows ...*domain.Flow) *Registry {
	r := &Registry{flows: make(map[string]*domain.Flow, len(flows))}
	for _, f := range flows {
		r.flows[f.ID] = f
	}
	return r
}

// Register adds or replaces a flow.
func (r *Registry) Register(flow *domain.Flow) error {
	if flow == nil || flow.ID == "" {
		return fmt.Errorf("flow missing ID")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[flow.ID] = flow
	return nil
}

// LoadFlow returns the flow registered under id.
func (r *Registry) LoadFlow(_ context.Context, id string) (*domain.Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	flow, ok := r.flows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id)
	}
	return flow, nil
}

// ListFlows returns all registered flow IDs.
func (r *Registry) ListFlows(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.flows))
	for id := range r.flows {
		ids = append(ids, id)
	}
	sort.Strings(ids) // Deterministic order
	return ids, nil
}
