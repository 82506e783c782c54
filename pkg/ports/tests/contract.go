package tests

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/aretw0/flowrun/pkg/ports"
)

// FlowLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.FlowLoader.
// expected maps every flow ID the loader should know to its node count.
func FlowLoaderContractTest(t *testing.T, loader ports.FlowLoader, expected map[string]int) {
	t.Helper()
	ctx := context.Background()

	t.Run("LoadFlow_Success", func(t *testing.T) {
		for id, nodes := range expected {
			flow, err := loader.LoadFlow(ctx, id)
			if err != nil {
				t.Fatalf("unexpected error loading flow %s: %v", id, err)
			}
			if flow.ID != id {
				t.Errorf("flow id mismatch: got %q, want %q", flow.ID, id)
			}
			if len(flow.Nodes) != nodes {
				t.Errorf("flow %s: got %d nodes, want %d", id, len(flow.Nodes), nodes)
			}
		}
	})

	t.Run("LoadFlow_NotFound", func(t *testing.T) {
		_, err := loader.LoadFlow(ctx, "non-existent-flow")
		if !errors.Is(err, domain.ErrFlowNotFound) {
			t.Errorf("expected ErrFlowNotFound, got %v", err)
		}
	})

	t.Run("ListFlows", func(t *testing.T) {
		ids, err := loader.ListFlows(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing flows: %v", err)
		}
		if len(ids) != len(expected) {
			t.Errorf("expected %d flows, got %d", len(expected), len(ids))
		}
		if !sort.StringsAreSorted(ids) {
			t.Errorf("expected sorted ids, got %v", ids)
		}
		lookup := make(map[string]bool)
		for _, id := range ids {
			lookup[id] = true
		}
		for id := range expected {
			if !lookup[id] {
				t.Errorf("flow %s missing from list", id)
			}
		}
	})
}
