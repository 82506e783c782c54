package dsl

import (
	"fmt"

	"github.com/aretw0/flowrun/pkg/domain"
)

// Builder manages the flow construction.
type Builder struct {
	id    string
	name  string
	order []string
	nodes map[string]*NodeBuilder
	edges []domain.Edge
}

// New creates a new flow builder.
func New(flowID string) *Builder {
	return &Builder{
		id:    flowID,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Name sets the display name of the flow.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Add creates a new node in the flow.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.Node{ID: id},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Build compiles the flow. Untyped nodes become empty messages.
// It fails when an edge references a node that was never added.
func (b *Builder) Build() (*domain.Flow, error) {
	nodes := make([]domain.Node, 0, len(b.order))
	for _, id := range b.order {
		n := b.nodes[id].node
		if n.Data == nil {
			n.Type, n.Data = domain.NodeTypeMessage, domain.MessageData{}
		}
		nodes = append(nodes, n)
	}
	for _, e := range b.edges {
		if _, ok := b.nodes[e.Target]; !ok {
			return nil, fmt.Errorf("flow %s: %s points to undefined node %q", b.id, e.Source, e.Target)
		}
	}

	flow := domain.NewFlow(b.id, nodes, append([]domain.Edge(nil), b.edges...))
	flow.Name = b.name
	return flow, nil
}

// MustBuild is Build for flows declared in code; it panics on error.
func (b *Builder) MustBuild() *domain.Flow {
	flow, err := b.Build()
	if err != nil {
		panic(err)
	}
	return flow
}
