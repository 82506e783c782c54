package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Flow is the declarative graph describing one conversational script.
// The engine treats it as read-only for the duration of a run.
type Flow struct {
	ID    string          `json:"id" yaml:"id"`
	Name  string          `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes map[string]Node `json:"-" yaml:"-"`
	Edges []Edge          `json:"edges" yaml:"edges"`
}

// NewFlow indexes nodes by id. Later nodes with a duplicated id replace earlier ones.
func NewFlow(id string, nodes []Node, edges []Edge) *Flow {
	f := &Flow{
		ID:    id,
		Nodes: make(map[string]Node, len(nodes)),
		Edges: edges,
	}
	for _, n := range nodes {
		f.Nodes[n.ID] = n
	}
	return f
}

// Node returns the node with the given id.
func (f *Flow) Node(id string) (Node, bool) {
	n, ok := f.Nodes[id]
	return n, ok
}

// NodeList returns the nodes sorted by id.
func (f *Flow) NodeList() []Node {
	ids := make([]string, 0, len(f.Nodes))
	for id := range f.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, f.Nodes[id])
	}
	return nodes
}

// StartNode returns the unique start node.
func (f *Flow) StartNode() (Node, error) {
	var (
		start Node
		count int
	)
	for _, n := range f.Nodes {
		if n.Type == NodeTypeStart {
			start = n
			count++
		}
	}
	if count != 1 {
		return Node{}, &MalformedFlowError{FlowID: f.ID, StartNodes: count}
	}
	return start, nil
}

// ResolveDefaultSuccessor returns the node reached from nodeID by an unlabeled edge,
// falling back to the first legacy connection. ok is false when the node is terminal.
func (f *Flow) ResolveDefaultSuccessor(nodeID string) (next Node, ok bool, err error) {
	for _, e := range f.Edges {
		if e.Source == nodeID && e.Label == "" {
			return f.lookup(nodeID, e.Target)
		}
	}
	if n, exists := f.Nodes[nodeID]; exists && len(n.Connections) > 0 {
		return f.lookup(nodeID, n.Connections[0])
	}
	return Node{}, false, nil
}

// ResolveLabeledSuccessor returns the node reached from nodeID by an edge whose label
// matches exactly. Legacy connections carry no labels and are not consulted.
func (f *Flow) ResolveLabeledSuccessor(nodeID, label string) (next Node, ok bool, err error) {
	for _, e := range f.Edges {
		if e.Source == nodeID && e.Label == label {
			return f.lookup(nodeID, e.Target)
		}
	}
	return Node{}, false, nil
}

// Successor resolves an explicit target id referenced by nodeID (legacy fields, hints).
func (f *Flow) Successor(nodeID, targetID string) (Node, bool, error) {
	if targetID == "" {
		return Node{}, false, nil
	}
	return f.lookup(nodeID, targetID)
}

func (f *Flow) lookup(from, to string) (Node, bool, error) {
	n, ok := f.Nodes[to]
	if !ok {
		return Node{}, false, &DanglingReferenceError{NodeID: from, TargetID: to}
	}
	return n, true, nil
}

// flowWire is the serialized shape: nodes travel as a list.
type flowWire struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// MarshalJSON writes nodes as a list sorted by id.
func (f Flow) MarshalJSON() ([]byte, error) {
	return json.Marshal(flowWire{
		ID:    f.ID,
		Name:  f.Name,
		Nodes: f.NodeList(),
		Edges: f.Edges,
	})
}

// MarshalYAML mirrors MarshalJSON for gopkg.in/yaml.v3 encoders.
func (f Flow) MarshalYAML() (any, error) {
	return flowWire{
		ID:    f.ID,
		Name:  f.Name,
		Nodes: f.NodeList(),
		Edges: f.Edges,
	}, nil
}

// UnmarshalJSON reads the list form and indexes the nodes.
func (f *Flow) UnmarshalJSON(b []byte) error {
	var w flowWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	return f.fromWire(w)
}

// UnmarshalYAML reads the list form for gopkg.in/yaml.v3 decoders.
func (f *Flow) UnmarshalYAML(unmarshal func(any) error) error {
	var w flowWire
	if err := unmarshal(&w); err != nil {
		return err
	}
	return f.fromWire(w)
}

func (f *Flow) fromWire(w flowWire) error {
	nodes := make(map[string]Node, len(w.Nodes))
	for _, n := range w.Nodes {
		if n.ID == "" {
			return fmt.Errorf("flow %s: node missing id", w.ID)
		}
		if _, dup := nodes[n.ID]; dup {
			return fmt.Errorf("flow %s: duplicated node id %q", w.ID, n.ID)
		}
		nodes[n.ID] = n
	}
	f.ID = w.ID
	f.Name = w.Name
	f.Nodes = nodes
	f.Edges = w.Edges
	return nil
}
