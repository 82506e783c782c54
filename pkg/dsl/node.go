package dsl

import "github.com/aretw0/flowrun/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

func (n *NodeBuilder) set(data domain.NodeData) *NodeBuilder {
	n.node.Type = data.NodeType()
	n.node.Data = data
	return n
}

// Start marks the node as the entry point.
func (n *NodeBuilder) Start() *NodeBuilder {
	return n.set(domain.StartData{})
}

// Message makes the node send content as a bot message.
func (n *NodeBuilder) Message(content string) *NodeBuilder {
	return n.set(domain.MessageData{Content: content})
}

// Condition makes the node wait for input and compare it with value.
func (n *NodeBuilder) Condition(op domain.Operator, value string) *NodeBuilder {
	return n.set(domain.ConditionData{Condition: domain.Condition{Operator: op, Value: value}})
}

// Contains is Condition with the contains operator.
func (n *NodeBuilder) Contains(value string) *NodeBuilder {
	return n.Condition(domain.OperatorContains, value)
}

// Equals is Condition with the equals operator.
func (n *NodeBuilder) Equals(value string) *NodeBuilder {
	return n.Condition(domain.OperatorEquals, value)
}

// APICall makes the node perform an outbound request.
func (n *NodeBuilder) APICall(method, url string) *NodeBuilder {
	return n.set(domain.APICallData{Method: method, URL: url})
}

// DTMF makes the node prompt for keypad input.
func (n *NodeBuilder) DTMF(prompt string, maxDigits int) *NodeBuilder {
	return n.set(domain.DTMFData{Prompt: prompt, MaxDigits: maxDigits})
}

// Assistant hands the turn to an assistant model.
func (n *NodeBuilder) Assistant(prompt, model string) *NodeBuilder {
	return n.set(domain.AssistantData{Prompt: prompt, Model: model})
}

// Transfer hands the conversation over to target.
func (n *NodeBuilder) Transfer(target string) *NodeBuilder {
	return n.set(domain.TransferData{Target: target})
}

// End terminates the run.
func (n *NodeBuilder) End() *NodeBuilder {
	return n.set(domain.EndData{})
}

// Go adds an unlabeled edge to the target node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	return n.edge(target, "")
}

// Yes adds the branch taken when the condition matches.
func (n *NodeBuilder) Yes(target string) *NodeBuilder {
	return n.edge(target, domain.LabelYes)
}

// No adds the branch taken when the condition does not match.
func (n *NodeBuilder) No(target string) *NodeBuilder {
	return n.edge(target, domain.LabelNo)
}

// OnError adds the edge followed when the node's action fails.
func (n *NodeBuilder) OnError(target string) *NodeBuilder {
	return n.edge(target, domain.LabelError)
}

// Connect appends legacy adjacency entries, consulted only when no edge applies.
func (n *NodeBuilder) Connect(targets ...string) *NodeBuilder {
	n.node.Connections = append(n.node.Connections, targets...)
	return n
}

func (n *NodeBuilder) edge(target, label string) *NodeBuilder {
	n.builder.edges = append(n.builder.edges, domain.Edge{Source: n.node.ID, Target: target, Label: label})
	return n
}

// Add continues the chain with another node of the same flow.
func (n *NodeBuilder) Add(id string) *NodeBuilder {
	return n.builder.Add(id)
}

// Build compiles the flow this node belongs to.
func (n *NodeBuilder) Build() (*domain.Flow, error) {
	return n.builder.Build()
}

// MustBuild compiles the flow this node belongs to; it panics on error.
func (n *NodeBuilder) MustBuild() *domain.Flow {
	return n.builder.MustBuild()
}
