package domain

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// NodeType selects the behavior of a node.
type NodeType string

const (
	// NodeTypeStart is the unique entry point of a flow.
	NodeTypeStart NodeType = "start"
	// NodeTypeMessage sends a bot message and continues.
	NodeTypeMessage NodeType = "message"
	// NodeTypeCondition halts until user input is evaluated against a condition.
	NodeTypeCondition NodeType = "condition"
	// NodeTypeAPICall performs an outbound call (simulated by default).
	NodeTypeAPICall NodeType = "api_call"
	// NodeTypeDTMF prompts for keypad input.
	NodeTypeDTMF NodeType = "dtmf"
	// NodeTypeAssistant hands the turn to a conversational assistant.
	NodeTypeAssistant NodeType = "assistant"
	// NodeTypeTransfer hands the conversation over to another party.
	NodeTypeTransfer NodeType = "transfer"
	// NodeTypeEnd terminates the run.
	NodeTypeEnd NodeType = "end"
)

// NodeTypes lists every known node type in declaration order.
var NodeTypes = []NodeType{
	NodeTypeStart,
	NodeTypeMessage,
	NodeTypeCondition,
	NodeTypeAPICall,
	NodeTypeDTMF,
	NodeTypeAssistant,
	NodeTypeTransfer,
	NodeTypeEnd,
}

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// NodeData is the type-specific payload of a node.
// The set of implementations is closed: one variant per NodeType.
type NodeData interface {
	NodeType() NodeType
	isNodeData()
}

// StartData is the payload of a start node.
type StartData struct{}

// MessageData is the payload of a message node.
type MessageData struct {
	Content string `json:"content,omitempty" yaml:"content,omitempty" mapstructure:"content"`
}

// ConditionData is the payload of a condition node.
// YesConnection and NoConnection are legacy branch targets used when no labeled edge matches.
type ConditionData struct {
	Condition     Condition `json:"condition" yaml:"condition" mapstructure:"condition"`
	YesConnection string    `json:"yes_connection,omitempty" yaml:"yes_connection,omitempty" mapstructure:"yes_connection"`
	NoConnection  string    `json:"no_connection,omitempty" yaml:"no_connection,omitempty" mapstructure:"no_connection"`
}

// APICallData is the payload of an api_call node.
type APICallData struct {
	Method  string            `json:"method,omitempty" yaml:"method,omitempty" mapstructure:"method"`
	URL     string            `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" mapstructure:"headers"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty" mapstructure:"body"`
}

// DTMFData is the payload of a dtmf node.
type DTMFData struct {
	Prompt    string `json:"prompt,omitempty" yaml:"prompt,omitempty" mapstructure:"prompt"`
	MaxDigits int    `json:"max_digits,omitempty" yaml:"max_digits,omitempty" mapstructure:"max_digits"`
}

// AssistantData is the payload of an assistant node.
type AssistantData struct {
	Prompt string `json:"prompt,omitempty" yaml:"prompt,omitempty" mapstructure:"prompt"`
	Model  string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
}

// TransferData is the payload of a transfer node.
type TransferData struct {
	Target string `json:"target,omitempty" yaml:"target,omitempty" mapstructure:"target"`
}

// EndData is the payload of an end node.
type EndData struct{}

func (StartData) NodeType() NodeType     { return NodeTypeStart }
func (MessageData) NodeType() NodeType   { return NodeTypeMessage }
func (ConditionData) NodeType() NodeType { return NodeTypeCondition }
func (APICallData) NodeType() NodeType   { return NodeTypeAPICall }
func (DTMFData) NodeType() NodeType      { return NodeTypeDTMF }
func (AssistantData) NodeType() NodeType { return NodeTypeAssistant }
func (TransferData) NodeType() NodeType  { return NodeTypeTransfer }
func (EndData) NodeType() NodeType       { return NodeTypeEnd }

func (StartData) isNodeData()     {}
func (MessageData) isNodeData()   {}
func (ConditionData) isNodeData() {}
func (APICallData) isNodeData()   {}
func (DTMFData) isNodeData()      {}
func (AssistantData) isNodeData() {}
func (TransferData) isNodeData()  {}
func (EndData) isNodeData()       {}

// Node is a single step of a Flow.
type Node struct {
	ID   string   `json:"id" yaml:"id"`
	Type NodeType `json:"type" yaml:"type"`
	Data NodeData `json:"data,omitempty" yaml:"data,omitempty"`

	// Connections is the legacy adjacency list of successor ids.
	// Edges take precedence; the first entry is only used when no default edge exists.
	Connections []string `json:"connections,omitempty" yaml:"connections,omitempty"`
}

// NewNode builds a node whose type is taken from its payload.
func NewNode(id string, data NodeData, connections ...string) Node {
	return Node{
		ID:          id,
		Type:        data.NodeType(),
		Data:        data,
		Connections: connections,
	}
}

// RawNode is the loosely typed wire shape of a Node.
// It is what JSON, YAML and front-matter decoders produce before DecodeData runs.
type RawNode struct {
	ID          string         `json:"id" yaml:"id" mapstructure:"id"`
	Type        NodeType       `json:"type" yaml:"type" mapstructure:"type"`
	Data        map[string]any `json:"data,omitempty" yaml:"data,omitempty" mapstructure:"data"`
	Connections []string       `json:"connections,omitempty" yaml:"connections,omitempty" mapstructure:"connections"`
}

// Node converts the raw shape into a typed Node.
func (r RawNode) Node() (Node, error) {
	data, err := DecodeData(r.Type, r.Data)
	if err != nil {
		return Node{}, fmt.Errorf("node %s: %w", r.ID, err)
	}
	return Node{
		ID:          r.ID,
		Type:        r.Type,
		Data:        data,
		Connections: r.Connections,
	}, nil
}

// legacyKeys maps the camelCase keys of older flow exports onto the current names.
var legacyKeys = map[string]string{
	"yesConnection": "yes_connection",
	"noConnection":  "no_connection",
	"maxDigits":     "max_digits",
}

// DecodeData decodes a loosely typed payload into the variant matching t.
func DecodeData(t NodeType, raw map[string]any) (NodeData, error) {
	var target NodeData
	switch t {
	case NodeTypeStart:
		return StartData{}, nil
	case NodeTypeEnd:
		return EndData{}, nil
	case NodeTypeMessage:
		target = &MessageData{}
	case NodeTypeCondition:
		target = &ConditionData{}
	case NodeTypeAPICall:
		target = &APICallData{}
	case NodeTypeDTMF:
		target = &DTMFData{}
	case NodeTypeAssistant:
		target = &AssistantData{}
	case NodeTypeTransfer:
		target = &TransferData{}
	default:
		return nil, fmt.Errorf("unknown node type %q", t)
	}

	normalized := make(map[string]any, len(raw))
	for k, v := range raw {
		if alias, ok := legacyKeys[k]; ok {
			k = alias
		}
		normalized[k] = v
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(normalized); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", t, err)
	}

	switch v := target.(type) {
	case *MessageData:
		return *v, nil
	case *ConditionData:
		return *v, nil
	case *APICallData:
		return *v, nil
	case *DTMFData:
		return *v, nil
	case *AssistantData:
		return *v, nil
	case *TransferData:
		return *v, nil
	}
	return nil, fmt.Errorf("unknown node type %q", t)
}

// UnmarshalJSON decodes the wire shape and resolves the payload variant from the type field.
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw RawNode
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	node, err := raw.Node()
	if err != nil {
		return err
	}
	*n = node
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for gopkg.in/yaml.v3 decoders.
func (n *Node) UnmarshalYAML(unmarshal func(any) error) error {
	var raw RawNode
	if err := unmarshal(&raw); err != nil {
		return err
	}
	node, err := raw.Node()
	if err != nil {
		return err
	}
	*n = node
	return nil
}
