package domain

// Edge is a directed connection between two nodes.
// An edge without a label is the default (unconditional) successor of its source.
type Edge struct {
	Source string `json:"source" yaml:"source" mapstructure:"source"`
	Target string `json:"target" yaml:"target" mapstructure:"target"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
}

// Branch labels used by condition nodes.
const (
	LabelYes = "Yes"
	LabelNo  = "No"

	// LabelError marks the edge followed when a dispatcher reports a failure.
	LabelError = "error"
)

// Operator is the comparison applied by a Condition.
type Operator string

const (
	OperatorEquals   Operator = "equals"
	OperatorContains Operator = "contains"
)

// Condition compares user input against Value.
type Condition struct {
	Operator Operator `json:"operator" yaml:"operator" mapstructure:"operator"`
	Value    string   `json:"value" yaml:"value" mapstructure:"value"`
}
