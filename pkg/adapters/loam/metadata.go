package loam

// NodeMetadata is the front-matter of a node document.
// It uses "mapstructure" tags to match standard Frontmatter/YAML keys.
type NodeMetadata struct {
	ID   string `json:"id" mapstructure:"id"`
	Type string `json:"type" mapstructure:"type"`

	// To is sugar for a single unlabeled edge.
	To    string         `json:"to" mapstructure:"to"`
	Edges []EdgeMetadata `json:"edges" mapstructure:"edges"`
	Data  map[string]any `json:"data" mapstructure:"data"`

	// Connections is the legacy adjacency list.
	Connections []string `json:"connections" mapstructure:"connections"`
}

// EdgeMetadata is an outgoing edge declared on its source document.
type EdgeMetadata struct {
	To     string `json:"to" mapstructure:"to"`
	Target string `json:"target" mapstructure:"target"`
	Label  string `json:"label" mapstructure:"label"`
}
