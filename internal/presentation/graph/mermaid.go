package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/flowrun/pkg/domain"
)

// GraphOverlay contains dynamic session data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromSession marks every node the transcript mentions and the node the
// session is parked on.
func OverlayFromSession(s *domain.Session) *GraphOverlay {
	if s == nil {
		return nil
	}
	overlay := &GraphOverlay{CurrentNode: s.CurrentNodeID}
	for _, msg := range s.Transcript {
		if msg.NodeID != "" {
			overlay.VisitedNodes = append(overlay.VisitedNodes, msg.NodeID)
		}
	}
	return overlay
}

// previewLen bounds the message preview shown under a node id.
const previewLen = 32

// GenerateMermaid produces a Mermaid flowchart of flow.
// Shapes follow the node type:
// - Start: ((Circle)), End: (((Double circle)))
// - Condition: {Rhombus}
// - API call: [[Subroutine]]
// - DTMF: [/Parallelogram/]
// - Assistant: ([Stadium]), Transfer: >Flag]
// - Message: [Rectangle]
// Edges are solid, legacy connections dotted. Overlay styles are applied if provided.
func GenerateMermaid(flow *domain.Flow, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if flow == nil {
		return sb.String()
	}

	nodes := flow.NodeList()
	for _, node := range nodes {
		opener, closer := shape(node.Type)
		label := escape(node.ID)
		if preview := summary(node); preview != "" {
			label += "<br/>" + escape(preview)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(node.ID), opener, label, closer)
	}

	for _, e := range flow.Edges {
		from, to := sanitizeMermaidID(e.Source), sanitizeMermaidID(e.Target)
		if e.Label != "" {
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", from, escape(e.Label), to)
			continue
		}
		fmt.Fprintf(&sb, "    %s --> %s\n", from, to)
	}

	// Legacy adjacency is drawn dotted so it stands out from explicit edges.
	for _, node := range nodes {
		from := sanitizeMermaidID(node.ID)
		if data, ok := node.Data.(domain.ConditionData); ok {
			if data.YesConnection != "" {
				fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", from, domain.LabelYes, sanitizeMermaidID(data.YesConnection))
			}
			if data.NoConnection != "" {
				fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", from, domain.LabelNo, sanitizeMermaidID(data.NoConnection))
			}
		}
		for _, target := range node.Connections {
			fmt.Fprintf(&sb, "    %s -.-> %s\n", from, sanitizeMermaidID(target))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visited := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			if _, ok := flow.Node(id); !ok {
				continue
			}
			safeID := sanitizeMermaidID(id)
			if !visited[safeID] {
				visited[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func shape(t domain.NodeType) (string, string) {
	switch t {
	case domain.NodeTypeStart:
		return "((", "))"
	case domain.NodeTypeEnd:
		return "(((", ")))"
	case domain.NodeTypeCondition:
		return "{", "}"
	case domain.NodeTypeAPICall:
		return "[[", "]]"
	case domain.NodeTypeDTMF:
		return "[/", "/]"
	case domain.NodeTypeAssistant:
		return "([", "])"
	case domain.NodeTypeTransfer:
		return ">", "]"
	}
	return "[", "]"
}

func summary(node domain.Node) string {
	var text string
	switch d := node.Data.(type) {
	case domain.MessageData:
		text = d.Content
	case domain.ConditionData:
		text = fmt.Sprintf("%s %q", d.Condition.Operator, d.Condition.Value)
	case domain.APICallData:
		text = strings.TrimSpace(strings.ToUpper(d.Method) + " " + d.URL)
	case domain.DTMFData:
		text = d.Prompt
	case domain.AssistantData:
		text = d.Prompt
	case domain.TransferData:
		text = d.Target
	}
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > previewLen {
		text = string(r[:previewLen-1]) + "…"
	}
	return text
}

// escape keeps labels inside their double quotes.
func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
