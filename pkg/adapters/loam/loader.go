package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/aretw0/loam"
)

// Loader adapts a Loam repository to ports.FlowLoader.
// The whole repository is one flow: every document is a node, its front-matter
// carries type, edges and payload, and its body is the message text.
type Loader struct {
	Repo   *loam.TypedRepository[NodeMetadata]
	FlowID string
}

// New creates a new Loam adapter serving the repository as flowID.
func New(repo *loam.TypedRepository[NodeMetadata], flowID string) *Loader {
	return &Loader{
		Repo:   repo,
		FlowID: flowID,
	}
}

// Open initializes a read-only Loam repository at path and names the flow after the directory.
func Open(path string) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	// Strict mode keeps numbers consistent across Markdown/YAML and JSON documents.
	// The engine never writes flows, so the repository is opened read-only.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}

	return New(loam.NewTypedRepository[NodeMetadata](repo), filepath.Base(absPath)), nil
}

// ListFlows returns the single flow served by the repository.
func (l *Loader) ListFlows(_ context.Context) ([]string, error) {
	return []string{l.FlowID}, nil
}

// LoadFlow assembles the flow from every document of the repository.
func (l *Loader) LoadFlow(ctx context.Context, id string) (*domain.Flow, error) {
	if id != l.FlowID {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id)
	}

	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	nodes := make([]domain.Node, 0, len(docs))
	var edges []domain.Edge

	for _, doc := range docs {
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		nodeID := trimExtension(rawID)

		if existingPath, ok := seen[nodeID]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", nodeID, existingPath, doc.ID)
		}
		seen[nodeID] = doc.ID

		node, err := buildNode(nodeID, doc.Data, doc.Content)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		nodes = append(nodes, node)
		edges = append(edges, buildEdges(nodeID, doc.Data)...)
	}

	flow := domain.NewFlow(l.FlowID, nodes, edges)
	flow.Name = l.FlowID
	return flow, nil
}

func buildNode(id string, meta NodeMetadata, body string) (domain.Node, error) {
	nodeType := domain.NodeType(meta.Type)
	if nodeType == "" {
		nodeType = domain.NodeTypeMessage
	}

	data := make(map[string]any, len(meta.Data)+1)
	for k, v := range meta.Data {
		data[k] = v
	}

	// The document body fills the main text field when front-matter leaves it empty.
	if body = strings.TrimSpace(body); body != "" {
		if key := bodyField(nodeType); key != "" {
			if _, set := data[key]; !set {
				data[key] = body
			}
		}
	}

	return domain.RawNode{
		ID:          id,
		Type:        nodeType,
		Data:        data,
		Connections: trimAll(meta.Connections),
	}.Node()
}

func bodyField(t domain.NodeType) string {
	switch t {
	case domain.NodeTypeMessage:
		return "content"
	case domain.NodeTypeDTMF, domain.NodeTypeAssistant:
		return "prompt"
	}
	return ""
}

func buildEdges(source string, meta NodeMetadata) []domain.Edge {
	edges := make([]domain.Edge, 0, len(meta.Edges)+1)
	for _, e := range meta.Edges {
		target := e.To
		if target == "" {
			target = e.Target
		}
		edges = append(edges, domain.Edge{
			Source: source,
			Target: trimExtension(target),
			Label:  e.Label,
		})
	}
	if meta.To != "" {
		edges = append(edges, domain.Edge{Source: source, Target: trimExtension(meta.To)})
	}
	return edges
}

func trimAll(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for k, id := range ids {
		out[k] = trimExtension(id)
	}
	return out
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
