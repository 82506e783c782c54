package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/flowrun/internal/testutils"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/aretw0/flowrun/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greetingYAML = `
id: greeting
nodes:
  - id: start
    type: start
  - id: hi
    type: message
    data:
      content: Hi
  - id: end
    type: end
edges:
  - source: start
    target: hi
  - source: hi
    target: end
`

const refundJSON = `{
  "name": "Refund desk",
  "nodes": [
    {"id": "start", "type": "start"},
    {"id": "ask", "type": "condition", "data": {"condition": {"operator": "contains", "value": "refund"}}},
    {"id": "ok", "type": "message", "data": {"content": "Processing refund"}},
    {"id": "end", "type": "end"}
  ],
  "edges": [
    {"source": "start", "target": "ask"},
    {"source": "ask", "target": "ok", "label": "Yes"},
    {"source": "ask", "target": "end", "label": "No"}
  ]
}`

func writeFlows(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string]string{
		"greeting.yaml": greetingYAML,
		"refund.json":   refundJSON,
		"README.md":     "# not a flow",
	})
	return dir
}

func TestLoader_Contract(t *testing.T) {
	loader := NewLoader(writeFlows(t))
	tests.FlowLoaderContractTest(t, loader, map[string]int{
		"greeting": 3,
		"refund":   4,
	})
}

func TestLoader_IDFallsBackToFileName(t *testing.T) {
	loader := NewLoader(writeFlows(t))

	flow, err := loader.LoadFlow(context.Background(), "refund")
	require.NoError(t, err)
	assert.Equal(t, "Refund desk", flow.Name)

	next, ok, err := flow.ResolveLabeledSuccessor("ask", domain.LabelYes)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ok", next.ID)
}

func TestLoader_SingleFile(t *testing.T) {
	dir := writeFlows(t)
	loader := NewLoader(filepath.Join(dir, "greeting.yaml"))

	ids, err := loader.ListFlows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"greeting"}, ids)

	_, err = loader.LoadFlow(context.Background(), "refund")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestLoader_Errors(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		_, err := NewLoader(filepath.Join(t.TempDir(), "nope")).ListFlows(context.Background())
		assert.Error(t, err)
	})

	t.Run("invalid document", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("nodes: [{id: a, type: teleport}]"), 0644))
		_, err := NewLoader(dir).LoadFlow(context.Background(), "bad")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad.yaml")
	})

	t.Run("duplicate flow ids", func(t *testing.T) {
		dir := t.TempDir()
		testutils.WriteFiles(t, dir, map[string]string{
			"a.yaml": "id: same\nnodes: []\n",
			"b.yml":  "id: same\nnodes: []\n",
		})
		_, err := NewLoader(dir).ListFlows(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "collision detected")
	})
}

func TestIsFlowFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"flow.yaml", true},
		{"flow.YML", true},
		{"flow.json", true},
		{"flow.md", false},
		{"flow", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsFlowFile(tt.name), tt.name)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	flow, err := Parse([]byte(greetingYAML), ".yaml")
	require.NoError(t, err)

	out, err := Encode(flow)
	require.NoError(t, err)

	again, err := Parse(out, ".yml")
	require.NoError(t, err)
	assert.Equal(t, flow.ID, again.ID)
	assert.Equal(t, flow.Nodes, again.Nodes)
	assert.Equal(t, flow.Edges, again.Edges)
}
