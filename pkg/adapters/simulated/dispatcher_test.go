package simulated_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/flowrun/pkg/adapters/simulated"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/aretw0/flowrun/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.ActionDispatcher = (*simulated.Dispatcher)(nil)

func contents(res domain.DispatchResult) []string {
	out := make([]string, 0, len(res.Emitted))
	for _, e := range res.Emitted {
		out = append(out, e.Message.Content)
	}
	return out
}

func TestDispatcher_Emissions(t *testing.T) {
	ctx := context.Background()
	d := simulated.New(
		simulated.WithMessageDelay(10*time.Millisecond),
		simulated.WithAPIDelay(20*time.Millisecond),
	)

	t.Run("Start", func(t *testing.T) {
		node := domain.NewNode("s", domain.StartData{})
		res, err := d.Start(ctx, node, domain.StartData{})
		require.NoError(t, err)
		assert.Equal(t, []string{"→ Start"}, contents(res))
		assert.Equal(t, domain.RoleSystem, res.Emitted[0].Message.Role)
		assert.Equal(t, "s", res.Emitted[0].Message.NodeID)
		assert.False(t, res.AwaitsInput)
	})

	t.Run("Message", func(t *testing.T) {
		data := domain.MessageData{Content: "Hi"}
		res, err := d.Message(ctx, domain.NewNode("m", data), data)
		require.NoError(t, err)
		assert.Equal(t, []string{"Hi"}, contents(res))
		assert.Equal(t, domain.RoleBot, res.Emitted[0].Message.Role)
		assert.Equal(t, 10*time.Millisecond, res.Hold)
	})

	t.Run("Empty Message Placeholder", func(t *testing.T) {
		res, err := d.Message(ctx, domain.NewNode("m", domain.MessageData{}), domain.MessageData{})
		require.NoError(t, err)
		assert.Equal(t, []string{"(empty message)"}, contents(res))
	})

	t.Run("Whitespace Message Kept", func(t *testing.T) {
		data := domain.MessageData{Content: "  "}
		res, err := d.Message(ctx, domain.NewNode("m", data), data)
		require.NoError(t, err)
		assert.Equal(t, []string{"  "}, contents(res))
	})

	t.Run("Condition", func(t *testing.T) {
		res, err := d.Condition(ctx, domain.NewNode("c", domain.ConditionData{}), domain.ConditionData{})
		require.NoError(t, err)
		assert.Empty(t, res.Emitted)
		assert.True(t, res.AwaitsInput)
	})

	t.Run("APICall", func(t *testing.T) {
		data := domain.APICallData{Method: "post", URL: "https://api.example.com/refunds"}
		res, err := d.APICall(ctx, domain.NewNode("api", data), data)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"📡 Calling POST https://api.example.com/refunds…",
			"✅ API call succeeded",
		}, contents(res))
		assert.Zero(t, res.Emitted[0].After)
		assert.Equal(t, 20*time.Millisecond, res.Emitted[1].After)
	})

	t.Run("DTMF", func(t *testing.T) {
		res, err := d.DTMF(ctx, domain.NewNode("k", domain.DTMFData{}), domain.DTMFData{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Please enter your selection on the keypad."}, contents(res))
	})

	t.Run("Assistant", func(t *testing.T) {
		data := domain.AssistantData{Prompt: "Ask me anything"}
		res, err := d.Assistant(ctx, domain.NewNode("a", data), data)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ask me anything"}, contents(res))
		assert.Equal(t, 10*time.Millisecond, res.Emitted[0].After)
	})

	t.Run("Transfer", func(t *testing.T) {
		data := domain.TransferData{Target: "Billing"}
		res, err := d.Transfer(ctx, domain.NewNode("t", data), data)
		require.NoError(t, err)
		assert.Equal(t, []string{"Transferring you to Billing…"}, contents(res))
		assert.Equal(t, domain.RoleBot, res.Emitted[0].Message.Role)
	})

	t.Run("End", func(t *testing.T) {
		res, err := d.End(ctx, domain.NewNode("e", domain.EndData{}), domain.EndData{})
		require.NoError(t, err)
		assert.Equal(t, []string{"🏁 Flow completed"}, contents(res))
	})
}

func TestDispatcher_WithoutDelays(t *testing.T) {
	d := simulated.New(simulated.WithoutDelays())
	data := domain.APICallData{URL: "/x"}
	res, err := d.APICall(context.Background(), domain.NewNode("api", data), data)
	require.NoError(t, err)
	assert.Equal(t, "📡 Calling GET /x…", res.Emitted[0].Message.Content)
	for _, e := range res.Emitted {
		assert.Zero(t, e.After)
	}
}
