package dsl

import (
	"context"
	"testing"

	"github.com/aretw0/flowrun/pkg/adapters/memory"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_RefundFlow(t *testing.T) {
	flow, err := New("refund").Name("Refund desk").
		Add("start").Start().Go("hi").
		Add("hi").Message("Hi").Go("ask").
		Add("ask").Contains("refund").Yes("ok").No("keys").
		Add("ok").APICall("post", "https://billing/refunds").OnError("agent").Go("end").
		Add("keys").DTMF("Press 1", 1).Connect("bot").
		Add("bot").Assistant("Help the caller", "small").Go("agent").
		Add("agent").Transfer("billing").Go("end").
		Add("end").End().
		Build()
	require.NoError(t, err)

	assert.Equal(t, "refund", flow.ID)
	assert.Equal(t, "Refund desk", flow.Name)
	assert.Len(t, flow.Nodes, 8)

	start, err := flow.StartNode()
	require.NoError(t, err)
	assert.Equal(t, "start", start.ID)

	yes, ok, err := flow.ResolveLabeledSuccessor("ask", domain.LabelYes)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ok", yes.ID)

	onErr, ok, err := flow.ResolveLabeledSuccessor("ok", domain.LabelError)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "agent", onErr.ID)

	next, ok, err := flow.ResolveDefaultSuccessor("keys")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bot", next.ID, "legacy connections are kept")

	call, _ := flow.Node("ok")
	assert.Equal(t, domain.APICallData{Method: "post", URL: "https://billing/refunds"}, call.Data)
}

func TestBuilder_Defaults(t *testing.T) {
	b := New("f")
	b.Add("start").Start().Go("blank")
	b.Add("blank")
	assert.Same(t, b.Add("blank"), b.Add("blank"), "Add returns the existing node")

	flow := b.MustBuild()
	blank, ok := flow.Node("blank")
	require.True(t, ok)
	assert.Equal(t, domain.NodeTypeMessage, blank.Type)
	assert.Equal(t, domain.MessageData{}, blank.Data)
}

func TestBuilder_UndefinedTarget(t *testing.T) {
	b := New("f")
	b.Add("start").Start().Go("ghost")

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ghost"`)
	assert.Panics(t, func() { b.MustBuild() })
}

func TestBuilder_ServesThroughRegistry(t *testing.T) {
	built, err := New("greeting").
		Add("start").Start().Go("end").
		Add("end").End().
		Build()
	require.NoError(t, err)

	reg := memory.NewRegistry(built)
	loaded, err := reg.LoadFlow(context.Background(), "greeting")
	require.NoError(t, err)
	assert.Len(t, loaded.Nodes, 2)
}
