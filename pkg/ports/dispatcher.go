package ports

import (
	"context"

	"github.com/aretw0/flowrun/pkg/domain"
)

// ActionDispatcher performs the side effect associated with each node type.
// The interpreter calls exactly one method per processed node and never runs two
// calls concurrently for the same session. Pauses requested through the result
// are executed by the interpreter, so implementations should return promptly.
type ActionDispatcher interface {
	Start(ctx context.Context, node domain.Node, data domain.StartData) (domain.DispatchResult, error)
	Message(ctx context.Context, node domain.Node, data domain.MessageData) (domain.DispatchResult, error)
	Condition(ctx context.Context, node domain.Node, data domain.ConditionData) (domain.DispatchResult, error)
	APICall(ctx context.Context, node domain.Node, data domain.APICallData) (domain.DispatchResult, error)
	DTMF(ctx context.Context, node domain.Node, data domain.DTMFData) (domain.DispatchResult, error)
	Assistant(ctx context.Context, node domain.Node, data domain.AssistantData) (domain.DispatchResult, error)
	Transfer(ctx context.Context, node domain.Node, data domain.TransferData) (domain.DispatchResult, error)
	End(ctx context.Context, node domain.Node, data domain.EndData) (domain.DispatchResult, error)
}
