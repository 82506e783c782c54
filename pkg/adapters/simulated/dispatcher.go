// Package simulated provides an ActionDispatcher that models external effects
// (HTTP calls, telephony hand-offs, assistants) by timing and outcome only.
package simulated

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/flowrun/pkg/domain"
)

// Default pacing of a simulated run.
const (
	DefaultMessageDelay = 800 * time.Millisecond
	DefaultAPIDelay     = 1500 * time.Millisecond
)

// Transcript text produced by the simulation.
const (
	StartTrace        = "→ Start"
	EmptyMessage      = "(empty message)"
	APISucceeded      = "✅ API call succeeded"
	DefaultDTMFPrompt = "Please enter your selection on the keypad."
	DefaultGreeting   = "How can I help you today?"
	FlowCompleted     = "🏁 Flow completed"
)

// Dispatcher is the default ports.ActionDispatcher. Every action succeeds.
type Dispatcher struct {
	messageDelay time.Duration
	apiDelay     time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMessageDelay sets the pause after message, transfer and assistant nodes.
func WithMessageDelay(d time.Duration) Option {
	return func(s *Dispatcher) {
		s.messageDelay = d
	}
}

// WithAPIDelay sets the simulated latency of api_call nodes.
func WithAPIDelay(d time.Duration) Option {
	return func(s *Dispatcher) {
		s.apiDelay = d
	}
}

// WithoutDelays disables pacing. Useful for tests and batch runs.
func WithoutDelays() Option {
	return func(s *Dispatcher) {
		s.messageDelay = 0
		s.apiDelay = 0
	}
}

// New creates a simulated dispatcher with the default pacing.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		messageDelay: DefaultMessageDelay,
		apiDelay:     DefaultAPIDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Start(_ context.Context, node domain.Node, _ domain.StartData) (domain.DispatchResult, error) {
	var res domain.DispatchResult
	res.Emit(domain.SystemMessage(node.ID, StartTrace))
	return res, nil
}

func (d *Dispatcher) Message(_ context.Context, node domain.Node, data domain.MessageData) (domain.DispatchResult, error) {
	content := data.Content
	if content == "" {
		content = EmptyMessage
	}
	res := domain.DispatchResult{Hold: d.messageDelay}
	res.Emit(domain.BotMessage(node.ID, content))
	return res, nil
}

// Condition emits nothing; the interpreter parks the session until input arrives.
func (d *Dispatcher) Condition(_ context.Context, _ domain.Node, _ domain.ConditionData) (domain.DispatchResult, error) {
	return domain.DispatchResult{AwaitsInput: true}, nil
}

func (d *Dispatcher) APICall(_ context.Context, node domain.Node, data domain.APICallData) (domain.DispatchResult, error) {
	method := strings.ToUpper(data.Method)
	if method == "" {
		method = "GET"
	}
	var res domain.DispatchResult
	res.Emit(domain.SystemMessage(node.ID, fmt.Sprintf("📡 Calling %s %s…", method, data.URL)))
	res.EmitAfter(d.apiDelay, domain.SystemMessage(node.ID, APISucceeded))
	return res, nil
}

// DTMF announces the keypad prompt. Digit collection happens outside the simulation.
func (d *Dispatcher) DTMF(_ context.Context, node domain.Node, data domain.DTMFData) (domain.DispatchResult, error) {
	prompt := data.Prompt
	if prompt == "" {
		prompt = DefaultDTMFPrompt
	}
	var res domain.DispatchResult
	res.Emit(domain.BotMessage(node.ID, prompt))
	return res, nil
}

func (d *Dispatcher) Assistant(_ context.Context, node domain.Node, data domain.AssistantData) (domain.DispatchResult, error) {
	prompt := data.Prompt
	if prompt == "" {
		prompt = DefaultGreeting
	}
	var res domain.DispatchResult
	res.EmitAfter(d.messageDelay, domain.BotMessage(node.ID, prompt))
	return res, nil
}

func (d *Dispatcher) Transfer(_ context.Context, node domain.Node, data domain.TransferData) (domain.DispatchResult, error) {
	target := data.Target
	if target == "" {
		target = "an agent"
	}
	res := domain.DispatchResult{Hold: d.messageDelay}
	res.Emit(domain.BotMessage(node.ID, fmt.Sprintf("Transferring you to %s…", target)))
	return res, nil
}

func (d *Dispatcher) End(_ context.Context, node domain.Node, _ domain.EndData) (domain.DispatchResult, error) {
	var res domain.DispatchResult
	res.Emit(domain.SystemMessage(node.ID, FlowCompleted))
	return res, nil
}
