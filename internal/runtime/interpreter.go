package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/flowrun/internal/logging"
	"github.com/aretw0/flowrun/pkg/condition"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/aretw0/flowrun/pkg/ports"
	"github.com/aretw0/flowrun/pkg/transcript"
)

// DefaultStepLimit bounds how many nodes a run may process without suspending.
// Zero leaves runs unbounded; hosts opt in with WithStepLimit.
const DefaultStepLimit = 0

// errStale is returned internally when a run lost its generation.
var errStale = errors.New("stale run")

// Interpreter is the state machine of one conversation.
// Start and SubmitInput block until the run suspends or completes; Reset may be
// called from any goroutine and invalidates whatever is in flight.
type Interpreter struct {
	dispatcher ports.ActionDispatcher
	evaluate   condition.Func
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	stepLimit  int
	now        func() time.Time
	sessionID  string

	log *transcript.Log

	mu           sync.Mutex
	flow         *domain.Flow
	current      string
	status       domain.Status
	pendingInput bool
	generation   uint64
	updatedAt    time.Time
	cancel       context.CancelFunc
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithConditionEvaluator replaces the default case-insensitive evaluator.
func WithConditionEvaluator(fn condition.Func) Option {
	return func(i *Interpreter) {
		if fn != nil {
			i.evaluate = fn
		}
	}
}

// WithLifecycleHooks registers observability hooks. Repeated options accumulate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(i *Interpreter) {
		i.hooks = i.hooks.Merge(hooks)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interpreter) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithStepLimit caps the nodes processed between two suspensions. Zero disables the cap.
func WithStepLimit(n int) Option {
	return func(i *Interpreter) {
		i.stepLimit = n
	}
}

// WithSessionID labels events, logs and snapshots.
func WithSessionID(id string) Option {
	return func(i *Interpreter) {
		i.sessionID = id
	}
}

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(i *Interpreter) {
		if now != nil {
			i.now = now
		}
	}
}

// NewInterpreter creates an idle interpreter driving dispatcher.
func NewInterpreter(dispatcher ports.ActionDispatcher, opts ...Option) *Interpreter {
	i := &Interpreter{
		dispatcher: dispatcher,
		evaluate:   condition.Evaluate,
		logger:     logging.NewNop(),
		stepLimit:  DefaultStepLimit,
		now:        time.Now,
		log:        transcript.New(),
		status:     domain.StatusIdle,
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With(logging.SessionID(i.sessionID))
	return i
}

// Start clears the session and runs flow from its start node until the run waits
// for input or completes. A flow without exactly one start node fails with a
// *domain.MalformedFlowError and leaves the session idle.
func (i *Interpreter) Start(ctx context.Context, flow *domain.Flow) error {
	if flow == nil {
		return fmt.Errorf("start: %w", domain.ErrFlowNotFound)
	}

	start, err := flow.StartNode()

	i.mu.Lock()
	prev := i.status
	i.invalidateLocked()
	i.flow = flow
	if err != nil {
		i.mu.Unlock()
		i.logger.Warn("refusing to start flow", logging.FlowID(flow.ID), logging.Err(err))
		i.fireStatus(ctx, prev, domain.StatusIdle)
		return err
	}
	r := i.beginLocked(ctx)
	i.status = domain.StatusRunning
	i.mu.Unlock()
	defer r.stop()

	i.logger.Debug("run started", logging.FlowID(flow.ID), slog.Uint64("generation", r.gen))
	i.fireStatus(r.ctx, prev, domain.StatusIdle)
	i.fireStatus(r.ctx, domain.StatusIdle, domain.StatusRunning)

	return i.outcome(r, i.advance(r, start))
}

// SubmitInput evaluates text against the condition node the session is parked on
// and continues the run. It reports false, changing nothing, when the session is
// not waiting for input.
func (i *Interpreter) SubmitInput(ctx context.Context, text string) (bool, error) {
	i.mu.Lock()
	if i.status != domain.StatusWaitingForInput || i.flow == nil {
		i.mu.Unlock()
		return false, nil
	}
	node, ok := i.flow.Node(i.current)
	data, isCondition := node.Data.(domain.ConditionData)
	if !ok || !isCondition {
		i.mu.Unlock()
		return false, nil
	}

	outcome := i.evaluate(data.Condition, text)
	label := domain.LabelNo
	if outcome {
		label = domain.LabelYes
	}

	r := i.beginLocked(ctx)
	i.status = domain.StatusRunning
	i.pendingInput = false
	i.appendLocked(
		domain.UserMessage(node.ID, text),
		domain.SystemMessage(node.ID, "Condition evaluated: "+label),
	)
	flow := r.flow
	i.mu.Unlock()
	defer r.stop()

	i.logger.Debug("input evaluated", logging.NodeID(node.ID), slog.Bool("outcome", outcome))
	i.fireStatus(r.ctx, domain.StatusWaitingForInput, domain.StatusRunning)
	if i.hooks.OnInput != nil {
		i.hooks.OnInput(r.ctx, &domain.InputEvent{
			EventBase: i.event(domain.EventInput),
			NodeID:    node.ID,
			Outcome:   outcome,
		})
	}
	i.leave(r.ctx, node)

	next, found, err := flow.ResolveLabeledSuccessor(node.ID, label)
	if err != nil || !found {
		legacy := data.NoConnection
		if outcome {
			legacy = data.YesConnection
		}
		// A dangling labeled edge still falls back to the legacy branch when one is set.
		lnext, lfound, lerr := flow.Successor(node.ID, legacy)
		if lfound || err == nil {
			next, found, err = lnext, lfound, lerr
		}
	}

	switch {
	case err != nil:
		return true, i.outcome(r, i.misconfigured(r, node.ID, err))
	case !found:
		return true, i.outcome(r, i.complete(r))
	}
	return true, i.outcome(r, i.advance(r, next))
}

// Reset cancels any in-flight run, clears the transcript and returns to idle.
// Calling it repeatedly is harmless.
func (i *Interpreter) Reset() {
	i.mu.Lock()
	prev := i.status
	i.invalidateLocked()
	i.mu.Unlock()

	i.fireStatus(context.Background(), prev, domain.StatusIdle)
}

// Restore parks the interpreter at a previously captured snapshot.
// Only idle, waiting and completed snapshots can be restored.
func (i *Interpreter) Restore(flow *domain.Flow, snap *domain.Session) error {
	if flow == nil || snap == nil {
		return fmt.Errorf("restore: flow and snapshot are required")
	}
	switch snap.Status {
	case domain.StatusIdle, domain.StatusCompleted:
	case domain.StatusWaitingForInput:
		node, ok := flow.Node(snap.CurrentNodeID)
		if !ok || node.Type != domain.NodeTypeCondition {
			return fmt.Errorf("restore: session %s is not parked on a condition node", snap.ID)
		}
	default:
		return fmt.Errorf("restore: cannot resume a session in status %q", snap.Status)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.invalidateLocked()
	if snap.Generation > i.generation {
		i.generation = snap.Generation
	}
	i.flow = flow
	i.current = snap.CurrentNodeID
	i.status = snap.Status
	i.pendingInput = snap.Status == domain.StatusWaitingForInput
	i.updatedAt = snap.UpdatedAt
	i.log.Append(snap.Transcript...)
	return nil
}

// Status returns the current state of the session.
func (i *Interpreter) Status() domain.Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// CurrentNodeID returns the node the session is positioned on.
func (i *Interpreter) CurrentNodeID() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current
}

// Transcript returns a copy of the messages produced so far.
func (i *Interpreter) Transcript() []domain.Message {
	return i.log.Messages()
}

// Subscribe streams transcript messages as they are appended.
func (i *Interpreter) Subscribe() (<-chan domain.Message, func()) {
	return i.log.Subscribe()
}

// Flow returns the flow of the current or last run.
func (i *Interpreter) Flow() *domain.Flow {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.flow
}

// Snapshot captures the session state.
func (i *Interpreter) Snapshot() *domain.Session {
	i.mu.Lock()
	defer i.mu.Unlock()
	s := &domain.Session{
		ID:            i.sessionID,
		CurrentNodeID: i.current,
		Status:        i.status,
		Transcript:    i.log.Messages(),
		PendingInput:  i.pendingInput,
		Generation:    i.generation,
		UpdatedAt:     i.updatedAt,
	}
	if i.flow != nil {
		s.FlowID = i.flow.ID
	}
	return s
}

// advance processes nodes from node onwards until the run suspends or ends.
func (i *Interpreter) advance(r *run, node domain.Node) error {
	flow := r.flow
	for steps := 1; ; steps++ {
		if i.stepLimit > 0 && steps > i.stepLimit {
			i.logger.Warn("step limit exceeded", logging.NodeID(node.ID), slog.Int("limit", i.stepLimit))
			msg := domain.SystemMessage(node.ID, fmt.Sprintf("⚠ flow exceeded step limit at node %s", node.ID))
			if !i.commit(r, msg) {
				return errStale
			}
			return i.complete(r)
		}

		if !i.enter(r, node) {
			return errStale
		}

		res, err := i.dispatch(r.ctx, node)
		if err != nil {
			if r.ctx.Err() != nil {
				return r.ctx.Err()
			}
			next, ok, ferr := i.failed(r, flow, node, err)
			switch {
			case errors.Is(ferr, errStale):
				return ferr
			case ferr != nil:
				return i.misconfigured(r, node.ID, ferr)
			case !ok:
				return i.complete(r)
			}
			node = next
			continue
		}

		for _, em := range res.Emitted {
			if err := r.pause(em.After); err != nil {
				return err
			}
			if !i.commit(r, em.Message) {
				return errStale
			}
		}

		if res.AwaitsInput {
			return i.suspend(r)
		}
		if node.Type == domain.NodeTypeEnd {
			i.leave(r.ctx, node)
			return i.complete(r)
		}

		if err := r.pause(res.Hold); err != nil {
			return err
		}

		next, ok, err := i.successor(flow, node, res.NextHint)
		i.leave(r.ctx, node)
		switch {
		case err != nil:
			return i.misconfigured(r, node.ID, err)
		case !ok:
			return i.complete(r)
		}
		node = next
	}
}

func (i *Interpreter) dispatch(ctx context.Context, node domain.Node) (domain.DispatchResult, error) {
	switch data := node.Data.(type) {
	case domain.StartData:
		return i.dispatcher.Start(ctx, node, data)
	case domain.MessageData:
		return i.dispatcher.Message(ctx, node, data)
	case domain.ConditionData:
		return i.dispatcher.Condition(ctx, node, data)
	case domain.APICallData:
		return i.dispatcher.APICall(ctx, node, data)
	case domain.DTMFData:
		return i.dispatcher.DTMF(ctx, node, data)
	case domain.AssistantData:
		return i.dispatcher.Assistant(ctx, node, data)
	case domain.TransferData:
		return i.dispatcher.Transfer(ctx, node, data)
	case domain.EndData:
		return i.dispatcher.End(ctx, node, data)
	case nil:
		// Nodes built without a payload still dispatch by their declared type.
		data, err := domain.DecodeData(node.Type, nil)
		if err != nil {
			return domain.DispatchResult{}, err
		}
		node.Data = data
		return i.dispatch(ctx, node)
	default:
		return domain.DispatchResult{}, fmt.Errorf("unsupported payload %T", data)
	}
}

// successor resolves where to go after node. A hint from the dispatcher wins.
func (i *Interpreter) successor(flow *domain.Flow, node domain.Node, hint string) (domain.Node, bool, error) {
	if hint != "" {
		return flow.Successor(node.ID, hint)
	}
	return flow.ResolveDefaultSuccessor(node.ID)
}

// failed records a dispatcher failure and resolves the error branch, if any.
func (i *Interpreter) failed(r *run, flow *domain.Flow, node domain.Node, cause error) (domain.Node, bool, error) {
	i.logger.Warn("action failed", logging.NodeID(node.ID), logging.NodeType(node.Type), logging.Err(cause))
	msg := domain.SystemMessage(node.ID, fmt.Sprintf("⚠ %s failed: %v", node.ID, cause))
	if !i.commit(r, msg) {
		return domain.Node{}, false, errStale
	}
	i.leave(r.ctx, node)

	return flow.ResolveLabeledSuccessor(node.ID, domain.LabelError)
}

// misconfigured recovers from a broken reference by ending the run gracefully.
func (i *Interpreter) misconfigured(r *run, nodeID string, cause error) error {
	i.logger.Warn("flow misconfigured", logging.NodeID(nodeID), logging.Err(cause))
	msg := domain.SystemMessage(nodeID, fmt.Sprintf("⚠ flow misconfigured at node %s", nodeID))
	if !i.commit(r, msg) {
		return errStale
	}
	if i.hooks.OnMisconfigured != nil {
		i.hooks.OnMisconfigured(r.ctx, &domain.MisconfigurationEvent{
			EventBase: i.event(domain.EventMisconfigured),
			NodeID:    nodeID,
			Err:       cause,
		})
	}
	return i.complete(r)
}

func (i *Interpreter) complete(r *run) error {
	if !i.transition(r, domain.StatusCompleted) {
		return errStale
	}
	i.logger.Debug("run completed")
	return nil
}

func (i *Interpreter) suspend(r *run) error {
	if !i.transition(r, domain.StatusWaitingForInput) {
		return errStale
	}
	return nil
}

// enter positions the session on node.
func (i *Interpreter) enter(r *run, node domain.Node) bool {
	i.mu.Lock()
	if r.gen != i.generation {
		i.mu.Unlock()
		return false
	}
	i.current = node.ID
	i.updatedAt = i.now()
	i.mu.Unlock()

	i.logger.Debug("entering node", logging.NodeID(node.ID), logging.NodeType(node.Type))
	if i.hooks.OnNodeEnter != nil {
		i.hooks.OnNodeEnter(r.ctx, &domain.NodeEvent{
			EventBase: i.event(domain.EventNodeEnter),
			NodeID:    node.ID,
			NodeType:  node.Type,
		})
	}
	return true
}

func (i *Interpreter) leave(ctx context.Context, node domain.Node) {
	if i.hooks.OnNodeLeave != nil {
		i.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
			EventBase: i.event(domain.EventNodeLeave),
			NodeID:    node.ID,
			NodeType:  node.Type,
		})
	}
}

// commit appends msgs if r still owns the session.
func (i *Interpreter) commit(r *run, msgs ...domain.Message) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if r.gen != i.generation {
		return false
	}
	i.appendLocked(msgs...)
	return true
}

// transition moves the session to status if r still owns it.
func (i *Interpreter) transition(r *run, to domain.Status) bool {
	i.mu.Lock()
	if r.gen != i.generation {
		i.mu.Unlock()
		return false
	}
	from := i.status
	i.status = to
	i.pendingInput = to == domain.StatusWaitingForInput
	i.updatedAt = i.now()
	i.mu.Unlock()

	i.fireStatus(r.ctx, from, to)
	return true
}

func (i *Interpreter) appendLocked(msgs ...domain.Message) {
	now := i.now()
	for k := range msgs {
		if msgs[k].Timestamp.IsZero() {
			msgs[k].Timestamp = now
		}
	}
	i.log.Append(msgs...)
	i.updatedAt = now
}

// invalidateLocked cancels the in-flight run and clears the session.
func (i *Interpreter) invalidateLocked() {
	if i.cancel != nil {
		i.cancel()
		i.cancel = nil
	}
	i.generation++
	i.log.Reset()
	i.current = ""
	i.status = domain.StatusIdle
	i.pendingInput = false
	i.updatedAt = i.now()
}

// beginLocked opens a run segment bound to the current generation.
// Only Reset and Start cancel a run; the caller's cancellation does not reach it.
func (i *Interpreter) beginLocked(ctx context.Context) *run {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	i.cancel = cancel
	return &run{ctx: runCtx, gen: i.generation, flow: i.flow, stop: cancel}
}

// outcome maps the result of a run segment onto what the caller sees.
func (i *Interpreter) outcome(r *run, err error) error {
	if err == nil {
		return nil
	}
	i.mu.Lock()
	stale := r.gen != i.generation
	i.mu.Unlock()
	if stale || errors.Is(err, errStale) {
		return domain.ErrSessionReset
	}
	return err
}

func (i *Interpreter) fireStatus(ctx context.Context, from, to domain.Status) {
	if from == to {
		return
	}
	i.logger.Debug("status changed", slog.String("from", string(from)), logging.Status(to))
	if i.hooks.OnStatusChange != nil {
		i.hooks.OnStatusChange(ctx, &domain.StatusEvent{
			EventBase: i.event(domain.EventStatusChange),
			From:      from,
			To:        to,
		})
	}
}

func (i *Interpreter) event(t domain.EventType) domain.EventBase {
	base := domain.EventBase{
		Timestamp: i.now(),
		Type:      t,
		SessionID: i.sessionID,
	}
	if f := i.Flow(); f != nil {
		base.FlowID = f.ID
	}
	return base
}
