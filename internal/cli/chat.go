package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/flowrun"
	"github.com/aretw0/flowrun/internal/logging"
	"github.com/aretw0/flowrun/internal/presentation/tui"
	"github.com/aretw0/flowrun/internal/runtime"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/aretw0/flowrun/pkg/ports"
	"github.com/google/uuid"
)

// ResetCommand restarts the flow from its start node.
const ResetCommand = "/reset"

// ChatOptions configures an interactive terminal session.
type ChatOptions struct {
	// FlowID may be empty when the source holds a single flow.
	FlowID string
	// SessionID names a persistent session. With a Store it is resumed when found.
	SessionID string
	Store     ports.SessionStore
	Headless  bool
	In        io.Reader
	Out       io.Writer
	Printer   *tui.Printer
	Logger    *slog.Logger
}

// RunChat drives one session from the terminal. Messages are printed as the
// dispatcher produces them, and every condition node reads one line of input.
// It returns the last snapshot when the flow completes, the input ends, or the
// user leaves with exit or quit.
func RunChat(ctx context.Context, engine *flowrun.Engine, opts ChatOptions) (*domain.Session, error) {
	if opts.In == nil || opts.Out == nil {
		return nil, errors.New("chat requires an input and an output")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	printer := opts.Printer
	if printer == nil {
		printer = tui.NewPrinter(opts.Out, nil)
	}

	flowID := opts.FlowID
	if flowID == "" {
		id, err := engine.DefaultFlow(ctx)
		if err != nil {
			return nil, err
		}
		flowID = id
	}
	flow, err := engine.Flow(ctx, flowID)
	if err != nil {
		return nil, err
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	logger = logger.With(logging.SessionID(sessionID), logging.FlowID(flowID))

	interp := engine.NewInterpreter(sessionID)
	t := newTail(interp, printer, opts.Headless)
	defer t.follow()()

	c := &chat{opts: opts, interp: interp, tail: t, logger: logger}
	if err := c.begin(ctx, flow); err != nil {
		return interp.Snapshot(), err
	}

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	lines := readLines(readCtx, opts.In)
	for interp.Status() == domain.StatusWaitingForInput {
		if !opts.Headless {
			t.locked(printer.Prompt)
		}
		var in line
		select {
		case <-ctx.Done():
			return interp.Snapshot(), ctx.Err()
		case in = <-lines:
		}
		eof := errors.Is(in.err, io.EOF)
		if in.err != nil && !eof {
			return interp.Snapshot(), fmt.Errorf("input error: %w", in.err)
		}
		text := strings.TrimSpace(in.text)
		if eof && text == "" {
			break
		}

		var err error
		switch text {
		case "exit", "quit":
			t.locked(func() { fmt.Fprintln(opts.Out, "Bye!") })
			return interp.Snapshot(), nil
		case ResetCommand:
			interp.Reset()
			t.rewind()
			err = interp.Start(ctx, flow)
		default:
			_, err = interp.SubmitInput(ctx, text)
		}
		t.flush()
		c.save(ctx)
		if err != nil {
			return interp.Snapshot(), err
		}
		if eof {
			break
		}
	}

	snap := interp.Snapshot()
	if !opts.Headless && snap.Status == domain.StatusCompleted {
		t.locked(func() { printer.Status(snap.Status) })
	}
	return snap, nil
}

type line struct {
	text string
	err  error
}

// readLines feeds lines from r until it fails. The reader goroutine outlives a
// cancelled ctx while a read is blocked, which only matters until the process exits.
func readLines(ctx context.Context, r io.Reader) <-chan line {
	ch := make(chan line)
	go func() {
		br := bufio.NewReader(r)
		for {
			text, err := br.ReadString('\n')
			select {
			case ch <- line{text: text, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

type chat struct {
	opts   ChatOptions
	interp *runtime.Interpreter
	tail   *tail
	logger *slog.Logger
}

// begin resumes the stored session when there is one for this flow, and starts
// a fresh run otherwise. A finished session is started over.
func (c *chat) begin(ctx context.Context, flow *domain.Flow) error {
	if snap := c.load(ctx, flow); snap != nil {
		if err := c.interp.Restore(flow, snap); err != nil {
			c.logger.Warn("cannot resume session, starting over", logging.Err(err))
		} else {
			c.logger.Info("session resumed", logging.NodeID(snap.CurrentNodeID))
			c.tail.flush()
			if !c.opts.Headless {
				c.tail.locked(func() {
					printSystemMessage(c.opts.Out, "Resuming at '%s' node...", snap.CurrentNodeID)
				})
			}
			return nil
		}
	}

	err := c.interp.Start(ctx, flow)
	c.tail.flush()
	c.save(ctx)
	return err
}

func (c *chat) load(ctx context.Context, flow *domain.Flow) *domain.Session {
	if c.opts.Store == nil || c.opts.SessionID == "" {
		return nil
	}
	snap, err := c.opts.Store.Load(ctx, c.opts.SessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return nil
	case err != nil:
		c.logger.Warn("failed to load session", logging.Err(err))
		return nil
	case snap.FlowID != flow.ID:
		c.logger.Warn("stored session belongs to another flow", slog.String("stored_flow", snap.FlowID))
		return nil
	case snap.Status != domain.StatusWaitingForInput:
		return nil
	}
	return snap
}

func (c *chat) save(ctx context.Context) {
	if c.opts.Store == nil || c.opts.SessionID == "" {
		return
	}
	if err := c.opts.Store.Save(ctx, c.opts.SessionID, c.interp.Snapshot()); err != nil {
		c.logger.Error("failed to save session", logging.Err(err))
	}
}

// tail prints the transcript of an interpreter in order, exactly once per message.
// The subscription only wakes it up; the transcript itself is the source of truth.
type tail struct {
	mu       sync.Mutex
	interp   *runtime.Interpreter
	printer  *tui.Printer
	headless bool
	printed  int
}

func newTail(interp *runtime.Interpreter, printer *tui.Printer, headless bool) *tail {
	return &tail{interp: interp, printer: printer, headless: headless}
}

// follow flushes on every appended message until the returned function is called.
func (t *tail) follow() func() {
	ch, cancel := t.interp.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range ch {
			t.flush()
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (t *tail) flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs := t.interp.Transcript()
	if t.printed > len(msgs) {
		t.printed = 0
	}
	for _, msg := range msgs[t.printed:] {
		t.print(msg)
	}
	t.printed = len(msgs)
}

// locked runs fn while no message is being printed.
func (t *tail) locked(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn()
}

func (t *tail) rewind() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.printed = 0
}

func (t *tail) print(msg domain.Message) {
	switch msg.Role {
	case domain.RoleUser:
		return
	case domain.RoleSystem:
		if t.headless {
			return
		}
	}
	t.printer.Print(msg)
}
