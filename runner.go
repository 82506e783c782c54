package flowrun

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/flowrun/pkg/domain"
)

// Runner drives one session from line-based IO.
// This allows for easy testing and integration with different frontends (CLI, pipes, tests).
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
}

// ContentRenderer transforms bot content before it is printed.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner reading answers from in and printing to out.
func NewRunner(in io.Reader, out io.Writer) *Runner {
	return &Runner{Input: in, Output: out}
}

// Run starts flowID in a fresh session and answers every condition node with a
// line read from Input. It returns the last snapshot when the flow completes,
// when Input is exhausted or when the user types exit.
func (r *Runner) Run(ctx context.Context, engine *Engine, flowID string) (*domain.Session, error) {
	if r.Input == nil {
		return nil, fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return nil, fmt.Errorf("output writer must be set (use os.Stdout)")
	}

	flow, err := engine.Flow(ctx, flowID)
	if err != nil {
		return nil, err
	}

	interp := engine.NewInterpreter(flowID)
	lines := bufio.NewReader(r.Input)
	printed := 0

	flush := func() {
		msgs := interp.Transcript()
		if printed > len(msgs) {
			printed = 0
		}
		for _, msg := range msgs[printed:] {
			r.print(msg)
		}
		printed = len(msgs)
	}

	if err := interp.Start(ctx, flow); err != nil {
		return interp.Snapshot(), err
	}
	flush()

	for interp.Status() == domain.StatusWaitingForInput {
		if !r.Headless {
			fmt.Fprint(r.Output, "> ")
		}
		text, err := lines.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return interp.Snapshot(), fmt.Errorf("input error: %w", err)
		}
		eof := errors.Is(err, io.EOF)
		text = strings.TrimSpace(text)
		if eof && text == "" {
			break
		}
		if text == "exit" || text == "quit" {
			fmt.Fprintln(r.Output, "Bye!")
			break
		}

		if _, err := interp.SubmitInput(ctx, text); err != nil {
			return interp.Snapshot(), err
		}
		flush()
		if eof {
			break
		}
	}
	return interp.Snapshot(), nil
}

func (r *Runner) print(msg domain.Message) {
	switch msg.Role {
	case domain.RoleUser:
		return
	case domain.RoleSystem:
		if !r.Headless {
			fmt.Fprintf(r.Output, "· %s\n", msg.Content)
		}
	default:
		out := msg.Content
		if r.Renderer != nil {
			if rendered, err := r.Renderer(out); err == nil {
				out = rendered
			}
		}
		fmt.Fprintln(r.Output, strings.TrimSpace(out))
	}
}
