package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// NewRenderer returns a function that renders markdown using glamour.
// An empty style detects light/dark backgrounds; "notty" renders plain text.
func NewRenderer(style string, width int) (func(string) (string, error), error) {
	opts := []glamour.TermRendererOption{glamour.WithEmoji()}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}

// Printer writes transcript messages to a terminal, colouring them by role.
type Printer struct {
	w      io.Writer
	out    *termenv.Output
	render func(string) (string, error)
}

// NewPrinter creates a printer on w. render may be nil to print bot messages verbatim.
func NewPrinter(w io.Writer, render func(string) (string, error), opts ...termenv.OutputOption) *Printer {
	return &Printer{
		w:      w,
		out:    termenv.NewOutput(w, opts...),
		render: render,
	}
}

// Print writes one message.
func (p *Printer) Print(msg domain.Message) {
	switch msg.Role {
	case domain.RoleBot:
		text := msg.Content
		if p.render != nil {
			if rendered, err := p.render(text); err == nil {
				text = strings.Trim(rendered, "\n")
			}
		}
		fmt.Fprintln(p.w, p.out.String("bot ›").Foreground(p.out.Color("#a78bfa")).Bold(), strings.TrimSpace(text))
	case domain.RoleUser:
		fmt.Fprintln(p.w, p.out.String("you ›").Foreground(p.out.Color("#38bdf8")).Bold(), msg.Content)
	default:
		fmt.Fprintln(p.w, p.out.String(msg.Content).Faint().Italic())
	}
}

// Prompt writes the input prompt shown while a session waits for input.
func (p *Printer) Prompt() {
	fmt.Fprint(p.w, p.out.String("you › ").Foreground(p.out.Color("#38bdf8")).Bold())
}

// Status writes a line describing a session status change.
func (p *Printer) Status(s domain.Status) {
	fmt.Fprintln(p.w, p.out.String(fmt.Sprintf("[%s]", s)).Faint())
}
