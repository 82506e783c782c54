package flowrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/flowrun/internal/logging"
	"github.com/aretw0/flowrun/internal/runtime"
	"github.com/aretw0/flowrun/pkg/adapters/file"
	loamAdapter "github.com/aretw0/flowrun/pkg/adapters/loam"
	"github.com/aretw0/flowrun/pkg/adapters/simulated"
	"github.com/aretw0/flowrun/pkg/condition"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/aretw0/flowrun/pkg/ports"
	"github.com/aretw0/flowrun/pkg/session"
)

// Version is the release of the engine reported by the CLI and the servers.
const Version = "0.4.0"

// Engine is the high-level entry point for the flowrun library.
// It binds a flow source to the dispatcher and runtime settings shared by every
// session it creates.
type Engine struct {
	loader     ports.FlowLoader
	dispatcher ports.ActionDispatcher
	evaluator  condition.Func
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	stepLimit  int
	Name       string
}

// Interpreter executes one session of a flow. Engine.NewInterpreter builds them.
type Interpreter = runtime.Interpreter

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom FlowLoader, bypassing path-based discovery.
func WithLoader(l ports.FlowLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithDispatcher replaces the simulated dispatcher.
func WithDispatcher(d ports.ActionDispatcher) Option {
	return func(e *Engine) {
		e.dispatcher = d
	}
}

// WithConditionEvaluator sets a custom evaluator for condition nodes.
func WithConditionEvaluator(fn condition.Func) Option {
	return func(e *Engine) {
		e.evaluator = fn
	}
}

// WithLifecycleHooks registers observability hooks. Repeated options accumulate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStepLimit caps how many nodes a run may process between two suspensions.
func WithStepLimit(n int) Option {
	return func(e *Engine) {
		e.stepLimit = n
	}
}

// New initializes an Engine reading flows from path.
// A YAML or JSON file, or a directory of them, is served by the file loader.
// A directory holding Markdown documents is opened as a Loam repository.
// If WithLoader is provided, path may be empty.
func New(path string, opts ...Option) (*Engine, error) {
	eng := &Engine{stepLimit: runtime.DefaultStepLimit}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.loader == nil {
		if path == "" {
			return nil, fmt.Errorf("path is required when no custom loader is provided")
		}
		loader, err := Discover(path)
		if err != nil {
			return nil, err
		}
		eng.loader = loader
	}
	if path != "" {
		eng.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if eng.dispatcher == nil {
		eng.dispatcher = simulated.New()
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With(slog.String("source", eng.Name))
	}
	return eng, nil
}

// Discover picks the loader for path.
func Discover(path string) (ports.FlowLoader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	if !info.IsDir() {
		if !file.IsFlowFile(path) {
			return nil, fmt.Errorf("unsupported flow file %s: expected one of %v", path, file.Extensions)
		}
		return file.NewLoader(path), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".md") {
			return loamAdapter.Open(path)
		}
	}
	return file.NewLoader(path), nil
}

// Loader returns the flow source.
func (e *Engine) Loader() ports.FlowLoader {
	return e.loader
}

// Flows lists the flows the engine can run.
func (e *Engine) Flows(ctx context.Context) ([]string, error) {
	return e.loader.ListFlows(ctx)
}

// Flow loads one flow definition.
func (e *Engine) Flow(ctx context.Context, id string) (*domain.Flow, error) {
	return e.loader.LoadFlow(ctx, id)
}

// DefaultFlow resolves the flow to run when the caller did not name one.
// It succeeds only when the source holds exactly one flow.
func (e *Engine) DefaultFlow(ctx context.Context) (string, error) {
	ids, err := e.loader.ListFlows(ctx)
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: source is empty", domain.ErrFlowNotFound)
	case 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("source holds %d flows, pick one of %v", len(ids), ids)
}

// NewInterpreter creates an idle interpreter configured like every session of the engine.
func (e *Engine) NewInterpreter(sessionID string, opts ...runtime.Option) *Interpreter {
	base := []runtime.Option{
		runtime.WithSessionID(sessionID),
		runtime.WithLogger(e.logger),
		runtime.WithStepLimit(e.stepLimit),
		runtime.WithLifecycleHooks(e.hooks),
	}
	if e.evaluator != nil {
		base = append(base, runtime.WithConditionEvaluator(e.evaluator))
	}
	return runtime.NewInterpreter(e.dispatcher, append(base, opts...)...)
}

// NewManager creates a session manager running the engine's flows.
// Options given here override the engine defaults.
func (e *Engine) NewManager(opts ...session.Option) *session.Manager {
	base := []session.Option{
		session.WithInterpreterFactory(e.NewInterpreter),
		session.WithLogger(e.logger),
	}
	return session.NewManager(e.loader, append(base, opts...)...)
}
