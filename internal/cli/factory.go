package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/flowrun"
	"github.com/aretw0/flowrun/internal/config"
	"github.com/aretw0/flowrun/internal/logging"
	"github.com/aretw0/flowrun/pkg/adapters/file"
	"github.com/aretw0/flowrun/pkg/adapters/memory"
	"github.com/aretw0/flowrun/pkg/adapters/redis"
	"github.com/aretw0/flowrun/pkg/adapters/simulated"
	"github.com/aretw0/flowrun/pkg/archive"
	"github.com/aretw0/flowrun/pkg/observability"
	"github.com/aretw0/flowrun/pkg/persistence/middleware"
	"github.com/aretw0/flowrun/pkg/ports"
	"github.com/aretw0/flowrun/pkg/session"
)

// NewLogger builds the process logger. Text goes to stderr so stdout stays free
// for the chat UI and the MCP stdio transport.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		return logging.NewJSON(os.Stderr, level)
	}
	return logging.New(level)
}

// NewEngine initializes an engine over path with the configured pacing and limits.
// Debug logging adds the lifecycle log hooks.
func NewEngine(cfg *config.Config, path string, logger *slog.Logger, hooks ...flowrun.Option) (*flowrun.Engine, error) {
	dispatcher := simulated.New(
		simulated.WithMessageDelay(cfg.Delay.Message),
		simulated.WithAPIDelay(cfg.Delay.API),
	)
	opts := []flowrun.Option{
		flowrun.WithLogger(logger),
		flowrun.WithDispatcher(dispatcher),
		flowrun.WithStepLimit(cfg.StepLimit),
	}
	if logging.ParseLevel(cfg.LogLevel) <= slog.LevelDebug {
		opts = append(opts, flowrun.WithLifecycleHooks(observability.LogHooks(logger)))
	}
	opts = append(opts, hooks...)

	engine, err := flowrun.New(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}

// Backend is the persistence side of a process: where snapshots live, how
// instances coordinate, and where finished transcripts go.
type Backend struct {
	Store    ports.SessionStore
	Locker   ports.DistributedLocker
	Archiver *archive.Archiver
	closers  []io.Closer
}

// Close releases connections held by the backend.
func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// ManagerOptions turns the backend into session.Manager options.
func (b *Backend) ManagerOptions() []session.Option {
	opts := []session.Option{session.WithStore(b.Store)}
	if b.Locker != nil {
		opts = append(opts, session.WithLocker(b.Locker))
	}
	if b.Archiver != nil {
		opts = append(opts, session.WithArchiver(b.Archiver))
	}
	return opts
}

// OpenBackend builds the configured store, wrapped by the PII and encryption
// middleware, plus the redis locker and the transcript archive when enabled.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	b := &Backend{}

	var base ports.SessionStore
	switch cfg.Store {
	case config.StoreFile:
		base = file.NewStore(cfg.StorePath)
	case config.StoreRedis:
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
		if err := rs.Client().Ping(ctx).Err(); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Redis.Addr, err)
		}
		base = rs
		b.Locker = redis.NewLocker(rs.Client(), rs.Prefix())
		b.closers = append(b.closers, rs)
	default:
		base = memory.NewStore()
	}

	mws, err := storeMiddleware(cfg)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.Store = middleware.Chain(base, mws...)

	if cfg.Archive.URL != "" {
		a, err := archive.Open(ctx, cfg.Archive.URL)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Archiver = a
		b.closers = append(b.closers, a)
	}

	logger.Debug("backend ready",
		slog.String("store", cfg.Store),
		slog.Bool("locker", b.Locker != nil),
		slog.Bool("archive", b.Archiver != nil))
	return b, nil
}

// storeMiddleware masks before it encrypts, so ciphertext never holds raw PII.
func storeMiddleware(cfg *config.Config) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.PII.Patterns) > 0 {
		if _, err := middleware.CompilePatterns(cfg.PII.Patterns); err != nil {
			return nil, err
		}
		mws = append(mws, middleware.NewPIIMiddleware(cfg.PII.Patterns))
	}

	if cfg.Encryption.Key != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.Encryption.Key)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption.key: %w", err)
		}
		enc := middleware.EncryptionConfig{ActiveKey: key}
		for _, fk := range cfg.Encryption.FallbackKeys {
			old, err := base64.StdEncoding.DecodeString(fk)
			if err != nil {
				return nil, fmt.Errorf("invalid encryption fallback key: %w", err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, old)
		}
		mw, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return mws, nil
}

// NewManager wires an engine to the backend.
func NewManager(cfg *config.Config, engine *flowrun.Engine, backend *Backend) *session.Manager {
	opts := backend.ManagerOptions()
	if cfg.MaxInput > 0 {
		opts = append(opts, session.WithMaxInputSize(cfg.MaxInput))
	}
	return engine.NewManager(opts...)
}
