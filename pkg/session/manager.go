package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/flowrun/internal/logging"
	"github.com/aretw0/flowrun/internal/runtime"
	"github.com/aretw0/flowrun/pkg/adapters/simulated"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/aretw0/flowrun/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a distributed lock outlives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// InterpreterFactory builds the interpreter of a new session. The manager appends
// its own options (hooks) to whatever the factory configures.
type InterpreterFactory func(sessionID string, opts ...runtime.Option) *runtime.Interpreter

// DefaultFactory returns a factory driving dispatcher with the given base options.
func DefaultFactory(dispatcher ports.ActionDispatcher, base ...runtime.Option) InterpreterFactory {
	return func(sessionID string, extra ...runtime.Option) *runtime.Interpreter {
		opts := make([]runtime.Option, 0, len(base)+len(extra)+1)
		opts = append(opts, runtime.WithSessionID(sessionID))
		opts = append(opts, base...)
		opts = append(opts, extra...)
		return runtime.NewInterpreter(dispatcher, opts...)
	}
}

// Archiver receives every completed session once per run.
type Archiver interface {
	Archive(ctx context.Context, session *domain.Session) error
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// entry is a live session.
type entry struct {
	interp *runtime.Interpreter

	// guarded by the session lock
	archivedGen uint64
	archived    bool
}

// Manager owns the interpreters of all live sessions and serialises operations per session.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	loader   ports.FlowLoader
	factory  InterpreterFactory
	store    ports.SessionStore
	locker   ports.DistributedLocker
	lockTTL  time.Duration
	archiver Archiver
	logger   *slog.Logger
	maxInput int
	newID    func() string

	mu       sync.Mutex
	locks    map[string]*lockEntry
	sessions map[string]*entry

	watchers *notifier
}

var _ ports.SessionService = (*Manager)(nil)

// Option configures the Manager.
type Option func(*Manager)

// WithStore persists a snapshot after every operation.
func WithStore(store ports.SessionStore) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithArchiver stores completed sessions.
func WithArchiver(a Archiver) Option {
	return func(m *Manager) {
		m.archiver = a
	}
}

// WithInterpreterFactory replaces the default simulated interpreter.
func WithInterpreterFactory(f InterpreterFactory) Option {
	return func(m *Manager) {
		if f != nil {
			m.factory = f
		}
	}
}

// WithMaxInputSize overrides the sanitizer size limit.
func WithMaxInputSize(n int) Option {
	return func(m *Manager) {
		m.maxInput = n
	}
}

// WithIDGenerator replaces the uuid generator used for empty session ids.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a session manager resolving flows through loader.
func NewManager(loader ports.FlowLoader, opts ...Option) *Manager {
	m := &Manager{
		loader:   loader,
		factory:  DefaultFactory(simulated.New()),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
		newID:    uuid.NewString,
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]*entry),
		watchers: newNotifier(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Loader returns the flow loader.
func (m *Manager) Loader() ports.FlowLoader {
	return m.loader
}

// Store returns the underlying session store, nil when sessions are memory-only.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// Start runs flowID in sessionID from its start node. An empty sessionID allocates one.
// A run already in flight for the session is cancelled first.
func (m *Manager) Start(ctx context.Context, sessionID, flowID string) (*domain.Session, error) {
	if sessionID == "" {
		sessionID = m.newID()
	}
	flow, err := m.loader.LoadFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}

	ent := m.entry(sessionID)
	// Preempt outside the lock so a paced run does not hold it until it suspends.
	ent.interp.Reset()

	var snap *domain.Session
	err = m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		runErr := ent.interp.Start(ctx, flow)
		if errors.Is(runErr, domain.ErrSessionReset) {
			return runErr
		}
		snap = ent.interp.Snapshot()
		if err := m.persist(ctx, ent, snap); err != nil {
			return err
		}
		return runErr
	})
	m.logger.Debug("session started",
		logging.SessionID(sessionID), logging.FlowID(flowID), logging.Err(err))
	if snap == nil {
		snap = ent.interp.Snapshot()
	}
	return snap, err
}

// SubmitInput sanitises text and forwards it to the session.
func (m *Manager) SubmitInput(ctx context.Context, sessionID, text string) (*domain.Session, bool, error) {
	clean, err := SanitizeInput(text, m.maxInput)
	if err != nil {
		return nil, false, err
	}
	ent, err := m.resolve(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}

	var (
		snap     *domain.Session
		accepted bool
	)
	err = m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var runErr error
		accepted, runErr = ent.interp.SubmitInput(ctx, clean)
		if errors.Is(runErr, domain.ErrSessionReset) {
			return runErr
		}
		snap = ent.interp.Snapshot()
		if accepted {
			if err := m.persist(ctx, ent, snap); err != nil {
				return err
			}
		}
		return runErr
	})
	if snap == nil {
		snap = ent.interp.Snapshot()
	}
	return snap, accepted, err
}

// Reset returns the session to idle with an empty transcript.
func (m *Manager) Reset(ctx context.Context, sessionID string) (*domain.Session, error) {
	ent, err := m.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ent.interp.Reset()

	var snap *domain.Session
	err = m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		snap = ent.interp.Snapshot()
		return m.persist(ctx, ent, snap)
	})
	return snap, err
}

// Get returns the current snapshot, restoring the session from the store if needed.
func (m *Manager) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	ent, err := m.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ent.interp.Snapshot(), nil
}

// Delete cancels the session and removes it from memory and the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	ent, live := m.sessions[sessionID]
	m.mu.Unlock()
	if live {
		ent.interp.Reset()
	}

	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if !live {
			if m.store == nil {
				return domain.ErrSessionNotFound
			}
			if _, err := m.store.Load(ctx, sessionID); err != nil {
				return err
			}
		}

		m.mu.Lock()
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		m.watchers.close(sessionID)

		if m.store != nil {
			return m.store.Delete(ctx, sessionID)
		}
		return nil
	})
}

// List returns live and stored session ids, sorted.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	m.mu.Lock()
	for id := range m.sessions {
		seen[id] = struct{}{}
	}
	m.mu.Unlock()

	if m.store != nil {
		stored, err := m.store.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range stored {
			seen[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// Released with a fresh context: the caller's may already be cancelled.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					logging.SessionID(sessionID),
					logging.Err(err),
				)
			}
		}()
	}

	return fn(ctx)
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// entry returns the live session, creating a fresh interpreter when there is none.
func (m *Manager) entry(sessionID string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ent, ok := m.sessions[sessionID]; ok {
		return ent
	}
	ent := &entry{interp: m.newInterpreter(sessionID)}
	m.sessions[sessionID] = ent
	return ent
}

// resolve returns the live session or restores it from the store.
func (m *Manager) resolve(ctx context.Context, sessionID string) (*entry, error) {
	m.mu.Lock()
	ent, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if ok {
		return ent, nil
	}
	if m.store == nil {
		return nil, domain.ErrSessionNotFound
	}

	snap, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	restored := &entry{interp: m.newInterpreter(sessionID)}
	if snap.FlowID != "" {
		flow, err := m.loader.LoadFlow(ctx, snap.FlowID)
		if err != nil {
			return nil, fmt.Errorf("restore session %s: %w", sessionID, err)
		}
		if err := restored.interp.Restore(flow, snap); err != nil {
			return nil, err
		}
	}
	if snap.Terminal() {
		restored.archived, restored.archivedGen = true, snap.Generation
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ent, ok := m.sessions[sessionID]; ok {
		return ent, nil
	}
	m.sessions[sessionID] = restored
	m.logger.Debug("session restored", logging.SessionID(sessionID), logging.Status(snap.Status))
	return restored, nil
}

func (m *Manager) newInterpreter(sessionID string) *runtime.Interpreter {
	return m.factory(sessionID, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnStatusChange: func(context.Context, *domain.StatusEvent) {
			m.watchers.signal(sessionID)
		},
	}))
}

// persist saves snap and archives it once per completed run. Runs interrupted by
// the caller's context are left out of the store since they cannot be restored.
func (m *Manager) persist(ctx context.Context, ent *entry, snap *domain.Session) error {
	if snap.Status == domain.StatusRunning {
		return nil
	}
	if m.store != nil {
		if err := m.store.Save(ctx, snap.ID, snap); err != nil {
			return fmt.Errorf("save session %s: %w", snap.ID, err)
		}
	}
	if m.archiver != nil && snap.Terminal() && !(ent.archived && ent.archivedGen == snap.Generation) {
		if err := m.archiver.Archive(ctx, snap); err != nil {
			m.logger.Warn("failed to archive session", logging.SessionID(snap.ID), logging.Err(err))
			return nil
		}
		ent.archived, ent.archivedGen = true, snap.Generation
	}
	return nil
}
