package session_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/flowrun/internal/runtime"
	"github.com/aretw0/flowrun/pkg/adapters/memory"
	"github.com/aretw0/flowrun/pkg/adapters/redis"
	"github.com/aretw0/flowrun/pkg/adapters/simulated"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/aretw0/flowrun/pkg/ports"
	"github.com/aretw0/flowrun/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refundFlow() *domain.Flow {
	return domain.NewFlow("refund", []domain.Node{
		domain.NewNode("start", domain.StartData{}),
		domain.NewNode("hi", domain.MessageData{Content: "Hi"}),
		domain.NewNode("ask", domain.ConditionData{
			Condition: domain.Condition{Operator: domain.OperatorContains, Value: "refund"},
		}),
		domain.NewNode("refund", domain.MessageData{Content: "Processing refund"}),
		domain.NewNode("end", domain.EndData{}),
	}, []domain.Edge{
		{Source: "start", Target: "hi"},
		{Source: "hi", Target: "ask"},
		{Source: "ask", Target: "refund", Label: domain.LabelYes},
		{Source: "ask", Target: "end", Label: domain.LabelNo},
		{Source: "refund", Target: "end"},
	})
}

func brokenFlow() *domain.Flow {
	return domain.NewFlow("broken", []domain.Node{domain.NewNode("end", domain.EndData{})}, nil)
}

func fastFactory() session.InterpreterFactory {
	return session.DefaultFactory(simulated.New(simulated.WithoutDelays()))
}

// recordingArchiver counts archived snapshots per session.
type recordingArchiver struct {
	mu    sync.Mutex
	count map[string]int
}

func (a *recordingArchiver) Archive(_ context.Context, s *domain.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == nil {
		a.count = make(map[string]int)
	}
	a.count[s.ID]++
	return nil
}

func (a *recordingArchiver) archived(id string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count[id]
}

func newManager(opts ...session.Option) (*session.Manager, *memory.Store) {
	store := memory.NewStore()
	base := []session.Option{
		session.WithStore(store),
		session.WithInterpreterFactory(fastFactory()),
	}
	return session.NewManager(memory.NewRegistry(refundFlow(), brokenFlow()), append(base, opts...)...), store
}

func TestManager_StartAllocatesID(t *testing.T) {
	mgr, store := newManager(session.WithIDGenerator(func() string { return "generated" }))
	ctx := context.Background()

	snap, err := mgr.Start(ctx, "", "refund")
	require.NoError(t, err)
	assert.Equal(t, "generated", snap.ID)
	assert.Equal(t, "refund", snap.FlowID)
	assert.Equal(t, domain.StatusWaitingForInput, snap.Status)

	stored, err := store.Load(ctx, "generated")
	require.NoError(t, err)
	assert.Equal(t, "ask", stored.CurrentNodeID)
}

func TestManager_StartUsesUUIDByDefault(t *testing.T) {
	mgr := session.NewManager(memory.NewRegistry(refundFlow()), session.WithInterpreterFactory(fastFactory()))
	snap, err := mgr.Start(context.Background(), "", "refund")
	require.NoError(t, err)
	assert.Len(t, snap.ID, 36)
}

func TestManager_StartErrors(t *testing.T) {
	mgr, _ := newManager()
	ctx := context.Background()

	_, err := mgr.Start(ctx, "s1", "missing")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)

	snap, err := mgr.Start(ctx, "s2", "broken")
	assert.ErrorIs(t, err, domain.ErrMalformedFlow)
	require.NotNil(t, snap)
	assert.Equal(t, domain.StatusIdle, snap.Status)
}

func TestManager_Conversation(t *testing.T) {
	archiver := &recordingArchiver{}
	mgr, store := newManager(session.WithArchiver(archiver))
	ctx := context.Background()

	_, err := mgr.Start(ctx, "s1", "refund")
	require.NoError(t, err)

	snap, accepted, err := mgr.SubmitInput(ctx, "s1", "I want a REFUND\x1b")
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, domain.StatusCompleted, snap.Status)
	assert.Equal(t, "I want a REFUND", snap.Transcript[2].Content, "input is sanitised")
	assert.Equal(t, 1, archiver.archived("s1"))

	_, accepted, err = mgr.SubmitInput(ctx, "s1", "again")
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, 1, archiver.archived("s1"), "a completed run is archived once")

	stored, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)

	_, err = mgr.Start(ctx, "s1", "refund")
	require.NoError(t, err)
	_, _, err = mgr.SubmitInput(ctx, "s1", "no thanks")
	require.NoError(t, err)
	assert.Equal(t, 2, archiver.archived("s1"), "each run is archived")
}

func TestManager_SubmitInputErrors(t *testing.T) {
	mgr, _ := newManager(session.WithMaxInputSize(8))
	ctx := context.Background()

	_, _, err := mgr.SubmitInput(ctx, "ghost", "hi")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = mgr.Start(ctx, "s1", "refund")
	require.NoError(t, err)
	_, _, err = mgr.SubmitInput(ctx, "s1", strings.Repeat("x", 9))
	assert.ErrorIs(t, err, session.ErrInputTooLarge)
}

func TestManager_Reset(t *testing.T) {
	mgr, store := newManager()
	ctx := context.Background()

	_, err := mgr.Start(ctx, "s1", "refund")
	require.NoError(t, err)

	snap, err := mgr.Reset(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, snap.Status)
	assert.Empty(t, snap.Transcript)

	stored, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, stored.Status)

	_, err = mgr.Reset(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_ResetInterruptsPacedRun(t *testing.T) {
	slow := session.DefaultFactory(simulated.New(simulated.WithMessageDelay(time.Second)))
	mgr, _ := newManager(session.WithInterpreterFactory(slow))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := mgr.Start(ctx, "s1", "refund")
		done <- err
	}()

	require.Eventually(t, func() bool {
		snap, err := mgr.Get(ctx, "s1")
		return err == nil && snap.Status == domain.StatusRunning
	}, time.Second, 5*time.Millisecond)

	begin := time.Now()
	snap, err := mgr.Reset(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, snap.Status)
	assert.Less(t, time.Since(begin), 500*time.Millisecond, "reset must not wait for the paced run")

	select {
	case err := <-done:
		assert.ErrorIs(t, err, domain.ErrSessionReset)
	case <-time.After(time.Second):
		t.Fatal("start did not return after reset")
	}
}

func TestManager_RestoresFromStore(t *testing.T) {
	store := memory.NewStore()
	loader := memory.NewRegistry(refundFlow())
	ctx := context.Background()

	first := session.NewManager(loader, session.WithStore(store), session.WithInterpreterFactory(fastFactory()))
	_, err := first.Start(ctx, "s1", "refund")
	require.NoError(t, err)

	// A second replica shares the store but not the memory.
	second := session.NewManager(loader, session.WithStore(store), session.WithInterpreterFactory(fastFactory()))
	snap, err := second.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaitingForInput, snap.Status)
	assert.Len(t, snap.Transcript, 2)

	snap, accepted, err := second.SubmitInput(ctx, "s1", "refund")
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, domain.StatusCompleted, snap.Status)
}

func TestManager_DeleteAndList(t *testing.T) {
	mgr, store := newManager()
	ctx := context.Background()

	for _, id := range []string{"b", "a"} {
		_, err := mgr.Start(ctx, id, "refund")
		require.NoError(t, err)
	}
	require.NoError(t, store.Save(ctx, "c", domain.NewSession("c")))

	ids, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	require.NoError(t, mgr.Delete(ctx, "a"))
	require.NoError(t, mgr.Delete(ctx, "c"), "stored-only sessions can be deleted")
	assert.ErrorIs(t, mgr.Delete(ctx, "ghost"), domain.ErrSessionNotFound)

	_, err = mgr.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	ids, err = mgr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}

func TestManager_ConcurrentSubmissions(t *testing.T) {
	mgr, _ := newManager()
	ctx := context.Background()
	_, err := mgr.Start(ctx, "s1", "refund")
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := mgr.SubmitInput(ctx, "s1", "refund")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted, "only the first submission is evaluated")
}

func TestManager_Watch(t *testing.T) {
	mgr, _ := newManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := mgr.Start(ctx, "s1", "refund")
	require.NoError(t, err)

	updates, err := mgr.Watch(ctx, "s1")
	require.NoError(t, err)

	first := <-updates
	assert.Equal(t, domain.StatusWaitingForInput, first.Status)

	_, _, err = mgr.SubmitInput(ctx, "s1", "refund")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case snap := <-updates:
			return snap.Status == domain.StatusCompleted
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, mgr.Delete(ctx, "s1"))
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-updates:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond, "deleting the session closes the stream")

	_, err = mgr.Watch(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	store := redis.NewFromClient(client)
	mgr := session.NewManager(memory.NewRegistry(refundFlow()),
		session.WithStore(store),
		session.WithLocker(redis.NewLocker(client, store.Prefix())),
		session.WithInterpreterFactory(fastFactory()),
	)
	ctx := context.Background()

	_, err := mgr.Start(ctx, "s1", "refund")
	require.NoError(t, err)
	assert.True(t, mr.Exists(redis.DefaultPrefix+"s1"))
	assert.False(t, mr.Exists(redis.DefaultPrefix+"lock:s1"), "lock is released after the operation")

	_, accepted, err := mgr.SubmitInput(ctx, "s1", "refund")
	require.NoError(t, err)
	assert.True(t, accepted)
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, string, time.Duration) (ports.UnlockFunc, error) {
	return nil, errors.New("unavailable")
}

func TestManager_LockerFailure(t *testing.T) {
	mgr, _ := newManager(session.WithLocker(failingLocker{}))

	_, err := mgr.Start(context.Background(), "s1", "refund")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to acquire distributed lock")
}

func TestDefaultFactory_AppliesOptions(t *testing.T) {
	var seen []string
	factory := session.DefaultFactory(simulated.New(simulated.WithoutDelays()),
		runtime.WithLifecycleHooks(domain.LifecycleHooks{
			OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
				seen = append(seen, fmt.Sprintf("%s:%s", e.SessionID, e.NodeID))
			},
		}),
	)
	interp := factory("s9")
	require.NoError(t, interp.Start(context.Background(), refundFlow()))
	assert.Equal(t, []string{"s9:start", "s9:hi", "s9:ask"}, seen)
}
