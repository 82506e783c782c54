package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/flowrun/pkg/adapters/memory"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/aretw0/flowrun/pkg/persistence/middleware"
	"github.com/aretw0/flowrun/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, next ports.SessionStore, cfg middleware.EncryptionConfig) ports.SessionStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func secretSession(id string) *domain.Session {
	s := domain.NewSession(id)
	s.FlowID = "refund"
	s.CurrentNodeID = "ask"
	s.Status = domain.StatusWaitingForInput
	s.PendingInput = true
	s.Transcript = []domain.Message{domain.UserMessage("ask", "my-secret-sauce")}
	return s
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	original := secretSession("test-session")
	require.NoError(t, secure.Save(ctx, original.ID, original))

	stored, err := underlying.Load(ctx, original.ID)
	require.NoError(t, err)
	require.Len(t, stored.Transcript, 1)
	assert.NotContains(t, stored.Transcript[0].Content, "my-secret-sauce")
	assert.True(t, strings.HasPrefix(stored.Transcript[0].Content, "enc:v1:"))
	assert.Empty(t, stored.CurrentNodeID, "node position is hidden")
	assert.Equal(t, domain.StatusWaitingForInput, stored.Status, "status stays readable")

	loaded, err := secure.Load(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, "ask", loaded.CurrentNodeID)
	assert.True(t, loaded.PendingInput)
	assert.Equal(t, "my-secret-sauce", loaded.Transcript[0].Content)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	original := secretSession("rotation-session")
	require.NoError(t, encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey}).Save(ctx, original.ID, original))

	t.Run("fallback key decrypts", func(t *testing.T) {
		store := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})
		loaded, err := store.Load(ctx, original.ID)
		require.NoError(t, err)
		assert.Equal(t, "my-secret-sauce", loaded.Transcript[0].Content)
	})

	t.Run("unknown key fails", func(t *testing.T) {
		store := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey})
		_, err := store.Load(ctx, original.ID)
		assert.Error(t, err)
	})
}

func TestEncryptionMiddleware_RejectsPlainSessions(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, "plain", secretSession("plain")))

	_, err := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)}).Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrNotEncrypted)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, encrypted(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}))
}
