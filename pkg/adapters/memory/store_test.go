package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/flowrun/pkg/adapters/memory"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/aretw0/flowrun/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSessionStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	session := domain.NewSession("s")
	session.Transcript = append(session.Transcript, domain.BotMessage("hi", "Hi"))
	require.NoError(t, store.Save(ctx, "s", session))

	session.Transcript[0].Content = "mutated after save"

	loaded, err := store.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "Hi", loaded.Transcript[0].Content)
}
