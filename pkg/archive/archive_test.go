package archive_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/flowrun/pkg/archive"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
)

func completed(id string) *domain.Session {
	s := domain.NewSession(id)
	s.FlowID = "refund"
	s.Status = domain.StatusCompleted
	s.Transcript = []domain.Message{
		domain.SystemMessage("start", "→ Start"),
		domain.SystemMessage("end", "🏁 Flow completed"),
	}
	return s
}

func TestArchiver_RoundTrip(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	a, err := archive.New(bucket, archive.DefaultPrefix)
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	require.NoError(t, a.Archive(ctx, completed("s1")))

	exists, err := bucket.Exists(ctx, "transcripts/s1.json")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := a.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Len(t, got.Transcript, 2)
}

func TestArchiver_Errors(t *testing.T) {
	_, err := archive.New(nil, "x")
	assert.ErrorIs(t, err, archive.ErrBucketRequired)

	a, err := archive.New(memblob.OpenBucket(nil), "")
	require.NoError(t, err)
	assert.ErrorIs(t, a.Archive(context.Background(), nil), archive.ErrSessionRequired)

	_, err = a.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, archive.ErrNotArchived)
}

func TestOpen_FileURL(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a, err := archive.Open(ctx, "file://"+filepath.ToSlash(dir))
	require.NoError(t, err)
	require.NoError(t, a.Archive(ctx, completed("s2")))
	require.NoError(t, a.Close())

	_, err = os.Stat(filepath.Join(dir, "transcripts", "s2.json"))
	assert.NoError(t, err)
}
