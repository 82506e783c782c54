// Package archive writes completed conversations to a gocloud blob bucket.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/flowrun/pkg/domain"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// DefaultPrefix is the key prefix for archived transcripts.
const DefaultPrefix = "transcripts"

var (
	ErrBucketRequired  = errors.New("bucket is required")
	ErrSessionRequired = errors.New("session is required")
	ErrNotArchived     = errors.New("session not archived")
)

// Archiver stores session snapshots as JSON under <prefix>/<session>.json.
type Archiver struct {
	bucket *blob.Bucket
	prefix string
}

// Open opens the bucket at url (file:///dir, mem://, or any driver linked into the binary).
func Open(ctx context.Context, url string) (*Archiver, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open archive bucket: %w", err)
	}
	return New(bucket, DefaultPrefix)
}

// New wraps an already opened bucket.
func New(bucket *blob.Bucket, prefix string) (*Archiver, error) {
	if bucket == nil {
		return nil, ErrBucketRequired
	}
	return &Archiver{bucket: bucket, prefix: prefix}, nil
}

// Archive writes the snapshot, replacing any previous copy.
func (a *Archiver) Archive(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return ErrSessionRequired
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	opts := &blob.WriterOptions{ContentType: "application/json"}
	return a.bucket.WriteAll(ctx, a.key(session.ID), data, opts)
}

// Get reads an archived snapshot.
func (a *Archiver) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	data, err := a.bucket.ReadAll(ctx, a.key(sessionID))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotArchived, sessionID)
		}
		return nil, err
	}
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Close closes the bucket.
func (a *Archiver) Close() error {
	return a.bucket.Close()
}

func (a *Archiver) key(sessionID string) string {
	if a.prefix == "" {
		return sessionID + ".json"
	}
	return strings.TrimSuffix(a.prefix, "/") + "/" + sessionID + ".json"
}
