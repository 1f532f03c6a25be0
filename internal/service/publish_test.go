package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/pokedex/internal/config"
	"github.com/timmy/pokedex/internal/domain"
)

// memoryIndex is a map-backed DocumentIndex.
type memoryIndex struct {
	mu        sync.Mutex
	docs      map[string]domain.NormalizedDocument
	upserts   int
	upsertErr error
	removeErr error
	delay     time.Duration
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{docs: map[string]domain.NormalizedDocument{}}
}

func (m *memoryIndex) Upsert(ctx context.Context, doc domain.NormalizedDocument) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.docs[doc.DocumentID] = doc
	return nil
}

func (m *memoryIndex) Remove(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	delete(m.docs, documentID)
	return nil
}

func (m *memoryIndex) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func testDoc(id string) domain.NormalizedDocument {
	return domain.NormalizedDocument{DocumentID: id, Title: "Ada Lovelace", Types: []string{"Professional"}}
}

func TestPublishSyncSurfacesFailure(t *testing.T) {
	idx := newMemoryIndex()
	idx.upsertErr = errors.New("HTTP 500")
	svc := NewPublishService(idx, config.PublishModeSync, time.Second)

	err := svc.Publish(context.Background(), testDoc("linkedin://a"))

	require.Error(t, err)
	assert.Equal(t, domain.KindPublishFailed, domain.KindOf(err))
	assert.EqualValues(t, 1, svc.Failures())
}

func TestPublishAsyncReturnsBeforeWriteAndCountsFailures(t *testing.T) {
	idx := newMemoryIndex()
	idx.delay = 30 * time.Millisecond
	idx.upsertErr = errors.New("HTTP 503")
	svc := NewPublishService(idx, config.PublishModeAsync, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, svc.Publish(ctx, testDoc("linkedin://a")))
	// the request context ending must not abort the detached write
	cancel()
	assert.EqualValues(t, 0, svc.Failures())

	require.NoError(t, svc.Wait(context.Background()))
	assert.EqualValues(t, 1, svc.Failures())
	assert.Equal(t, 1, idx.upserts)
}

func TestPublishOverwritesAndMirrors(t *testing.T) {
	primary := newMemoryIndex()
	mirror := newMemoryIndex()
	mirror.upsertErr = errors.New("qdrant down")
	svc := NewPublishService(primary, config.PublishModeSync, time.Second, mirror)

	doc := testDoc("linkedin://www.linkedin.com/in/ada")
	require.NoError(t, svc.Publish(context.Background(), doc))
	doc.Title = "Ada King"
	require.NoError(t, svc.Publish(context.Background(), doc))

	assert.Equal(t, 1, primary.len())
	assert.Equal(t, "Ada King", primary.docs[doc.DocumentID].Title)
	assert.Equal(t, 2, mirror.upserts, "mirror failures are not fatal")
	assert.EqualValues(t, 0, svc.Failures())
}

func TestRemove(t *testing.T) {
	idx := newMemoryIndex()
	svc := NewPublishService(idx, config.PublishModeAsync, time.Second)
	require.NoError(t, idx.Upsert(context.Background(), testDoc("linkedin://a")))

	require.NoError(t, svc.Remove(context.Background(), "linkedin://a"))
	assert.Equal(t, 0, idx.len())

	idx.removeErr = errors.New("HTTP 404")
	err := svc.Remove(context.Background(), "linkedin://a")
	assert.Equal(t, domain.KindDeleteFailed, domain.KindOf(err))
}

func TestWaitHonoursContext(t *testing.T) {
	idx := newMemoryIndex()
	idx.delay = time.Second
	svc := NewPublishService(idx, config.PublishModeAsync, 5*time.Second)
	require.NoError(t, svc.Publish(context.Background(), testDoc("linkedin://slow")))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Wait(ctx), context.DeadlineExceeded)
}
