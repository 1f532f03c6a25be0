package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/pokedex/internal/config"
	"github.com/timmy/pokedex/internal/domain"
	"github.com/timmy/pokedex/internal/logger"
)

// DocumentIndex is a document store keyed by document id. Upsert fully replaces.
type DocumentIndex interface {
	Upsert(ctx context.Context, doc domain.NormalizedDocument) error
	Remove(ctx context.Context, documentID string) error
}

// PublishService writes documents to the primary index and best-effort mirrors.
type PublishService struct {
	primary DocumentIndex
	mirrors []DocumentIndex
	mode    string
	timeout time.Duration

	wg       sync.WaitGroup
	failures atomic.Int64
}

// NewPublishService creates a publisher.
// Parameters:
//   - primary: index whose failures decide the publish outcome.
//   - mode: config.PublishModeAsync or config.PublishModeSync.
//   - timeout: bound on a detached async publish.
//   - mirrors: secondary indexes; their failures are only logged.
// Returns:
//   - *PublishService: initialized service.
func NewPublishService(primary DocumentIndex, mode string, timeout time.Duration, mirrors ...DocumentIndex) *PublishService {
	if mode == "" {
		mode = config.PublishModeAsync
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PublishService{
		primary: primary,
		mirrors: mirrors,
		mode:    mode,
		timeout: timeout,
	}
}

// Async reports whether Publish returns before the write completes.
func (s *PublishService) Async() bool {
	return s.mode == config.PublishModeAsync
}

// Publish upserts doc. In async mode it returns nil immediately and the write
// continues on a detached context; failures are logged and counted.
func (s *PublishService) Publish(ctx context.Context, doc domain.NormalizedDocument) error {
	ctx = logger.SetDocumentID(ctx, doc.DocumentID)

	if !s.Async() {
		return s.publish(ctx, doc)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		if err := s.publish(bg, doc); err != nil {
			logger.CtxError(bg, "Background publish failed: %v", err)
		}
	}()
	return nil
}

// PublishNow upserts doc synchronously regardless of mode.
func (s *PublishService) PublishNow(ctx context.Context, doc domain.NormalizedDocument) error {
	return s.publish(logger.SetDocumentID(ctx, doc.DocumentID), doc)
}

func (s *PublishService) publish(ctx context.Context, doc domain.NormalizedDocument) error {
	start := time.Now()
	if err := s.primary.Upsert(ctx, doc); err != nil {
		s.failures.Add(1)
		return asKind(err, domain.KindPublishFailed, "publish failed")
	}

	for _, m := range s.mirrors {
		if err := m.Upsert(ctx, doc); err != nil {
			logger.CtxWarn(ctx, "Mirror upsert failed: %v", err)
		}
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldDocumentID: doc.DocumentID,
	}).Info(ctx, "Document published")
	return nil
}

// Remove deletes a document from the primary index and every mirror. It is always synchronous.
func (s *PublishService) Remove(ctx context.Context, documentID string) error {
	ctx = logger.SetDocumentID(ctx, documentID)

	if err := s.primary.Remove(ctx, documentID); err != nil {
		return asKind(err, domain.KindDeleteFailed, "delete failed")
	}
	for _, m := range s.mirrors {
		if err := m.Remove(ctx, documentID); err != nil {
			logger.CtxWarn(ctx, "Mirror delete failed: %v", err)
		}
	}
	logger.CtxInfo(ctx, "Document removed")
	return nil
}

// Wait blocks until in-flight async publishes finish or ctx is done.
func (s *PublishService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failures returns the number of failed primary publishes since start.
func (s *PublishService) Failures() int64 {
	return s.failures.Load()
}
