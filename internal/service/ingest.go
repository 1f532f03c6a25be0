package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/timmy/pokedex/internal/domain"
	"github.com/timmy/pokedex/internal/logger"
	"github.com/timmy/pokedex/internal/source"
)

// IngestService runs the profile submission pipeline and the catalog push.
type IngestService struct {
	scraper   *ScrapeService
	publisher *PublishService
	workers   int
	batchSize int
	rate      float64
}

// IngestConfig holds configuration for the ingest service
type IngestConfig struct {
	Workers     int
	BatchSize   int
	CatalogRate float64 // documents per second, 0 for unpaced
}

// NewIngestService creates a new ingest service.
// Parameters:
//   - scraper: scrape state machine; may be nil for catalog-only use.
//   - publisher: index publisher.
//   - cfg: catalog worker pool settings.
// Returns:
//   - *IngestService: initialized service.
func NewIngestService(scraper *ScrapeService, publisher *PublishService, cfg *IngestConfig) *IngestService {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	return &IngestService{
		scraper:   scraper,
		publisher: publisher,
		workers:   workers,
		batchSize: batchSize,
		rate:      cfg.CatalogRate,
	}
}

// ProfileResult is the outcome of a successful submission.
type ProfileResult struct {
	Name     string                    `json:"name"`
	Message  string                    `json:"message"`
	Document domain.NormalizedDocument `json:"profile"`
	Job      domain.ScrapeJob          `json:"job"`
}

// SubmitProfile validates, scrapes, normalizes and publishes one profile URL.
// events, when non-nil, receives every job transition and is always closed before return.
func (s *IngestService) SubmitProfile(ctx context.Context, profileURL string, events chan<- domain.JobEvent) (*ProfileResult, error) {
	profileURL = strings.TrimSpace(profileURL)
	if err := ValidateProfileURL(profileURL); err != nil {
		if events != nil {
			close(events)
		}
		return nil, err
	}
	if s.scraper == nil {
		if events != nil {
			close(events)
		}
		return nil, domain.NewError(domain.KindInternal, "profile scraping is not configured")
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent: "ingest",
		logger.FieldSourceURL: profileURL,
	})

	outcome := s.scraper.RunWithEvents(ctx, profileURL, events)
	if outcome.State() != domain.JobStatusReady {
		return nil, outcome.Err
	}

	doc := NormalizeProfile(outcome.Payload, profileURL)
	if err := s.publisher.Publish(ctx, doc); err != nil {
		logger.CtxError(ctx, "Publish failed: %v", err)
		return nil, err
	}

	logger.CtxInfo(ctx, "Profile %s ingested as %s", doc.Title, doc.DocumentID)
	return &ProfileResult{
		Name:     doc.Title,
		Message:  fmt.Sprintf("%s has been added to the Pokedex!", doc.Title),
		Document: doc,
		Job:      outcome.Job,
	}, nil
}

// RemoveDocument deletes a document from the index.
func (s *IngestService) RemoveDocument(ctx context.Context, documentID string) error {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return domain.NewError(domain.KindValidation, "documentId is required")
	}
	return s.publisher.Remove(ctx, documentID)
}

// IngestStats holds statistics for a catalog push
type IngestStats struct {
	TotalItems     int64
	ProcessedItems int64
	FailedItems    int64
	StartTime      time.Time
	EndTime        time.Time
}

type pushResult struct {
	name string
	err  error
}

// PushCatalog publishes up to limit entries from src through a paced worker pool.
// limit <= 0 pushes everything.
func (s *IngestService) PushCatalog(ctx context.Context, src source.Source, limit int) (*IngestStats, error) {
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent: "catalog",
		logger.FieldSource:    src.GetSourceID(),
	})
	stats := &IngestStats{StartTime: time.Now()}

	logger.CtxInfo(ctx, "Starting catalog push from %s (limit=%d, workers=%d)", src.GetDisplayName(), limit, s.workers)

	var limiter *rate.Limiter
	if s.rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.rate), 1)
	}

	itemsChan := make(chan source.CatalogEntry, s.workers*2)
	resultsChan := make(chan pushResult, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.pushWorker(ctx, limiter, itemsChan, resultsChan)
		}()
	}

	done := make(chan struct{})
	go func() {
		for result := range resultsChan {
			atomic.AddInt64(&stats.ProcessedItems, 1)
			if result.err != nil {
				atomic.AddInt64(&stats.FailedItems, 1)
				logger.CtxError(ctx, "Failed to push %s: %v", result.name, result.err)
			}
			if n := atomic.LoadInt64(&stats.ProcessedItems); n%50 == 0 {
				logger.CtxInfo(ctx, "%d entries pushed", n)
			}
		}
		close(done)
	}()

	var fetchErr error
	cursor := ""
	totalFetched := 0
fetch:
	for ctx.Err() == nil {
		batchLimit := s.batchSize
		if limit > 0 {
			remaining := limit - totalFetched
			if remaining <= 0 {
				break
			}
			if batchLimit > remaining {
				batchLimit = remaining
			}
		}

		items, nextCursor, err := src.FetchBatch(ctx, cursor, batchLimit)
		if err != nil {
			fetchErr = fmt.Errorf("fetch batch at cursor %q: %w", cursor, err)
			break
		}
		if len(items) == 0 {
			break
		}

		atomic.AddInt64(&stats.TotalItems, int64(len(items)))
		totalFetched += len(items)

		for _, item := range items {
			select {
			case itemsChan <- item:
			case <-ctx.Done():
				break fetch
			}
		}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	close(itemsChan)
	wg.Wait()
	close(resultsChan)
	<-done

	stats.EndTime = time.Now()
	logger.With(logger.Fields{
		"total":                stats.TotalItems,
		"processed":            stats.ProcessedItems,
		"failed":               stats.FailedItems,
		logger.FieldDurationMs: stats.EndTime.Sub(stats.StartTime).Milliseconds(),
	}).Info(ctx, "Catalog push completed")

	if fetchErr != nil {
		return stats, fetchErr
	}
	return stats, ctx.Err()
}

func (s *IngestService) pushWorker(ctx context.Context, limiter *rate.Limiter, items <-chan source.CatalogEntry, results chan<- pushResult) {
	for item := range items {
		result := pushResult{name: item.Name}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				result.err = err
				results <- result
				continue
			}
		}
		result.err = s.publisher.PublishNow(ctx, NormalizeCatalogEntry(item))
		results <- result
	}
}
