// Package app assembles the index backends and services shared by the
// API server and the ingest CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/timmy/pokedex/internal/config"
	"github.com/timmy/pokedex/internal/logger"
	"github.com/timmy/pokedex/internal/repository"
	"github.com/timmy/pokedex/internal/service"
	"github.com/timmy/pokedex/internal/source"
	"github.com/timmy/pokedex/internal/source/brightdata"
	"github.com/timmy/pokedex/internal/source/catalog"
)

// Components holds the wired services.
type Components struct {
	Config     *config.Config
	Searcher   service.Searcher
	Passages   service.PassageRetriever
	Publisher  *service.PublishService
	Aggregator *service.ContextAggregator
	Streamer   *service.AnswerStreamer
	Ingest     *service.IngestService
	Catalog    source.Source

	closers []io.Closer
}

// Build wires every component selected by cfg. Profile scraping is only
// available when a dataset token is configured.
// Parameters:
//   - ctx: context for backend initialization (collection setup).
//   - cfg: validated configuration.
// Returns:
//   - *Components: wired components; call Close when done.
//   - error: non-nil if a backend cannot be initialized.
func Build(ctx context.Context, cfg *config.Config) (*Components, error) {
	c := &Components{Config: cfg}

	primary, err := c.buildIndex(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	var mirrors []service.DocumentIndex
	if cfg.Passages.Backend == config.PassagesBackendQdrant {
		vectors, err := c.buildVectorPassages(ctx)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Passages = vectors
		mirrors = append(mirrors, vectors)
	}

	c.Publisher = service.NewPublishService(primary, cfg.Ingest.PublishMode, cfg.Ingest.PublishTimeout, mirrors...)

	c.Aggregator = service.NewContextAggregator(c.Searcher, c.Passages, service.ContextConfig{
		MaxHits:         cfg.Chat.MaxHits,
		MaxPassages:     cfg.Chat.MaxPassages,
		HistoryTurns:    cfg.Chat.HistoryTurns,
		GatherTimeout:   cfg.Chat.GatherTimeout,
		MaxContextChars: cfg.Chat.MaxContextChars,
	})
	c.Streamer = service.NewAnswerStreamer(&cfg.LLM, cfg.Chat.MaxContextChars)

	var scraper *service.ScrapeService
	if cfg.Dataset.APIToken != "" {
		client := brightdata.NewClient(&brightdata.Config{
			APIToken:          cfg.Dataset.APIToken,
			BaseURL:           cfg.Dataset.BaseURL,
			DatasetID:         cfg.Dataset.DatasetID,
			Timeout:           cfg.Dataset.Timeout,
			RequestsPerSecond: cfg.Dataset.RequestsPerSecond,
		})
		scraper = service.NewScrapeService(client, service.RetryPolicy{
			MaxAttempts: cfg.Dataset.MaxAttempts,
			Interval:    cfg.Dataset.PollInterval,
			Deadline:    cfg.Dataset.Deadline,
		})
	}

	c.Ingest = service.NewIngestService(scraper, c.Publisher, &service.IngestConfig{
		Workers:     cfg.Ingest.Workers,
		BatchSize:   cfg.Ingest.BatchSize,
		CatalogRate: cfg.Ingest.CatalogRate,
	})

	if cfg.Ingest.CatalogPath != "" {
		c.Catalog = catalog.NewAdapter(cfg.Ingest.CatalogPath)
	}

	logger.CtxInfo(ctx, "Components ready: index=%s, passages=%s, publish_mode=%s, scraping=%v",
		cfg.Index.Backend, cfg.Passages.Backend, cfg.Ingest.PublishMode, scraper != nil)
	return c, nil
}

// buildIndex selects the primary document index and the keyword searcher.
func (c *Components) buildIndex(ctx context.Context) (service.DocumentIndex, error) {
	cfg := c.Config
	switch cfg.Index.Backend {
	case config.IndexBackendCoveo:
		push := repository.NewCoveoPushRepository(&repository.CoveoPushConfig{
			BaseURL:  cfg.Index.PushBaseURL,
			OrgID:    cfg.Index.OrgID,
			SourceID: cfg.Index.SourceID,
			APIKey:   cfg.Index.APIKey,
			Timeout:  cfg.Index.Timeout,
		})
		search := repository.NewCoveoSearchRepository(&repository.CoveoSearchConfig{
			BaseURL:     cfg.Index.SearchBaseURL,
			OrgID:       cfg.Index.OrgID,
			SearchToken: cfg.Index.SearchToken,
			SearchHub:   cfg.Index.SearchHub,
			Locale:      cfg.Index.Locale,
			Timeout:     cfg.Index.Timeout,
		})
		c.Searcher = search
		if cfg.Passages.Backend == config.PassagesBackendIndex {
			c.Passages = search
		}
		return push, nil

	case config.IndexBackendLocal:
		local, err := repository.NewLocalIndex()
		if err != nil {
			return nil, fmt.Errorf("failed to create local index: %w", err)
		}
		c.closers = append(c.closers, local)
		c.Searcher = local
		if cfg.Passages.Backend == config.PassagesBackendIndex {
			c.Passages = local
		}
		logger.CtxWarn(ctx, "Using in-memory index; documents are lost on restart")
		return local, nil
	}
	return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
}

func (c *Components) buildVectorPassages(ctx context.Context) (*service.VectorPassageIndex, error) {
	cfg := c.Config
	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}
	c.closers = append(c.closers, qdrantRepo)

	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure qdrant collection: %w", err)
	}
	return service.NewVectorPassageIndex(service.NewEmbeddingService(&cfg.Embedding), qdrantRepo), nil
}

// Close releases backend connections.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
