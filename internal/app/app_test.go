package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/pokedex/internal/config"
	"github.com/timmy/pokedex/internal/domain"
	"github.com/timmy/pokedex/internal/repository"
)

func TestBuildLocalBackend(t *testing.T) {
	cfg := &config.Config{
		Index:    config.IndexConfig{Backend: config.IndexBackendLocal},
		Passages: config.PassagesConfig{Backend: config.PassagesBackendIndex},
		Ingest:   config.IngestConfig{PublishMode: config.PublishModeSync, CatalogPath: "pokemon.json"},
	}

	c, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	assert.IsType(t, &repository.LocalIndex{}, c.Searcher)
	assert.Equal(t, c.Searcher, c.Passages)
	assert.NotNil(t, c.Catalog)

	ctx := context.Background()
	require.NoError(t, c.Publisher.Publish(ctx, domain.NormalizedDocument{
		DocumentID: "https://pokemondb.net/pokedex/eevee",
		Title:      "Eevee",
		Body:       "Eevee adapts to its environment.",
	}))
	hits, err := c.Searcher.Search(ctx, "eevee", 4)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	_, err = c.Ingest.SubmitProfile(ctx, "https://www.linkedin.com/in/ada", nil)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err), "scraping is disabled without a dataset token")
}

func TestBuildCoveoBackendWithoutPassages(t *testing.T) {
	cfg := &config.Config{
		Index: config.IndexConfig{
			Backend:  config.IndexBackendCoveo,
			OrgID:    "org",
			SourceID: "src",
			APIKey:   "key",
		},
		Passages: config.PassagesConfig{Backend: config.PassagesBackendNone},
		Dataset:  config.DatasetConfig{APIToken: "token", MaxAttempts: 1},
	}

	c, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	assert.IsType(t, &repository.CoveoSearchRepository{}, c.Searcher)
	assert.Nil(t, c.Passages)
	assert.Nil(t, c.Catalog)
}

func TestBuildRejectsUnknownBackend(t *testing.T) {
	_, err := Build(context.Background(), &config.Config{Index: config.IndexConfig{Backend: "elastic"}})
	assert.Error(t, err)
}
