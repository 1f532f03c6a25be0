package source

import "context"

// EvolutionStep is one stage of a catalog entry's evolution chain.
type EvolutionStep struct {
	Name      string `json:"name"`
	Condition string `json:"condition"`
}

// CatalogEntry is one static catalog record as produced by the catalog scraper.
type CatalogEntry struct {
	Name           string             `json:"name"`
	Number         string             `json:"number"`
	Types          []string           `json:"types"`
	Generation     string             `json:"generation"`
	Species        string             `json:"species"`
	Description    string             `json:"description"`
	Stats          map[string]int     `json:"stats"`
	Abilities      []string           `json:"abilities"`
	Height         string             `json:"height"`
	Weight         string             `json:"weight"`
	ImageURL       string             `json:"imageUrl"`
	URL            string             `json:"url"`
	EvolutionChain []EvolutionStep    `json:"evolutionChain,omitempty"`
	TypeDefenses   map[string]float64 `json:"typeDefenses,omitempty"`
	EggGroups      []string           `json:"eggGroups,omitempty"`
	GrowthRate     string             `json:"growthRate,omitempty"`
	CatchRate      int                `json:"catchRate,omitempty"`
	BaseExperience int                `json:"baseExperience,omitempty"`
	EVYield        string             `json:"evYield,omitempty"`
}

// Source defines the interface for catalog data sources.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	// Parameters: none.
	// Returns:
	//   - string: stable source identifier.
	GetSourceID() string

	// GetDisplayName returns a human-readable name for this source.
	GetDisplayName() string

	// FetchBatch fetches a batch of catalog entries starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of entries to fetch.
	// Returns:
	//   - items: batch of catalog entries.
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []CatalogEntry, nextCursor string, err error)
}
