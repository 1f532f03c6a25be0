package config

import (
	"fmt"
)

// EmbeddingConfig configures the embedding provider used by the vector passage index.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // Provider type: "jina"
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
}

// Validate checks that the embedding configuration has all required fields.
// Returns an error describing the first validation failure, or nil if valid.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider != "jina" {
		return fmt.Errorf("embedding: unknown provider %q", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("embedding: model is required")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("embedding: dimensions must be positive")
	}
	if c.APIKey == "" {
		return fmt.Errorf("embedding: api_key is required (set directly or via JINA_API_KEY)")
	}
	return nil
}

// Validate checks that the dataset service can be used for profile submissions.
// A missing token is always fatal for the submission endpoint.
func (c *DatasetConfig) Validate() error {
	if c.APIToken == "" {
		return fmt.Errorf("dataset: api_token is required (set directly or via BRIGHT_DATA_API_TOKEN)")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("dataset: max_attempts must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("dataset: poll_interval must be positive")
	}
	if c.Deadline <= 0 {
		return fmt.Errorf("dataset: deadline must be positive")
	}
	return nil
}

// Validate checks backend selections and the credentials each backend needs.
func (c *Config) Validate() error {
	switch c.Index.Backend {
	case IndexBackendCoveo:
		if c.Index.OrgID == "" {
			return fmt.Errorf("index: org_id is required (set directly or via COVEO_ORG_ID)")
		}
		if c.Index.SourceID == "" || c.Index.APIKey == "" {
			return fmt.Errorf("index: source_id and api_key are required (COVEO_SOURCE_ID, COVEO_API_KEY)")
		}
	case IndexBackendLocal:
	default:
		return fmt.Errorf("index: unknown backend %q", c.Index.Backend)
	}

	switch c.Passages.Backend {
	case PassagesBackendIndex, PassagesBackendNone:
	case PassagesBackendQdrant:
		if err := c.Embedding.Validate(); err != nil {
			return fmt.Errorf("passages: %w", err)
		}
	default:
		return fmt.Errorf("passages: unknown backend %q", c.Passages.Backend)
	}

	switch c.Ingest.PublishMode {
	case PublishModeAsync, PublishModeSync:
	default:
		return fmt.Errorf("ingest: unknown publish_mode %q", c.Ingest.PublishMode)
	}

	if c.Chat.MaxHits <= 0 || c.Chat.MaxHits > 4 {
		return fmt.Errorf("chat: max_hits must be between 1 and 4")
	}
	if c.Chat.MaxPassages < 0 || c.Chat.MaxPassages > 3 {
		return fmt.Errorf("chat: max_passages must be between 0 and 3")
	}
	if c.Chat.HistoryTurns < 0 || c.Chat.HistoryTurns > 10 {
		return fmt.Errorf("chat: history_turns must be between 0 and 10")
	}
	return nil
}
