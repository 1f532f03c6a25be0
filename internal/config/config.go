package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Index and passage backends.
const (
	IndexBackendCoveo = "coveo"
	IndexBackendLocal = "local"

	PassagesBackendIndex  = "index"
	PassagesBackendQdrant = "qdrant"
	PassagesBackendNone   = "none"

	PublishModeAsync = "async"
	PublishModeSync  = "sync"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Index     IndexConfig     `mapstructure:"index"`
	Passages  PassagesConfig  `mapstructure:"passages"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatasetConfig configures the third-party scrape service and the polling policy.
type DatasetConfig struct {
	APIToken          string        `mapstructure:"api_token"`
	BaseURL           string        `mapstructure:"base_url"`
	DatasetID         string        `mapstructure:"dataset_id"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	Deadline          time.Duration `mapstructure:"deadline"`
}

// IndexConfig configures the hosted search index (push + search) or the local index.
type IndexConfig struct {
	Backend       string        `mapstructure:"backend"`
	OrgID         string        `mapstructure:"org_id"`
	SourceID      string        `mapstructure:"source_id"`
	APIKey        string        `mapstructure:"api_key"`
	SearchToken   string        `mapstructure:"search_token"`
	PushBaseURL   string        `mapstructure:"push_base_url"`
	SearchBaseURL string        `mapstructure:"search_base_url"`
	SearchHub     string        `mapstructure:"search_hub"`
	Locale        string        `mapstructure:"locale"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type PassagesConfig struct {
	Backend string `mapstructure:"backend"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

// LLMConfig configures the OpenAI-compatible completion API.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type ChatConfig struct {
	MaxHits         int           `mapstructure:"max_hits"`
	MaxPassages     int           `mapstructure:"max_passages"`
	HistoryTurns    int           `mapstructure:"history_turns"`
	GatherTimeout   time.Duration `mapstructure:"gather_timeout"`
	MaxContextChars int           `mapstructure:"max_context_chars"`
}

type IngestConfig struct {
	PublishMode    string        `mapstructure:"publish_mode"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	Workers        int           `mapstructure:"workers"`
	BatchSize      int           `mapstructure:"batch_size"`
	CatalogRate    float64       `mapstructure:"catalog_rate"`
	CatalogPath    string        `mapstructure:"catalog_path"`
}

// AdminConfig holds the optional bearer secret for mutating endpoints.
// An empty token disables the check (development mode).
type AdminConfig struct {
	Token string `mapstructure:"token"`
}

func Load(configPath string) (*Config, error) {
	// Load .env files if they exist; earlier files win
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for credentials
	v.BindEnv("dataset.api_token", "BRIGHT_DATA_API_TOKEN")
	v.BindEnv("index.org_id", "COVEO_ORG_ID")
	v.BindEnv("index.api_key", "COVEO_API_KEY")
	v.BindEnv("index.source_id", "COVEO_SOURCE_ID")
	v.BindEnv("index.search_token", "COVEO_SEARCH_TOKEN", "NEXT_PUBLIC_COVEO_SEARCH_TOKEN")
	v.BindEnv("index.backend", "INDEX_BACKEND")
	v.BindEnv("passages.backend", "PASSAGES_BACKEND")
	v.BindEnv("llm.api_key", "GROQ_API_KEY", "LLM_API_KEY")
	v.BindEnv("llm.base_url", "LLM_BASE_URL")
	v.BindEnv("llm.model", "LLM_MODEL")
	v.BindEnv("admin.token", "ADMIN_TOKEN")
	v.BindEnv("embedding.api_key", "JINA_API_KEY")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("ingest.publish_mode", "PUBLISH_MODE")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("dataset.base_url", "https://api.brightdata.com")
	v.SetDefault("dataset.dataset_id", "gd_l1viktl72bvl7bjuj0")
	v.SetDefault("dataset.timeout", 30*time.Second)
	v.SetDefault("dataset.requests_per_second", 0)
	v.SetDefault("dataset.poll_interval", 2*time.Second)
	v.SetDefault("dataset.max_attempts", 60)
	v.SetDefault("dataset.deadline", 120*time.Second)

	v.SetDefault("index.backend", IndexBackendCoveo)
	v.SetDefault("index.push_base_url", "https://api.cloud.coveo.com")
	v.SetDefault("index.search_hub", "PokemonSearch")
	v.SetDefault("index.locale", "en")
	v.SetDefault("index.timeout", 15*time.Second)

	v.SetDefault("passages.backend", PassagesBackendIndex)

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "pokedex_passages")

	v.SetDefault("embedding.provider", "jina")
	v.SetDefault("embedding.model", "jina-embeddings-v3")
	v.SetDefault("embedding.dimensions", 1024)

	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("chat.max_hits", 4)
	v.SetDefault("chat.max_passages", 3)
	v.SetDefault("chat.history_turns", 10)
	v.SetDefault("chat.gather_timeout", 8*time.Second)
	v.SetDefault("chat.max_context_chars", 6000)

	v.SetDefault("ingest.publish_mode", PublishModeAsync)
	v.SetDefault("ingest.publish_timeout", 30*time.Second)
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.batch_size", 20)
	v.SetDefault("ingest.catalog_rate", 10)
	v.SetDefault("ingest.catalog_path", "./data/pokemon.json")
}
