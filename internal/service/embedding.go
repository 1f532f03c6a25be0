package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/pokedex/internal/config"
)

const (
	defaultEmbeddingBaseURL = "https://api.jina.ai/v1"

	taskPassage = "retrieval.passage"
	taskQuery   = "retrieval.query"
)

// EmbeddingService generates embeddings through a Jina-compatible API.
type EmbeddingService struct {
	client     *resty.Client
	model      string
	dimensions int
}

// NewEmbeddingService creates a new embedding service.
func NewEmbeddingService(cfg *config.EmbeddingConfig) *EmbeddingService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultEmbeddingBaseURL
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetAuthToken(cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	return &EmbeddingService{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Dimensions returns the vector size produced by the model.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

type jinaRequest struct {
	Model         string   `json:"model"`
	Task          string   `json:"task,omitempty"`
	Dimensions    int      `json:"dimensions,omitempty"`
	Input         []string `json:"input"`
	EmbeddingType string   `json:"embedding_type,omitempty"`
}

type jinaResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
}

// EmbedBatch embeds passages for storage. Results follow the input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return s.embed(ctx, taskPassage, texts)
}

// EmbedQuery embeds a search query.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := s.embed(ctx, taskQuery, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *EmbeddingService) embed(ctx context.Context, task string, texts []string) ([][]float32, error) {
	var resp jinaResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(jinaRequest{
			Model:         s.model,
			Task:          task,
			Dimensions:    s.dimensions,
			Input:         texts,
			EmbeddingType: "float",
		}).
		SetResult(&resp).
		SetError(&resp).
		ForceContentType("application/json").
		Post("/embeddings")
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding API: %w", err)
	}
	if httpResp.StatusCode() != 200 {
		if resp.Detail != "" {
			return nil, fmt.Errorf("embedding API error: %s", resp.Detail)
		}
		return nil, fmt.Errorf("embedding API error: status %d", httpResp.StatusCode())
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index >= 0 && item.Index < len(embeddings) {
			embeddings[item.Index] = item.Embedding
		}
	}
	for i, e := range embeddings {
		if len(e) == 0 {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return embeddings, nil
}
