package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/pokedex/internal/domain"
)

// CoveoSearchConfig holds configuration for the hosted search and passage APIs.
type CoveoSearchConfig struct {
	BaseURL     string // defaults to https://{org}.org.coveo.com
	OrgID       string
	SearchToken string
	SearchHub   string
	Locale      string
	Timeout     time.Duration
}

// CoveoSearchRepository queries the hosted index for hits and passages.
type CoveoSearchRepository struct {
	client    *resty.Client
	searchHub string
	locale    string
}

// NewCoveoSearchRepository creates a new CoveoSearchRepository.
func NewCoveoSearchRepository(cfg *CoveoSearchConfig) *CoveoSearchRepository {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.org.coveo.com", cfg.OrgID)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultIndexTimeout
	}
	locale := cfg.Locale
	if locale == "" {
		locale = "en"
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetAuthToken(cfg.SearchToken)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")
	client.SetTimeout(timeout)

	return &CoveoSearchRepository{
		client:    client,
		searchHub: cfg.SearchHub,
		locale:    locale,
	}
}

var searchFields = []string{
	"pokemonnumber", "pokemontype", "pokemonspecies", "pokemongeneration", "pokemoncategory", "pokemonimage",
}

type searchRequest struct {
	Q               string   `json:"q"`
	NumberOfResults int      `json:"numberOfResults"`
	SearchHub       string   `json:"searchHub,omitempty"`
	FieldsToInclude []string `json:"fieldsToInclude"`
}

type searchResponse struct {
	TotalCount int            `json:"totalCount"`
	Results    []searchResult `json:"results"`
}

type searchResult struct {
	Title    string    `json:"title"`
	URI      string    `json:"uri"`
	ClickURI string    `json:"clickUri"`
	Excerpt  string    `json:"excerpt"`
	Score    float64   `json:"score"`
	Raw      resultRaw `json:"raw"`
}

type resultRaw struct {
	Number     float64    `json:"pokemonnumber"`
	Types      stringList `json:"pokemontype"`
	Species    string     `json:"pokemonspecies"`
	Generation string     `json:"pokemongeneration"`
	Category   string     `json:"pokemoncategory"`
}

// stringList accepts a multi-value field as an array or a ";"-separated string.
type stringList []string

func (s *stringList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*s = list
		return nil
	}
	var single string
	if err := json.Unmarshal(b, &single); err != nil {
		return err
	}
	*s = nil
	for _, part := range strings.Split(single, ";") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

// Search returns up to limit keyword hits in index rank order.
func (r *CoveoSearchRepository) Search(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	var result searchResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(searchRequest{
			Q:               query,
			NumberOfResults: limit,
			SearchHub:       r.searchHub,
			FieldsToInclude: searchFields,
		}).
		SetResult(&result).
		ForceContentType("application/json").
		Post("/rest/search/v2")
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("search failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	hits := make([]domain.SearchHit, 0, len(result.Results))
	for _, res := range result.Results {
		uri := res.ClickURI
		if uri == "" {
			uri = res.URI
		}
		hits = append(hits, domain.SearchHit{
			Title:      res.Title,
			URI:        uri,
			Excerpt:    res.Excerpt,
			Number:     int(res.Raw.Number),
			Types:      res.Raw.Types,
			Species:    res.Raw.Species,
			Generation: res.Raw.Generation,
			Category:   res.Raw.Category,
			Score:      res.Score,
		})
		if limit > 0 && len(hits) == limit {
			break
		}
	}
	return hits, nil
}

type passageRequest struct {
	Query            string       `json:"query"`
	Localization     localization `json:"localization"`
	AdditionalFields []string     `json:"additionalFields"`
	MaxPassages      int          `json:"maxPassages"`
	SearchHub        string       `json:"searchHub,omitempty"`
}

type localization struct {
	Locale string `json:"locale"`
}

type passageResponse struct {
	Items      []passageItem `json:"items"`
	ResponseID string        `json:"responseId"`
}

type passageItem struct {
	Text           string  `json:"text"`
	RelevanceScore float64 `json:"relevanceScore"`
	Document       struct {
		Title        string `json:"title"`
		PrimaryID    string `json:"primaryid"`
		ClickableURI string `json:"clickableuri"`
	} `json:"document"`
}

// RetrievePassages returns up to limit passages for a natural-language query.
// Organizations without a passage model answer with an error status.
func (r *CoveoSearchRepository) RetrievePassages(ctx context.Context, query string, limit int) ([]domain.Passage, error) {
	var result passageResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(passageRequest{
			Query:            query,
			Localization:     localization{Locale: r.locale},
			AdditionalFields: []string{"clickableuri", "pokemontype"},
			MaxPassages:      limit,
			SearchHub:        r.searchHub,
		}).
		SetResult(&result).
		ForceContentType("application/json").
		Post("/rest/search/v3/passages/retrieve")
	if err != nil {
		return nil, fmt.Errorf("passage request failed: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("passage retrieval failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	passages := make([]domain.Passage, 0, len(result.Items))
	for _, item := range result.Items {
		passages = append(passages, domain.Passage{
			DocumentTitle: item.Document.Title,
			DocumentURI:   item.Document.ClickableURI,
			Text:          item.Text,
			Score:         item.RelevanceScore,
		})
	}
	return passages, nil
}
