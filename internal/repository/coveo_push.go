package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/pokedex/internal/domain"
)

const (
	DefaultPushBaseURL  = "https://api.cloud.coveo.com"
	defaultIndexTimeout = 15 * time.Second
)

// CoveoPushConfig holds configuration for the hosted index Push API.
type CoveoPushConfig struct {
	BaseURL  string
	OrgID    string
	SourceID string
	APIKey   string
	Timeout  time.Duration
}

// CoveoPushRepository writes documents to a hosted index push source.
type CoveoPushRepository struct {
	client   *resty.Client
	orgID    string
	sourceID string
}

// NewCoveoPushRepository creates a new CoveoPushRepository.
func NewCoveoPushRepository(cfg *CoveoPushConfig) *CoveoPushRepository {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultPushBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultIndexTimeout
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetAuthToken(cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)

	return &CoveoPushRepository{
		client:   client,
		orgID:    cfg.OrgID,
		sourceID: cfg.SourceID,
	}
}

type permission struct {
	AllowAnonymous bool `json:"allowAnonymous"`
}

// pushBody flattens a document into the Push API body, Extra fields included.
func pushBody(doc domain.NormalizedDocument) map[string]interface{} {
	body := map[string]interface{}{
		"title":             doc.Title,
		"clickableUri":      doc.ClickableURI,
		"data":              doc.Body,
		"fileExtension":     doc.FileExtension,
		"permissions":       []permission{{AllowAnonymous: true}},
		"pokemonimage":      doc.ImageURI,
		"pokemonnumber":     doc.Number,
		"pokemontype":       doc.Types,
		"pokemonspecies":    doc.Species,
		"pokemongeneration": doc.Generation,
		"pokemoncategory":   doc.Category,
	}
	for k, v := range doc.Extra {
		if _, reserved := body[k]; !reserved {
			body[k] = v
		}
	}
	return body
}

func (r *CoveoPushRepository) documentsPath() string {
	return fmt.Sprintf("/push/v1/organizations/%s/sources/%s/documents", r.orgID, r.sourceID)
}

// Upsert replaces the document keyed by doc.DocumentID.
func (r *CoveoPushRepository) Upsert(ctx context.Context, doc domain.NormalizedDocument) error {
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("documentId", doc.DocumentID).
		SetBody(pushBody(doc)).
		Put(r.documentsPath())
	if err != nil {
		return domain.WrapError(domain.KindPublishFailed, err, "push request failed")
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return domain.UpstreamError(domain.KindPublishFailed, resp.StatusCode(), string(resp.Body()), "push rejected for %s", doc.DocumentID)
	}
	return nil
}

// Remove deletes the document keyed by documentID.
func (r *CoveoPushRepository) Remove(ctx context.Context, documentID string) error {
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("documentId", documentID).
		Delete(r.documentsPath())
	if err != nil {
		return domain.WrapError(domain.KindDeleteFailed, err, "delete request failed")
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return domain.UpstreamError(domain.KindDeleteFailed, resp.StatusCode(), string(resp.Body()), "delete rejected for %s", documentID)
	}
	return nil
}
