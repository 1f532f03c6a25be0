package brightdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/timmy/pokedex/internal/domain"
)

const (
	DefaultBaseURL   = "https://api.brightdata.com"
	DefaultDatasetID = "gd_l1viktl72bvl7bjuj0"
	defaultTimeout   = 30 * time.Second
)

// Config holds configuration for the dataset service client.
type Config struct {
	APIToken          string
	BaseURL           string
	DatasetID         string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables client-side throttling
}

// Client issues trigger/progress/snapshot calls to the dataset service.
// Each call is exactly one HTTP round trip; retry policy belongs to the caller.
type Client struct {
	client    *resty.Client
	datasetID string
	limiter   *rate.Limiter
}

// NewClient creates a new dataset service client.
func NewClient(cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	datasetID := cfg.DatasetID
	if datasetID == "" {
		datasetID = DefaultDatasetID
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetHeader("Authorization", "Bearer "+cfg.APIToken)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)

	c := &Client{
		client:    client,
		datasetID: datasetID,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

type triggerInput struct {
	URL string `json:"url"`
}

type triggerResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

type progressResponse struct {
	SnapshotID string `json:"snapshot_id"`
	Status     string `json:"status"`
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// Trigger starts a scrape job for profileURL and returns the provider job id.
func (c *Client) Trigger(ctx context.Context, profileURL string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", domain.WrapError(domain.KindTriggerFailed, err, "trigger throttled")
	}

	var result triggerResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("dataset_id", c.datasetID).
		SetQueryParam("include_errors", "true").
		SetBody([]triggerInput{{URL: profileURL}}).
		SetResult(&result).
		ForceContentType("application/json").
		Post("/datasets/v3/trigger")
	if err != nil {
		return "", domain.WrapError(domain.KindTriggerFailed, err, "trigger request failed")
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", domain.UpstreamError(domain.KindTriggerFailed, resp.StatusCode(), string(resp.Body()), "trigger rejected")
	}
	if result.SnapshotID == "" {
		return "", domain.UpstreamError(domain.KindTriggerFailed, resp.StatusCode(), string(resp.Body()), "trigger response has no snapshot_id")
	}
	return result.SnapshotID, nil
}

// Poll checks the progress of a job. Unknown remote statuses are reported as running.
func (c *Client) Poll(ctx context.Context, jobID string) (domain.JobStatus, error) {
	if err := c.wait(ctx); err != nil {
		return "", domain.WrapError(domain.KindPollFailed, err, "poll throttled")
	}

	var result progressResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetResult(&result).
		ForceContentType("application/json").
		Get("/datasets/v3/progress/{id}")
	if err != nil {
		return "", domain.WrapError(domain.KindPollFailed, err, "progress request failed")
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", domain.UpstreamError(domain.KindPollFailed, resp.StatusCode(), string(resp.Body()), "progress rejected")
	}
	return ParseStatus(result.Status), nil
}

// FetchResult downloads the snapshot of a ready job. An array payload yields its first element.
func (c *Client) FetchResult(ctx context.Context, jobID string) (map[string]interface{}, error) {
	if err := c.wait(ctx); err != nil {
		return nil, domain.WrapError(domain.KindFetchFailed, err, "fetch throttled")
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetQueryParam("format", "json").
		Get("/datasets/v3/snapshot/{id}")
	if err != nil {
		return nil, domain.WrapError(domain.KindFetchFailed, err, "snapshot request failed")
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, domain.UpstreamError(domain.KindFetchFailed, resp.StatusCode(), string(resp.Body()), "snapshot rejected")
	}

	payload, err := decodeSnapshot(resp.Body())
	if err != nil {
		return nil, domain.UpstreamError(domain.KindFetchFailed, resp.StatusCode(), string(resp.Body()), "%s", err.Error())
	}
	return payload, nil
}

// ParseStatus maps a remote progress status onto a job status.
func ParseStatus(status string) domain.JobStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "ready":
		return domain.JobStatusReady
	case "failed":
		return domain.JobStatusFailed
	default:
		return domain.JobStatusRunning
	}
}

func decodeSnapshot(body []byte) (map[string]interface{}, error) {
	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("snapshot is not valid JSON: %w", err)
	}

	switch v := raw.(type) {
	case []interface{}:
		if len(v) == 0 {
			return nil, fmt.Errorf("snapshot is empty")
		}
		obj, ok := v[0].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("snapshot record is not an object")
		}
		return obj, nil
	case map[string]interface{}:
		return v, nil
	default:
		return nil, fmt.Errorf("snapshot is not an object")
	}
}
