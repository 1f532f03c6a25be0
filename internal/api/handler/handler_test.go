package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/pokedex/internal/config"
	"github.com/timmy/pokedex/internal/domain"
	"github.com/timmy/pokedex/internal/repository"
	"github.com/timmy/pokedex/internal/service"
	"github.com/timmy/pokedex/internal/source/brightdata"
)

const adaURL = "https://www.linkedin.com/in/ada-lovelace"

func init() {
	gin.SetMode(gin.TestMode)
}

func newIndex(t *testing.T) *repository.LocalIndex {
	t.Helper()
	idx, err := repository.NewLocalIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	require.NoError(t, idx.Upsert(context.Background(), domain.NormalizedDocument{
		DocumentID:    "https://pokemondb.net/pokedex/pikachu",
		Title:         "Pikachu",
		ClickableURI:  "https://pokemondb.net/pokedex/pikachu",
		Body:          "Pikachu stores electricity in its cheeks. It is the Mouse Pokémon.",
		FileExtension: domain.DefaultFileExtension,
		Number:        25,
		Types:         []string{"Electric"},
		Species:       "Mouse Pokémon",
		Generation:    "Generation 1",
		Category:      domain.CatalogCategory,
	}))
	return idx
}

// completionStub serves an OpenAI-style stream of the given frames, or status when not 200.
func completionStub(t *testing.T, status int, frames ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"overloaded"}`))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			_, _ = fmt.Fprintf(w, "%s\n\n", f)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func completionDelta(content string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`, content)
}

func newChatRouter(t *testing.T, llmURL string) *gin.Engine {
	t.Helper()
	idx := newIndex(t)
	aggregator := service.NewContextAggregator(idx, idx, service.DefaultContextConfig())
	streamer := service.NewAnswerStreamer(&config.LLMConfig{APIKey: "k", BaseURL: llmURL}, 6000)

	r := gin.New()
	r.POST("/api/v1/chat", NewChatHandler(aggregator, streamer).Chat)
	return r
}

func postJSON(r http.Handler, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatStreamsDeltasThenDone(t *testing.T) {
	llm := completionStub(t, http.StatusOK,
		completionDelta("Pikachu"),
		completionDelta(" is Electric."),
		"data: [DONE]",
	)
	r := newChatRouter(t, llm.URL)

	w := postJSON(r, "/api/v1/chat", ChatRequest{Query: "pikachu"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t,
		"data: {\"choices\":[{\"delta\":{\"content\":\"Pikachu\"}}]}\n\n"+
			"data: {\"choices\":[{\"delta\":{\"content\":\" is Electric.\"}}]}\n\n"+
			"data: [DONE]\n\n",
		w.Body.String())
}

func TestChatZeroTokensSendsFallbackFrame(t *testing.T) {
	llm := completionStub(t, http.StatusOK, "data: [DONE]")
	r := newChatRouter(t, llm.URL)

	w := postJSON(r, "/api/v1/chat", ChatRequest{Query: "pikachu"})

	require.Equal(t, http.StatusOK, w.Code)
	frames := strings.Split(strings.TrimSpace(w.Body.String()), "\n\n")
	require.Len(t, frames, 2)
	assert.Contains(t, frames[0], "Pikachu (#25) is a Electric type.")
	assert.Equal(t, "data: [DONE]", frames[1])
}

func TestChatUpstreamUnavailableReturnsJSONFallback(t *testing.T) {
	llm := completionStub(t, http.StatusServiceUnavailable)
	r := newChatRouter(t, llm.URL)

	w := postJSON(r, "/api/v1/chat", ChatRequest{Query: "pikachu"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp ChatFallbackResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Fallback)
	assert.Equal(t, domain.KindStreamUnavailable, resp.Error)
	assert.Contains(t, resp.Detail, "HTTP 503")
	assert.Equal(t, "Pikachu (#25) is a Electric type. It is known as the Mouse Pokémon.", resp.Answer)
}

func TestChatRequiresQuery(t *testing.T) {
	r := newChatRouter(t, "http://127.0.0.1:1")

	w := postJSON(r, "/api/v1/chat", ChatRequest{Query: "   "})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(domain.KindValidation))
}

// datasetStub completes every job on the second poll.
func datasetStub(t *testing.T) *httptest.Server {
	t.Helper()
	var polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/datasets/v3/trigger":
			polls.Store(0)
			_, _ = w.Write([]byte(`{"snapshot_id":"s_1"}`))
		case strings.HasPrefix(r.URL.Path, "/datasets/v3/progress/"):
			status := "running"
			if polls.Add(1) >= 2 {
				status = "ready"
			}
			_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
		case strings.HasPrefix(r.URL.Path, "/datasets/v3/snapshot/"):
			_, _ = w.Write([]byte(`[{"name":"Ada Lovelace","headline":"Analyst","location":"London"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProfileRouter(t *testing.T) (*gin.Engine, *repository.LocalIndex) {
	t.Helper()
	idx := newIndex(t)
	client := brightdata.NewClient(&brightdata.Config{APIToken: "token", BaseURL: datasetStub(t).URL})
	scraper := service.NewScrapeService(client, service.RetryPolicy{MaxAttempts: 10, Interval: time.Millisecond, Deadline: 5 * time.Second})
	publisher := service.NewPublishService(idx, config.PublishModeSync, time.Second)
	h := NewProfileHandler(service.NewIngestService(scraper, publisher, &service.IngestConfig{}))

	r := gin.New()
	r.POST("/api/v1/profiles", h.Submit)
	r.DELETE("/api/v1/profiles", h.Delete)
	return r, idx
}

func TestSubmitProfileRejectsUnrecognizedURL(t *testing.T) {
	r, _ := newProfileRouter(t)

	w := postJSON(r, "/api/v1/profiles", SubmitProfileRequest{URL: "https://example.com/ada"})

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, domain.KindValidation, resp.Error)
	assert.Contains(t, resp.Detail, domain.ProfileURLPattern)
}

func TestSubmitProfileJSON(t *testing.T) {
	r, idx := newProfileRouter(t)

	w := postJSON(r, "/api/v1/profiles", SubmitProfileRequest{URL: adaURL})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp SubmitProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Ada Lovelace", resp.Name)
	assert.Equal(t, "Ada Lovelace has been added to the Pokedex!", resp.Message)
	assert.Equal(t, domain.ProfileDocumentID(adaURL), resp.Profile.DocumentID)

	hit, err := idx.Lookup(context.Background(), resp.Profile.DocumentID)
	require.NoError(t, err)
	require.NotNil(t, hit)
}

func TestSubmitProfileEventStream(t *testing.T) {
	r, _ := newProfileRouter(t)

	w := postJSON(r, "/api/v1/profiles", SubmitProfileRequest{URL: adaURL}, "Accept", "text/event-stream")

	require.Equal(t, http.StatusOK, w.Code)
	var types []string
	var statuses []domain.JobStatus
	for _, frame := range strings.Split(strings.TrimSpace(w.Body.String()), "\n\n") {
		var evt progressEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &evt))
		types = append(types, evt.Type)
		if evt.Event != nil {
			statuses = append(statuses, evt.Event.To)
		}
	}
	require.NotEmpty(t, types)
	assert.Equal(t, "result", types[len(types)-1])
	assert.Equal(t, []domain.JobStatus{domain.JobStatusPending, domain.JobStatusRunning, domain.JobStatusReady}, statuses)
}

func TestDeleteProfile(t *testing.T) {
	r, idx := newProfileRouter(t)
	ctx := context.Background()

	w := postJSON(r, "/api/v1/profiles", SubmitProfileRequest{URL: adaURL})
	require.Equal(t, http.StatusOK, w.Code)

	id := domain.ProfileDocumentID(adaURL)
	data, _ := json.Marshal(DeleteProfileRequest{DocumentID: id})
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/profiles", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"success":true,"documentId":%q}`, id), w.Body.String())

	hit, err := idx.Lookup(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestSearchHandler(t *testing.T) {
	r := gin.New()
	r.GET("/api/v1/search", NewSearchHandler(newIndex(t)).Search)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=pikachu&limit=3", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, 25, resp.Results[0].Number)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/search", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type failingSearcher struct{}

func (failingSearcher) Search(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	return nil, errors.New("index unreachable")
}

func TestSearchHandlerBackendFailureUsesErrorEnvelope(t *testing.T) {
	r := gin.New()
	r.GET("/api/v1/search", NewSearchHandler(failingSearcher{}).Search)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=pikachu", nil))

	require.Equal(t, http.StatusBadGateway, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, domain.KindSearchFailed, resp.Error)
	assert.Contains(t, resp.Detail, "index unreachable")
}
