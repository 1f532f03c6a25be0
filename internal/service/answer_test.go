package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/pokedex/internal/config"
	"github.com/timmy/pokedex/internal/domain"
	"github.com/timmy/pokedex/internal/prompts"
)

func completionServer(t *testing.T, status int, frames ...string) (*httptest.Server, *llmRequest) {
	t.Helper()
	var got llmRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer groq-key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			_, _ = fmt.Fprintf(w, "%s\n\n", f)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func deltaFrame(content string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`, content)
}

func newTestStreamer(baseURL string) *AnswerStreamer {
	return NewAnswerStreamer(&config.LLMConfig{
		APIKey:      "groq-key",
		BaseURL:     baseURL,
		Model:       "llama-3.3-70b-versatile",
		Temperature: 0.7,
		MaxTokens:   300,
	}, 6000)
}

var pikachuContext = domain.ChatContext{
	SearchHits: []domain.SearchHit{{Title: "Pikachu", Number: 25, Types: []string{"Electric"}, Species: "Mouse Pokémon"}},
}

func TestStreamAnswerRelaysInOrder(t *testing.T) {
	srv, got := completionServer(t, http.StatusOK,
		": keep-alive",
		deltaFrame("Pikachu"),
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		deltaFrame(" (#25)"),
		deltaFrame(" is Electric."),
		"data: [DONE]",
		deltaFrame(" ignored"),
	)

	var deltas []string
	res := newTestStreamer(srv.URL).StreamAnswer(context.Background(), "who is pikachu?", pikachuContext, DeltaFunc(func(d string) error {
		deltas = append(deltas, d)
		return nil
	}))

	require.NoError(t, res.Err)
	assert.True(t, res.Opened)
	assert.False(t, res.Fallback)
	assert.Equal(t, []string{"Pikachu", " (#25)", " is Electric."}, deltas)
	assert.Equal(t, 3, res.Tokens)
	assert.Equal(t, "Pikachu (#25) is Electric.", res.Answer)

	require.Len(t, got.Messages, 2)
	assert.True(t, got.Stream)
	assert.Equal(t, prompts.ChatSystemPrompt, got.Messages[0].Content)
	assert.True(t, strings.HasPrefix(got.Messages[1].Content, "Search results:\n1. Pikachu (#25)"))
	assert.True(t, strings.HasSuffix(got.Messages[1].Content, "\n\nQuestion: who is pikachu?"))
}

func TestStreamAnswerZeroTokensFallsBack(t *testing.T) {
	srv, _ := completionServer(t, http.StatusOK, "data: [DONE]")

	var deltas []string
	res := newTestStreamer(srv.URL).StreamAnswer(context.Background(), "pikachu", pikachuContext, DeltaFunc(func(d string) error {
		deltas = append(deltas, d)
		return nil
	}))

	assert.True(t, res.Fallback)
	assert.True(t, res.Opened)
	assert.Equal(t, domain.KindStreamUnavailable, domain.KindOf(res.Err))
	require.Len(t, deltas, 1)
	assert.Contains(t, res.Answer, "Pikachu (#25)")
	assert.Contains(t, res.Answer, "Electric")
	assert.Equal(t, res.Answer, deltas[0])
}

func TestStreamAnswerUpstreamRejected(t *testing.T) {
	srv, _ := completionServer(t, http.StatusTooManyRequests)
	streamer := newTestStreamer(srv.URL)

	_, err := streamer.Open(context.Background(), "pikachu", pikachuContext)
	require.Error(t, err)
	assert.Equal(t, domain.KindStreamUnavailable, domain.KindOf(err))
	assert.Contains(t, err.Error(), "rate limited")

	var deltas []string
	res := streamer.StreamAnswer(context.Background(), "pikachu", pikachuContext, DeltaFunc(func(d string) error {
		deltas = append(deltas, d)
		return nil
	}))
	assert.True(t, res.Fallback)
	assert.False(t, res.Opened)
	assert.Empty(t, deltas, "nothing is relayed when the stream never opened")
	assert.Equal(t, "Pikachu (#25) is a Electric type. It is known as the Mouse Pokémon.", res.Answer)
}

func TestStreamAnswerSendsTrimmedHistory(t *testing.T) {
	srv, got := completionServer(t, http.StatusOK, deltaFrame("ok"), "data: [DONE]")

	chatCtx := pikachuContext
	for i := 0; i < 12; i++ {
		chatCtx.History = append(chatCtx.History, domain.ChatMessage{Role: domain.RoleUser, Content: fmt.Sprintf("turn %d", i)})
	}
	newTestStreamer(srv.URL).StreamAnswer(context.Background(), "q", chatCtx, DeltaFunc(func(string) error { return nil }))

	require.Len(t, got.Messages, 1+domain.MaxHistoryTurns+1)
	assert.Equal(t, "turn 2", got.Messages[1].Content)
}

type beginRecorder struct {
	events []string
}

func (r *beginRecorder) Begin() error {
	r.events = append(r.events, "begin")
	return nil
}

func (r *beginRecorder) Delta(content string) error {
	r.events = append(r.events, content)
	return nil
}

func TestStreamAnswerBeginsSinkBeforeFirstDelta(t *testing.T) {
	srv, _ := completionServer(t, http.StatusOK, deltaFrame("Pikachu"), "data: [DONE]")

	rec := &beginRecorder{}
	res := newTestStreamer(srv.URL).StreamAnswer(context.Background(), "pikachu", pikachuContext, rec)

	require.NoError(t, res.Err)
	assert.Equal(t, []string{"begin", "Pikachu"}, rec.events)
}

func TestStreamAnswerOutlivesHeaderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, part := range []string{"Pika", "chu"} {
			_, _ = fmt.Fprintf(w, "%s\n\n", deltaFrame(part))
			flusher.Flush()
			time.Sleep(150 * time.Millisecond)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	streamer := NewAnswerStreamer(&config.LLMConfig{APIKey: "groq-key", BaseURL: srv.URL, Timeout: 100 * time.Millisecond}, 6000)
	var deltas []string
	res := streamer.StreamAnswer(context.Background(), "pikachu", pikachuContext, DeltaFunc(func(d string) error {
		deltas = append(deltas, d)
		return nil
	}))

	require.NoError(t, res.Err)
	assert.False(t, res.Fallback)
	assert.Equal(t, []string{"Pika", "chu"}, deltas)
}

func TestFallbackAnswer(t *testing.T) {
	assert.Equal(t, prompts.FallbackNoResults, FallbackAnswer(domain.ChatContext{}))

	got := FallbackAnswer(domain.ChatContext{SearchHits: []domain.SearchHit{
		{Title: "Bulbasaur", Number: 1, Types: []string{"Grass", "Poison"}},
	}})
	assert.Equal(t, "Bulbasaur (#1) is a Grass/Poison type.", got)
}
