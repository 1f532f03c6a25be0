package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/pokedex/internal/config"
	"github.com/timmy/pokedex/internal/domain"
	"github.com/timmy/pokedex/internal/logger"
	"github.com/timmy/pokedex/internal/prompts"
)

const (
	defaultLLMBaseURL = "https://api.groq.com/openai/v1"
	defaultLLMModel   = "llama-3.3-70b-versatile"
	maxErrorBody      = 4096
	maxStreamLine     = 1024 * 1024
)

// AnswerStreamer requests a streamed completion for a chat turn and relays its deltas.
type AnswerStreamer struct {
	client          *resty.Client
	model           string
	temperature     float64
	maxTokens       int
	maxContextChars int
}

// NewAnswerStreamer creates a streamer for an OpenAI-compatible completion API.
func NewAnswerStreamer(cfg *config.LLMConfig, maxContextChars int) *AnswerStreamer {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultLLMBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultLLMModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// The timeout covers connecting and waiting for response headers. The streamed
	// body is bounded by the request context only.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	client := resty.New()
	client.SetTransport(transport)
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetAuthToken(cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "text/event-stream")

	return &AnswerStreamer{
		client:          client,
		model:           model,
		temperature:     cfg.Temperature,
		maxTokens:       cfg.MaxTokens,
		maxContextChars: maxContextChars,
	}
}

type llmMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llmRequest struct {
	Model       string       `json:"model"`
	Messages    []llmMessage `json:"messages"`
	Stream      bool         `json:"stream"`
	Temperature float64      `json:"temperature"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
}

type streamDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// buildMessages assembles system prompt, trimmed history and the single user turn.
func (s *AnswerStreamer) buildMessages(query string, chatCtx domain.ChatContext) []llmMessage {
	messages := []llmMessage{{Role: string(domain.RoleSystem), Content: prompts.ChatSystemPrompt}}
	for _, m := range domain.TrimHistory(chatCtx.History, domain.MaxHistoryTurns) {
		messages = append(messages, llmMessage{Role: string(m.Role), Content: m.Content})
	}
	block := SerializeContext(chatCtx, s.maxContextChars)
	return append(messages, llmMessage{Role: string(domain.RoleUser), Content: prompts.ChatUserTurn(block, query)})
}

// AnswerStream is an open completion stream. Close must be called.
type AnswerStream struct {
	body io.ReadCloser
}

// Open sends the completion request. Transport errors and non-2xx responses are
// reported as stream_unavailable before anything is relayed.
func (s *AnswerStreamer) Open(ctx context.Context, query string, chatCtx domain.ChatContext) (*AnswerStream, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(llmRequest{
			Model:       s.model,
			Messages:    s.buildMessages(query, chatCtx),
			Stream:      true,
			Temperature: s.temperature,
			MaxTokens:   s.maxTokens,
		}).
		SetDoNotParseResponse(true).
		Post("/chat/completions")
	if err != nil {
		return nil, domain.WrapError(domain.KindStreamUnavailable, err, "completion request failed")
	}

	body := resp.RawBody()
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		_ = body.Close()
		return nil, domain.UpstreamError(domain.KindStreamUnavailable, resp.StatusCode(), strings.TrimSpace(string(detail)), "completion request rejected")
	}
	return &AnswerStream{body: body}, nil
}

// Relay emits every content delta in receipt order until the stream ends.
// It returns the number of non-empty deltas emitted.
func (a *AnswerStream) Relay(emit func(delta string) error) (int, error) {
	scanner := bufio.NewScanner(a.body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)

	tokens := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return tokens, nil
		}

		var delta streamDelta
		if err := json.Unmarshal([]byte(data), &delta); err != nil {
			continue
		}
		if len(delta.Choices) == 0 || delta.Choices[0].Delta.Content == "" {
			continue
		}
		if err := emit(delta.Choices[0].Delta.Content); err != nil {
			return tokens, err
		}
		tokens++
	}
	if err := scanner.Err(); err != nil {
		return tokens, fmt.Errorf("read completion stream: %w", err)
	}
	return tokens, nil
}

// Close releases the underlying connection.
func (a *AnswerStream) Close() error {
	return a.body.Close()
}

// AnswerSink receives a streamed answer. Begin is called once, after the
// completion stream is accepted and before the first delta.
type AnswerSink interface {
	Begin() error
	Delta(content string) error
}

// DeltaFunc adapts a plain delta callback to an AnswerSink.
type DeltaFunc func(content string) error

// Begin implements AnswerSink.
func (f DeltaFunc) Begin() error { return nil }

// Delta implements AnswerSink.
func (f DeltaFunc) Delta(content string) error { return f(content) }

// StreamResult summarizes one answered chat turn.
type StreamResult struct {
	Answer   string
	Tokens   int
	Opened   bool // the completion stream was accepted and the sink begun
	Fallback bool
	Err      error // upstream failure that caused the fallback, if any
}

// StreamAnswer opens and relays a completion into sink. When the stream cannot be
// opened, nothing reaches the sink and the templated fallback is returned in Answer.
// When an opened stream yields no tokens, the fallback is sent as the only delta.
func (s *AnswerStreamer) StreamAnswer(ctx context.Context, query string, chatCtx domain.ChatContext, sink AnswerSink) StreamResult {
	stream, err := s.Open(ctx, query, chatCtx)
	if err != nil {
		logger.CtxWarn(ctx, "Answer stream unavailable, using fallback: %v", err)
		return StreamResult{Answer: FallbackAnswer(chatCtx), Fallback: true, Err: err}
	}
	defer stream.Close()

	if err := sink.Begin(); err != nil {
		return StreamResult{Answer: FallbackAnswer(chatCtx), Fallback: true, Err: err}
	}

	var answer strings.Builder
	tokens, err := stream.Relay(func(delta string) error {
		answer.WriteString(delta)
		return sink.Delta(delta)
	})
	if tokens > 0 {
		if err != nil {
			logger.CtxWarn(ctx, "Answer stream ended early after %d deltas: %v", tokens, err)
		}
		return StreamResult{Answer: answer.String(), Tokens: tokens, Opened: true, Err: err}
	}

	if err == nil {
		err = domain.NewError(domain.KindStreamUnavailable, "completion stream yielded no tokens")
	} else if !errors.As(err, new(*domain.Error)) {
		err = domain.WrapError(domain.KindStreamUnavailable, err, "completion stream failed")
	}
	logger.CtxWarn(ctx, "Answer stream empty, using fallback: %v", err)

	text := FallbackAnswer(chatCtx)
	if werr := sink.Delta(text); werr != nil {
		err = errors.Join(err, werr)
	}
	return StreamResult{Answer: text, Opened: true, Fallback: true, Err: err}
}

// FallbackAnswer renders a deterministic answer from the top search hit.
func FallbackAnswer(chatCtx domain.ChatContext) string {
	top, ok := chatCtx.TopHit()
	if !ok || strings.TrimSpace(top.Title) == "" {
		return prompts.FallbackNoResults
	}

	typ := "Unknown"
	if len(top.Types) > 0 {
		typ = strings.Join(top.Types, "/")
	}
	answer := fmt.Sprintf(prompts.FallbackHitTemplate, top.Title, top.Number, typ)
	if top.Species != "" {
		answer += fmt.Sprintf(prompts.FallbackSpeciesTemplate, top.Species)
	}
	return answer
}
