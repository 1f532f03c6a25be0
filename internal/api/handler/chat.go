package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/pokedex/internal/domain"
	"github.com/timmy/pokedex/internal/logger"
	"github.com/timmy/pokedex/internal/service"
)

// ChatHandler answers questions about indexed documents as a token stream.
type ChatHandler struct {
	aggregator *service.ContextAggregator
	streamer   *service.AnswerStreamer
}

// NewChatHandler creates a new chat handler.
// Parameters:
//   - aggregator: gathers search hits and passages for a query.
//   - streamer: streams the completion, falling back to a templated answer.
// Returns:
//   - *ChatHandler: initialized handler.
func NewChatHandler(aggregator *service.ContextAggregator, streamer *service.AnswerStreamer) *ChatHandler {
	return &ChatHandler{aggregator: aggregator, streamer: streamer}
}

// ChatRequest represents the chat API request.
type ChatRequest struct {
	Query   string               `json:"query"`
	Context string               `json:"context"`
	History []domain.ChatMessage `json:"history"`
}

// ChatFallbackResponse is returned instead of a stream when the completion API is unreachable.
type ChatFallbackResponse struct {
	Error    domain.ErrorKind `json:"error"`
	Detail   string           `json:"detail"`
	Answer   string           `json:"answer"`
	Fallback bool             `json:"fallback"`
}

type chatDelta struct {
	Content string `json:"content"`
}

type chatChoice struct {
	Delta chatDelta `json:"delta"`
}

// chatFrame is one streamed delta in completion chunk shape.
type chatFrame struct {
	Choices []chatChoice `json:"choices"`
}

func deltaFrame(content string) chatFrame {
	return chatFrame{Choices: []chatChoice{{Delta: chatDelta{Content: content}}}}
}

// Chat handles POST /api/v1/chat.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes an event stream, or JSON when no stream could be opened).
func (h *ChatHandler) Chat(c *gin.Context) {
	ctx := c.Request.Context()

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(c, domain.NewError(domain.KindValidation, "query is required"))
		return
	}

	history := domain.TrimHistory(req.History, domain.MaxHistoryTurns)
	chatCtx := h.aggregator.GatherContext(ctx, req.Query, history)
	chatCtx.Supplied = strings.TrimSpace(req.Context)

	logger.With(logger.Fields{
		logger.FieldCount: len(chatCtx.SearchHits),
	}).Info(ctx, "Chat context gathered: query=%q, passages=%d, history=%d",
		req.Query, len(chatCtx.Passages), len(chatCtx.History))

	sink := &chatSink{c: c}
	res := h.streamer.StreamAnswer(ctx, req.Query, chatCtx, sink)
	if !res.Opened {
		detail := ""
		if res.Err != nil {
			detail = res.Err.Error()
		}
		c.JSON(http.StatusOK, ChatFallbackResponse{
			Error:    domain.KindStreamUnavailable,
			Detail:   detail,
			Answer:   res.Answer,
			Fallback: true,
		})
		return
	}
	if err := sink.out.Done(); err != nil {
		logger.CtxWarn(ctx, "Stream terminator write failed: %v", err)
		return
	}

	logger.With(logger.Fields{
		logger.FieldCount: res.Tokens,
	}).Info(ctx, "Answer streamed: fallback=%v", res.Fallback)
}

// chatSink writes answer deltas as event-stream frames. The stream is only
// started once the completion is accepted.
type chatSink struct {
	c   *gin.Context
	out *eventStream
}

func (s *chatSink) Begin() error {
	s.out = startEventStream(s.c)
	return nil
}

func (s *chatSink) Delta(content string) error {
	return s.out.Send(deltaFrame(content))
}
