package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/pokedex/internal/domain"
	"github.com/timmy/pokedex/internal/logger"
)

// ErrorResponse is the failure envelope shared by every endpoint.
type ErrorResponse struct {
	Success bool             `json:"success"`
	Error   domain.ErrorKind `json:"error"`
	Detail  string           `json:"detail,omitempty"`
}

// writeError maps err to its HTTP status and writes the failure envelope.
func writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := domain.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		logger.CtxError(c.Request.Context(), "Request failed: kind=%s, error=%v", kind, err)
	} else {
		logger.CtxWarn(c.Request.Context(), "Request rejected: kind=%s, error=%v", kind, err)
	}
	c.JSON(status, ErrorResponse{Success: false, Error: kind, Detail: err.Error()})
}

// badRequest writes a validation failure for a request that could not be decoded.
func badRequest(c *gin.Context, err error) {
	writeError(c, domain.NewError(domain.KindValidation, "Invalid request: %v", err))
}

func wantsEventStream(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}

// eventStream writes server-sent event frames to a Gin response.
type eventStream struct {
	c *gin.Context
}

// startEventStream sets the streaming headers and commits a 200 status.
func startEventStream(c *gin.Context) *eventStream {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()
	return &eventStream{c: c}
}

// Send writes v as one JSON data frame and flushes it.
func (s *eventStream) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.write(string(data))
}

// Done writes the stream terminator.
func (s *eventStream) Done() error {
	return s.write("[DONE]")
}

func (s *eventStream) write(data string) error {
	if _, err := fmt.Fprintf(s.c.Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return nil
}
