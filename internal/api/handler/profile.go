package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/pokedex/internal/domain"
	"github.com/timmy/pokedex/internal/logger"
	"github.com/timmy/pokedex/internal/service"
)

// ProfileHandler handles profile submission and removal.
type ProfileHandler struct {
	ingestService *service.IngestService
}

// NewProfileHandler creates a new profile handler.
// Parameters:
//   - ingestService: pipeline that scrapes, normalizes and publishes profiles.
// Returns:
//   - *ProfileHandler: initialized handler.
func NewProfileHandler(ingestService *service.IngestService) *ProfileHandler {
	return &ProfileHandler{ingestService: ingestService}
}

// SubmitProfileRequest represents the profile submission request body.
type SubmitProfileRequest struct {
	URL string `json:"url" binding:"required"`
}

// SubmitProfileResponse represents a successful submission.
type SubmitProfileResponse struct {
	Success bool                      `json:"success"`
	Name    string                    `json:"name"`
	Message string                    `json:"message"`
	Profile domain.NormalizedDocument `json:"profile"`
}

// DeleteProfileRequest represents the profile removal request body.
type DeleteProfileRequest struct {
	DocumentID string `json:"documentId" binding:"required"`
}

// progressEvent is one frame of a streamed submission.
type progressEvent struct {
	Type   string                 `json:"type"`
	Event  *domain.JobEvent       `json:"event,omitempty"`
	Result *SubmitProfileResponse `json:"result,omitempty"`
	Error  domain.ErrorKind       `json:"error,omitempty"`
	Detail string                 `json:"detail,omitempty"`
}

// Submit handles POST /api/v1/profiles.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON, or an event stream when the client accepts one).
func (h *ProfileHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	var req SubmitProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := service.ValidateProfileURL(req.URL); err != nil {
		writeError(c, err)
		return
	}

	logger.CtxInfo(ctx, "Profile submission received: url=%s, client_ip=%s", req.URL, c.ClientIP())

	if wantsEventStream(c) {
		h.streamSubmit(c, req.URL)
		return
	}

	result, err := h.ingestService.SubmitProfile(ctx, req.URL, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSubmitResponse(result))
}

func (h *ProfileHandler) streamSubmit(c *gin.Context, profileURL string) {
	ctx := c.Request.Context()

	type submitOutcome struct {
		result *service.ProfileResult
		err    error
	}
	events := make(chan domain.JobEvent, 8)
	done := make(chan submitOutcome, 1)
	go func() {
		result, err := h.ingestService.SubmitProfile(ctx, profileURL, events)
		done <- submitOutcome{result: result, err: err}
	}()

	stream := startEventStream(c)
	for evt := range events {
		if err := stream.Send(progressEvent{Type: "transition", Event: &evt}); err != nil {
			logger.CtxWarn(ctx, "Progress stream write failed: %v", err)
		}
	}

	outcome := <-done
	final := progressEvent{Type: "result"}
	if outcome.err != nil {
		final = progressEvent{
			Type:   "error",
			Error:  domain.KindOf(outcome.err),
			Detail: outcome.err.Error(),
		}
	} else {
		resp := toSubmitResponse(outcome.result)
		final.Result = &resp
	}
	if err := stream.Send(final); err != nil {
		logger.CtxWarn(ctx, "Progress stream write failed: %v", err)
	}
}

func toSubmitResponse(result *service.ProfileResult) SubmitProfileResponse {
	return SubmitProfileResponse{
		Success: true,
		Name:    result.Name,
		Message: result.Message,
		Profile: result.Document,
	}
}

// Delete handles DELETE /api/v1/profiles.
func (h *ProfileHandler) Delete(c *gin.Context) {
	var req DeleteProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.ingestService.RemoveDocument(c.Request.Context(), req.DocumentID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"documentId": req.DocumentID,
	})
}
