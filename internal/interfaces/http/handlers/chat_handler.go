// Package handlers implements the HTTP surface of the chat pipeline.
package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ccs/internal/application/dto"
	appservice "github.com/turtacn/ccs/internal/application/service"
	"github.com/turtacn/ccs/pkg/constants"
	ccserrors "github.com/turtacn/ccs/pkg/errors"
	"github.com/turtacn/ccs/pkg/logger"
)

// ChatService is the application surface the handler needs. Satisfied by
// appservice.ChatAppService.
type ChatService interface {
	HandleTurn(ctx context.Context, cmd appservice.TurnCommand) (*appservice.TurnResult, error)
	Greeting(ctx context.Context, tenantSlug, personaKey string) (*dto.GreetingResponse, error)
	Transcript(ctx context.Context, sessionID string) (*dto.MessagesResponse, error)
}

// ChatHandler exposes the chat pipeline over HTTP.
type ChatHandler struct {
	chat ChatService
	log  logger.Logger
}

// NewChatHandler creates the handler.
func NewChatHandler(chat ChatService, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chat: chat,
		log:  log.WithComponent("chat_handler"),
	}
}

// Chat handles POST /chat. A turn blocked by the risk classifier is still a
// 200: it is a policy outcome the widget renders like any other reply.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.SendError(c, ccserrors.ErrInvalidRequest(err.Error()))
		return
	}

	requestID := c.GetString(string(constants.ContextKeyRequestID))
	result, err := h.chat.HandleTurn(c.Request.Context(), appservice.TurnCommand{
		ClientKey: c.ClientIP(),
		RequestID: requestID,
		Request:   req,
	})
	if result != nil && result.Gate.Limit > 0 {
		dto.SetRateLimitHeaders(c, result.Gate.Limit, result.Gate.Remaining)
	}
	if err != nil {
		dto.SendError(c, err)
		return
	}

	setTimingHeaders(c, result.Response.Metrics)
	dto.SendSuccess(c, result.Response)
}

// Greeting handles GET /greeting?tenantSlug=&personaKey=.
func (h *ChatHandler) Greeting(c *gin.Context) {
	slug := c.Query("tenantSlug")
	if slug == "" {
		dto.SendError(c, ccserrors.ErrMissingRequiredParameter("tenantSlug"))
		return
	}

	greeting, err := h.chat.Greeting(c.Request.Context(), slug, c.Query("personaKey"))
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, greeting)
}

// Messages handles GET /messages?sessionId=.
func (h *ChatHandler) Messages(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		dto.SendError(c, ccserrors.ErrMissingRequiredParameter("sessionId"))
		return
	}

	transcript, err := h.chat.Transcript(c.Request.Context(), sessionID)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, transcript)
}

// setTimingHeaders mirrors the metrics body so monitoring proxies can read
// latencies without parsing JSON.
func setTimingHeaders(c *gin.Context, m dto.TurnMetrics) {
	c.Header("X-Total-Time-Ms", strconv.FormatInt(m.TotalTimeMs, 10))
	c.Header("X-DB-Time-Ms", strconv.FormatInt(m.DBTimeMs, 10))
	c.Header("X-Generation-Time-Ms", strconv.FormatInt(m.GenerationTimeMs, 10))
	c.Header("X-First-Token-Ms", strconv.FormatInt(m.TimeToFirstTokenMs, 10))
}
