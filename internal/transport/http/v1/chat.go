package v1

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/relay/internal/service"
)

// SendChatRequest is the body of POST /chat/send. Fields are decoded loosely
// so that wrong JSON types can be reported instead of failing the bind.
type SendChatRequest struct {
	ThreadID interface{} `json:"threadId"`
	Message  interface{} `json:"message"`
}

// SendChatResponse is returned by POST /chat/send.
type SendChatResponse struct {
	ThreadID string `json:"threadId"`
	Reply    string `json:"reply"`
}

// StartChatResponse is returned by POST /chat/start.
type StartChatResponse struct {
	ThreadID string `json:"threadId"`
}

// ErrorResponse is the body of every failed chat call.
type ErrorResponse struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

// StartChat creates a new conversation thread.
// POST /chat/start
func (h *Handler) StartChat(c echo.Context) error {
	ctx := context.WithoutCancel(c.Request().Context())

	threadID, err := h.service.StartConversation(ctx)
	if err != nil {
		_, details := service.Classify(err)
		h.log.Error().Err(err).Str("request_id", requestID(c)).Msg("start chat failed")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Details: details})
	}

	return c.JSON(http.StatusOK, StartChatResponse{ThreadID: threadID})
}

// SendChat relays a message and returns the assistant's reply.
// POST /chat/send
func (h *Handler) SendChat(c echo.Context) error {
	var req SendChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	message, ok := req.Message.(string)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message is required and must be a string"})
	}
	threadID, _ := req.ThreadID.(string)

	// The relay finishes the sequence even if the caller goes away.
	ctx := context.WithoutCancel(c.Request().Context())

	result, err := h.service.Send(ctx, service.SendRequest{
		ThreadID: threadID,
		Message:  message,
	})
	if err != nil {
		status, details := service.Classify(err)
		h.log.Error().
			Err(err).
			Int("status", status).
			Str("request_id", requestID(c)).
			Str("thread_id", threadID).
			Msg("send chat failed")
		return c.JSON(status, ErrorResponse{Error: err.Error(), Details: details})
	}

	return c.JSON(http.StatusOK, SendChatResponse{
		ThreadID: result.ThreadID,
		Reply:    result.Reply,
	})
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
