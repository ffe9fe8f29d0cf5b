package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/relay/internal/adapter/assistant"
	"github.com/xiaot623/gogo/relay/internal/config"
	"github.com/xiaot623/gogo/relay/internal/service"
)

func newTestHandler(t *testing.T) (*Handler, *assistant.MockClient) {
	t.Helper()
	mock := assistant.NewMockClient()
	cfg := &config.Config{PollAttempts: 40, PollInterval: time.Millisecond, MessageLimit: 20}
	svc := service.New(mock, nil, cfg, zerolog.Nop())
	return NewHandler(svc, zerolog.Nop()), mock
}

func doJSON(t *testing.T, handler echo.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestStartChat(t *testing.T) {
	h, mock := newTestHandler(t)

	rec := doJSON(t, h.StartChat, "/chat/start", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StartChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ThreadID)
	assert.Equal(t, 1, mock.Calls("CreateThread"))
}

func TestStartChatTwiceGivesDistinctThreads(t *testing.T) {
	h, _ := newTestHandler(t)

	var ids []string
	for i := 0; i < 2; i++ {
		rec := doJSON(t, h.StartChat, "/chat/start", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp StartChatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		ids = append(ids, resp.ThreadID)
	}
	assert.NotEqual(t, ids[0], ids[1])
}

func TestStartChatUpstreamError(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.Err = &assistant.APIError{
		Message:    "Incorrect API key provided",
		StatusCode: http.StatusUnauthorized,
		Details:    json.RawMessage(`{"error":{"message":"Incorrect API key provided"}}`),
	}

	rec := doJSON(t, h.StartChat, "/chat/start", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "Incorrect API key provided", resp.Error)
	assert.JSONEq(t, `{"error":{"message":"Incorrect API key provided"}}`, string(resp.Details))
}

func TestSendChatRejectsInvalidMessage(t *testing.T) {
	bodies := map[string]string{
		"missing":   `{"threadId":"thread_1"}`,
		"number":    `{"message":42}`,
		"null":      `{"message":null}`,
		"object":    `{"message":{"text":"hi"}}`,
		"empty":     ``,
		"malformed": `{"message":`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			h, mock := newTestHandler(t)

			rec := doJSON(t, h.SendChat, "/chat/send", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec).Error)
			assert.Equal(t, 0, mock.TotalCalls())
		})
	}
}

func TestSendChatNewThread(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.Reply = func(text string) string { return "hello" }

	rec := doJSON(t, h.SendChat, "/chat/send", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SendChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ThreadID)
	assert.Equal(t, "hello", resp.Reply)
	assert.Equal(t, 1, mock.Calls("CreateThread"))
	assert.Equal(t, 1, mock.Calls("AddUserMessage"))
}

func TestSendChatNonStringThreadIDStartsThread(t *testing.T) {
	h, mock := newTestHandler(t)

	rec := doJSON(t, h.SendChat, "/chat/send", `{"threadId":123,"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, mock.Calls("CreateThread"))
}

func TestSendChatExistingThread(t *testing.T) {
	h, mock := newTestHandler(t)

	start := doJSON(t, h.StartChat, "/chat/start", "")
	var started StartChatResponse
	require.NoError(t, json.Unmarshal(start.Body.Bytes(), &started))

	rec := doJSON(t, h.SendChat, "/chat/send", `{"threadId":"`+started.ThreadID+`","message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SendChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, started.ThreadID, resp.ThreadID)
	assert.Equal(t, 1, mock.Calls("CreateThread"))
}

func TestSendChatEmptyReply(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.Reply = func(string) string { return "" }

	rec := doJSON(t, h.SendChat, "/chat/send", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"threadId":"`+extractThreadID(t, rec)+`","reply":""}`, rec.Body.String())
}

func TestSendChatRunFailed(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.FinalStatus = openai.RunStatusFailed
	mock.FailMessage = "boom"

	rec := doJSON(t, h.SendChat, "/chat/send", `{"message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "boom", decodeError(t, rec).Error)
	assert.Equal(t, 1, mock.Calls("GetRun"))
}

func TestSendChatRunTimeout(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.FinalStatus = openai.RunStatusInProgress

	rec := doJSON(t, h.SendChat, "/chat/send", `{"message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, service.ErrRunTimeout.Error(), decodeError(t, rec).Error)
	assert.Equal(t, 40, mock.Calls("GetRun"))
	assert.Equal(t, 0, mock.Calls("ListMessages"))
}

func TestSendChatUpstreamStatusPassthrough(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h.SendChat, "/chat/send", `{"threadId":"thread_missing","message":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "No thread found with id 'thread_missing'.", resp.Error)
	assert.NotEmpty(t, resp.Details)
}

func TestSendChatUnknownThreadWithQuote(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h.SendChat, "/chat/send", `{"threadId":"thread_\"x","message":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, `No thread found with id 'thread_"x'.`, resp.Error)
	assert.True(t, json.Valid(resp.Details))
}

func TestHealth(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Health(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func extractThreadID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp SendChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ThreadID
}
