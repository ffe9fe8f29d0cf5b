package assistant

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/relay/internal/config"
)

func TestMockClientConversation(t *testing.T) {
	ctx := context.Background()
	m := NewMockClient()
	m.CompleteAfter = 3
	m.Reply = func(text string) string { return "echo: " + text }

	thread, err := m.CreateThread(ctx)
	require.NoError(t, err)
	_, err = m.AddUserMessage(ctx, thread.ID, "hi")
	require.NoError(t, err)
	run, err := m.CreateRun(ctx, thread.ID)
	require.NoError(t, err)

	var statuses []openai.RunStatus
	for i := 0; i < 3; i++ {
		r, err := m.GetRun(ctx, thread.ID, run.ID)
		require.NoError(t, err)
		statuses = append(statuses, r.Status)
	}
	assert.Equal(t, []openai.RunStatus{openai.RunStatusQueued, openai.RunStatusInProgress, openai.RunStatusCompleted}, statuses)

	list, err := m.ListMessages(ctx, thread.ID, 20)
	require.NoError(t, err)
	require.Len(t, list.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleAssistant, list.Messages[0].Role)
	assert.Equal(t, "echo: hi", list.Messages[0].Content[0].Text.Value)
	assert.Equal(t, 3, m.Calls("GetRun"))
}

func TestMockClientFailedRun(t *testing.T) {
	ctx := context.Background()
	m := NewMockClient()
	m.FinalStatus = openai.RunStatusFailed
	m.FailMessage = "boom"

	thread, _ := m.CreateThread(ctx)
	run, _ := m.CreateRun(ctx, thread.ID)
	r, err := m.GetRun(ctx, thread.ID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, openai.RunStatusFailed, r.Status)
	require.NotNil(t, r.LastError)
	assert.Equal(t, "boom", r.LastError.Message)
}

func TestMockClientUnknownThread(t *testing.T) {
	m := NewMockClient()
	_, err := m.AddUserMessage(context.Background(), "thread_missing", "hi")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestMockClientUnknownThreadWithQuote(t *testing.T) {
	m := NewMockClient()
	_, err := m.AddUserMessage(context.Background(), `thread_"x`, "hi")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, json.Valid(apiErr.Details))
	assert.JSONEq(t, `{"error":{"message":"No thread found with id 'thread_\"x'.","type":"invalid_request_error"}}`, string(apiErr.Details))
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "héll...", truncate("héllo", 4))
	assert.Equal(t, "日本...", truncate("日本語", 2))
}

func TestNewAPIMode(t *testing.T) {
	cfg := &config.Config{Mode: "mock"}
	_, ok := NewAPI(cfg, zerolog.Nop()).(*MockClient)
	assert.True(t, ok)

	cfg = &config.Config{BaseURL: "http://localhost", APIKey: "k", AssistantID: "a"}
	_, ok = NewAPI(cfg, zerolog.Nop()).(*Client)
	assert.True(t, ok)
}
