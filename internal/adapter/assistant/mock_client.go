package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// MockClient is an in-memory implementation of API. Runs report
// queued/in_progress until the CompleteAfter-th status read, then switch to
// FinalStatus. A completed run appends an assistant reply to its thread.
type MockClient struct {
	// CompleteAfter is the GetRun call (per run) that reports FinalStatus.
	// Values below 1 mean the first read.
	CompleteAfter int
	// FinalStatus defaults to completed. A non-terminal value keeps the run
	// pending forever.
	FinalStatus openai.RunStatus
	// FailMessage is reported as last_error.message for failed runs.
	FailMessage string
	// Reply builds the assistant answer from the user's text.
	Reply func(text string) string
	// Err, when set, is returned by every operation.
	Err error

	mu      sync.Mutex
	threads map[string]*mockThread
	calls   map[string]int
}

type mockThread struct {
	messages []openai.Message
	runs     map[string]*mockRun
}

type mockRun struct {
	reads    int
	lastUser string
}

// NewMockClient creates a new mock Assistants API.
func NewMockClient() *MockClient {
	return &MockClient{
		threads: make(map[string]*mockThread),
		calls:   make(map[string]int),
	}
}

// Ensure MockClient implements API interface.
var _ API = (*MockClient)(nil)

// Calls returns how many times the named operation was invoked.
func (m *MockClient) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls returns the number of operations invoked so far.
func (m *MockClient) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func (m *MockClient) CreateThread(ctx context.Context) (openai.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["CreateThread"]++
	if m.Err != nil {
		return openai.Thread{}, m.Err
	}

	id := "thread_" + uuid.New().String()
	m.threads[id] = &mockThread{runs: make(map[string]*mockRun)}
	return openai.Thread{ID: id, Object: "thread"}, nil
}

func (m *MockClient) AddUserMessage(ctx context.Context, threadID, text string) (openai.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["AddUserMessage"]++
	if m.Err != nil {
		return openai.Message{}, m.Err
	}

	thread, err := m.thread(threadID)
	if err != nil {
		return openai.Message{}, err
	}
	msg := newTextMessage(threadID, openai.ChatMessageRoleUser, text)
	thread.messages = append(thread.messages, msg)
	return msg, nil
}

func (m *MockClient) CreateRun(ctx context.Context, threadID string) (openai.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["CreateRun"]++
	if m.Err != nil {
		return openai.Run{}, m.Err
	}

	thread, err := m.thread(threadID)
	if err != nil {
		return openai.Run{}, err
	}
	run := &mockRun{}
	for i := len(thread.messages) - 1; i >= 0; i-- {
		if thread.messages[i].Role == openai.ChatMessageRoleUser {
			run.lastUser = firstText(thread.messages[i])
			break
		}
	}
	id := "run_" + uuid.New().String()[:8]
	thread.runs[id] = run
	return openai.Run{ID: id, Object: "thread.run", ThreadID: threadID, Status: openai.RunStatusQueued}, nil
}

func (m *MockClient) GetRun(ctx context.Context, threadID, runID string) (openai.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["GetRun"]++
	if m.Err != nil {
		return openai.Run{}, m.Err
	}

	thread, err := m.thread(threadID)
	if err != nil {
		return openai.Run{}, err
	}
	run, ok := thread.runs[runID]
	if !ok {
		return openai.Run{}, notFound("run", runID)
	}

	run.reads++
	result := openai.Run{ID: runID, Object: "thread.run", ThreadID: threadID}

	completeAfter := m.CompleteAfter
	if completeAfter < 1 {
		completeAfter = 1
	}
	if run.reads < completeAfter {
		result.Status = openai.RunStatusQueued
		if run.reads > 1 {
			result.Status = openai.RunStatusInProgress
		}
		return result, nil
	}

	final := m.FinalStatus
	if final == "" {
		final = openai.RunStatusCompleted
	}
	result.Status = final

	switch final {
	case openai.RunStatusCompleted:
		if run.reads == completeAfter {
			thread.messages = append(thread.messages, newTextMessage(threadID, openai.ChatMessageRoleAssistant, m.reply(run.lastUser)))
		}
	case openai.RunStatusFailed:
		if m.FailMessage != "" {
			result.LastError = &openai.RunLastError{Code: "server_error", Message: m.FailMessage}
		}
	}
	return result, nil
}

func (m *MockClient) ListMessages(ctx context.Context, threadID string, limit int) (openai.MessagesList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["ListMessages"]++
	if m.Err != nil {
		return openai.MessagesList{}, m.Err
	}

	thread, err := m.thread(threadID)
	if err != nil {
		return openai.MessagesList{}, err
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}

	list := openai.MessagesList{Object: "list"}
	for i := len(thread.messages) - 1; i >= 0 && len(list.Messages) < limit; i-- {
		list.Messages = append(list.Messages, thread.messages[i])
	}
	list.HasMore = len(thread.messages) > limit
	return list, nil
}

func (m *MockClient) thread(id string) (*mockThread, error) {
	thread, ok := m.threads[id]
	if !ok {
		return nil, notFound("thread", id)
	}
	return thread, nil
}

func (m *MockClient) reply(text string) string {
	if m.Reply != nil {
		return m.Reply(text)
	}
	if text == "" {
		return "[MOCK] This is a mock response from the assistant."
	}
	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(text, 100))
}

func newTextMessage(threadID, role, text string) openai.Message {
	return openai.Message{
		ID:       "msg_" + uuid.New().String()[:8],
		Object:   "thread.message",
		ThreadID: threadID,
		Role:     role,
		Content: []openai.MessageContent{
			{Type: "text", Text: &openai.MessageText{Value: text}},
		},
	}
}

func firstText(msg openai.Message) string {
	for _, content := range msg.Content {
		if content.Type == "text" && content.Text != nil {
			return content.Text.Value
		}
	}
	return ""
}

func notFound(kind, id string) *APIError {
	msg := fmt.Sprintf("No %s found with id '%s'.", kind, id)
	payload, _ := json.Marshal(map[string]interface{}{
		"error": map[string]string{
			"message": msg,
			"type":    "invalid_request_error",
		},
	})
	return &APIError{
		Message:    msg,
		StatusCode: http.StatusNotFound,
		Details:    payload,
	}
}

// truncate shortens s to at most maxLen runes.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
