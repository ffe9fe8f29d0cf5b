package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultMessageLimit is the page size used when listing thread messages.
const DefaultMessageLimit = 20

// messageRequest is the body of a message append. The content is sent as a
// list of typed blocks rather than a bare string.
type messageRequest struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CreateThread creates an empty conversation thread.
func (c *Client) CreateThread(ctx context.Context) (openai.Thread, error) {
	var thread openai.Thread
	payload, err := c.Call(ctx, http.MethodPost, "/threads", openai.ThreadRequest{}, true)
	if err != nil {
		return thread, err
	}
	if err := decode(payload, &thread); err != nil {
		return thread, err
	}
	if thread.ID == "" {
		return thread, malformed("thread", "an id", payload)
	}
	return thread, nil
}

// AddUserMessage appends a user-authored text message to a thread.
func (c *Client) AddUserMessage(ctx context.Context, threadID, text string) (openai.Message, error) {
	var msg openai.Message
	body := messageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: []contentPart{{Type: "text", Text: text}},
	}
	payload, err := c.Call(ctx, http.MethodPost, threadPath(threadID, "messages"), body, true)
	if err != nil {
		return msg, err
	}
	if err := decode(payload, &msg); err != nil {
		return msg, err
	}
	return msg, nil
}

// CreateRun starts processing of a thread by the configured assistant.
func (c *Client) CreateRun(ctx context.Context, threadID string) (openai.Run, error) {
	var run openai.Run
	body := openai.RunRequest{AssistantID: c.assistantID}
	payload, err := c.Call(ctx, http.MethodPost, threadPath(threadID, "runs"), body, true)
	if err != nil {
		return run, err
	}
	if err := decode(payload, &run); err != nil {
		return run, err
	}
	if run.ID == "" {
		return run, malformed("run", "an id", payload)
	}
	return run, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (openai.Run, error) {
	var run openai.Run
	path := threadPath(threadID, "runs") + "/" + url.PathEscape(runID)
	payload, err := c.Call(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return run, err
	}
	if err := decode(payload, &run); err != nil {
		return run, err
	}
	if run.Status == "" {
		return run, malformed("run", "a status", payload)
	}
	return run, nil
}

// ListMessages returns up to limit messages of a thread, most recent first.
// A non-positive limit falls back to DefaultMessageLimit.
func (c *Client) ListMessages(ctx context.Context, threadID string, limit int) (openai.MessagesList, error) {
	var list openai.MessagesList
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	query := url.Values{}
	query.Set("order", "desc")
	query.Set("limit", strconv.Itoa(limit))

	payload, err := c.Call(ctx, http.MethodGet, threadPath(threadID, "messages")+"?"+query.Encode(), nil, true)
	if err != nil {
		return list, err
	}
	if err := decode(payload, &list); err != nil {
		return list, err
	}
	return list, nil
}

func threadPath(threadID, collection string) string {
	return "/threads/" + url.PathEscape(threadID) + "/" + collection
}

func decode(payload json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return &APIError{
			Message:    fmt.Sprintf("unexpected response from upstream: %v", err),
			StatusCode: http.StatusBadGateway,
			Details:    payload,
		}
	}
	return nil
}

func malformed(kind, missing string, payload json.RawMessage) error {
	return &APIError{
		Message:    fmt.Sprintf("upstream returned a %s without %s", kind, missing),
		StatusCode: http.StatusBadGateway,
		Details:    payload,
	}
}
