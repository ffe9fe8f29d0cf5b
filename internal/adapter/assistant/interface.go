package assistant

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// API defines the conversation operations the relay needs from upstream.
type API interface {
	// CreateThread creates a new, empty conversation thread.
	CreateThread(ctx context.Context) (openai.Thread, error)

	// AddUserMessage appends a user text message to a thread.
	AddUserMessage(ctx context.Context, threadID, text string) (openai.Message, error)

	// CreateRun asks the configured assistant to process a thread.
	CreateRun(ctx context.Context, threadID string) (openai.Run, error)

	// GetRun reads the status of a run.
	GetRun(ctx context.Context, threadID, runID string) (openai.Run, error)

	// ListMessages lists a thread's messages, most recent first.
	ListMessages(ctx context.Context, threadID string, limit int) (openai.MessagesList, error)
}

// Ensure Client implements API interface.
var _ API = (*Client)(nil)
