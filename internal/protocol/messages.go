// Package protocol defines the WebSocket message protocol between chat
// clients and the relay.
package protocol

import "encoding/json"

// Message types from client to relay
const (
	TypeChatStart = "chat.start"
	TypeChatSend  = "chat.send"
)

// Message types from relay to client
const (
	TypeThreadCreated = "thread.created"
	TypeRunCreated    = "run.created"
	TypeRunStatus     = "run.status"
	TypeReply         = "reply"
	TypeError         = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
}

// ChatStartMessage asks the relay for a new thread.
type ChatStartMessage struct {
	BaseMessage
}

// ChatSendMessage relays a user message. ThreadID and Message are decoded
// loosely; a non-string ThreadID is treated as absent and a non-string
// Message is rejected.
type ChatSendMessage struct {
	BaseMessage
	ThreadID interface{} `json:"threadId,omitempty"`
	Message  interface{} `json:"message"`
}

// ThreadCreatedMessage is sent when the relay created a thread.
type ThreadCreatedMessage struct {
	BaseMessage
	ThreadID string `json:"threadId"`
}

// RunStatusMessage reports run creation and every polled status.
type RunStatusMessage struct {
	BaseMessage
	ThreadID string `json:"threadId"`
	RunID    string `json:"runId"`
	Status   string `json:"status"`
	Attempt  int    `json:"attempt,omitempty"`
}

// ReplyMessage carries the assistant's answer.
type ReplyMessage struct {
	BaseMessage
	ThreadID string `json:"threadId"`
	Reply    string `json:"reply"`
}

// ErrorMessage reports a failed request. Status mirrors the HTTP status the
// same failure would produce on /chat/send.
type ErrorMessage struct {
	BaseMessage
	Status  int             `json:"status"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}
