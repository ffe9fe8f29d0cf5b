package service

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/xiaot623/gogo/relay/internal/policy"
)

// ProgressKind identifies a step of the send sequence.
type ProgressKind string

const (
	ProgressThreadCreated ProgressKind = "thread.created"
	ProgressRunCreated    ProgressKind = "run.created"
	ProgressRunStatus     ProgressKind = "run.status"
)

// Progress is reported while a message is being relayed.
type Progress struct {
	Kind     ProgressKind
	ThreadID string
	RunID    string
	Status   openai.RunStatus
	Attempt  int
}

// SendRequest is a message to relay. An empty ThreadID starts a new thread.
type SendRequest struct {
	ThreadID string
	Message  string
	// OnProgress, when set, is called synchronously for each step.
	OnProgress func(Progress)
}

// SendResult is the assistant's answer. Reply is empty when the assistant
// produced no text.
type SendResult struct {
	ThreadID  string
	RunID     string
	Reply     string
	NewThread bool
	Attempts  int
}

// StartConversation creates a new upstream thread and returns its id.
func (s *Service) StartConversation(ctx context.Context) (string, error) {
	thread, err := s.api.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	s.log.Info().Str("thread_id", thread.ID).Msg("thread created")
	return thread.ID, nil
}

// Send relays one user message and waits for the assistant's reply:
// create thread if needed, append message, create run, poll it, then read
// the latest assistant text.
func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	report := req.OnProgress
	if report == nil {
		report = func(Progress) {}
	}

	if err := s.admit(ctx, req); err != nil {
		return nil, err
	}

	result := &SendResult{ThreadID: req.ThreadID}
	if result.ThreadID == "" {
		threadID, err := s.StartConversation(ctx)
		if err != nil {
			return nil, err
		}
		result.ThreadID = threadID
		result.NewThread = true
		report(Progress{Kind: ProgressThreadCreated, ThreadID: threadID})
	}

	if _, err := s.api.AddUserMessage(ctx, result.ThreadID, req.Message); err != nil {
		return nil, err
	}

	run, err := s.api.CreateRun(ctx, result.ThreadID)
	if err != nil {
		return nil, err
	}
	result.RunID = run.ID
	report(Progress{Kind: ProgressRunCreated, ThreadID: result.ThreadID, RunID: run.ID, Status: run.Status})

	_, err = s.WaitForRun(ctx, result.ThreadID, run.ID, func(r openai.Run, attempt int) {
		result.Attempts = attempt
		report(Progress{Kind: ProgressRunStatus, ThreadID: result.ThreadID, RunID: run.ID, Status: r.Status, Attempt: attempt})
	})
	if err != nil {
		return nil, err
	}

	list, err := s.api.ListMessages(ctx, result.ThreadID, s.messageLimit)
	if err != nil {
		return nil, err
	}
	result.Reply = ExtractReply(list.Messages)

	s.log.Info().
		Str("thread_id", result.ThreadID).
		Str("run_id", result.RunID).
		Int("attempts", result.Attempts).
		Bool("empty_reply", result.Reply == "").
		Msg("run completed")
	return result, nil
}

func (s *Service) admit(ctx context.Context, req SendRequest) error {
	if s.policyEngine == nil {
		return nil
	}
	verdict, err := s.policyEngine.Evaluate(ctx, policy.Input{
		Message:   req.Message,
		ThreadID:  req.ThreadID,
		NewThread: req.ThreadID == "",
	})
	if err != nil {
		return errors.Wrap(err, "message policy")
	}
	if !verdict.Allowed() {
		msg := "message rejected by policy"
		if verdict.Reason != "" {
			msg = fmt.Sprintf("%s: %s", msg, verdict.Reason)
		}
		return &InputError{Message: msg}
	}
	return nil
}
