package service

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/xiaot623/gogo/relay/internal/adapter/assistant"
)

// ErrRunTimeout is returned when a run is still pending after the last poll.
var ErrRunTimeout = errors.New("timed out waiting for the assistant run to complete")

// RunFailedError is returned when upstream reports a run as failed,
// cancelled or expired.
type RunFailedError struct {
	RunID   string
	Status  openai.RunStatus
	Message string
}

func (e *RunFailedError) Error() string {
	return e.Message
}

func newRunFailedError(run openai.Run) *RunFailedError {
	msg := fmt.Sprintf("run ended with status %s", run.Status)
	if run.LastError != nil && run.LastError.Message != "" {
		msg = run.LastError.Message
	}
	return &RunFailedError{RunID: run.ID, Status: run.Status, Message: msg}
}

// InputError reports a message that must not be relayed. No upstream call
// has been made when it is returned.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// Classify maps a relay error to the status a caller should see and the
// upstream diagnostic payload, if any. Upstream errors keep their status;
// rejected input is 400; everything else is 500.
func Classify(err error) (int, json.RawMessage) {
	var apiErr *assistant.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, apiErr.Details
	}
	var inputErr *InputError
	if errors.As(err, &inputErr) {
		return http.StatusBadRequest, nil
	}
	return http.StatusInternalServerError, nil
}
