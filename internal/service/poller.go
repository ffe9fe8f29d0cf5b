package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/xiaot623/gogo/relay/internal/metrics"
)

// StatusFunc observes every run status read by the poller.
type StatusFunc func(run openai.Run, attempt int)

// WaitForRun polls a run at a fixed interval until it completes, fails, or
// the attempt budget is spent. Terminal failures stop polling at once.
func (s *Service) WaitForRun(ctx context.Context, threadID, runID string, onStatus StatusFunc) (openai.Run, error) {
	var run openai.Run
	for attempt := 1; attempt <= s.pollAttempts; attempt++ {
		var err error
		run, err = s.api.GetRun(ctx, threadID, runID)
		if err != nil {
			return run, err
		}
		if onStatus != nil {
			onStatus(run, attempt)
		}

		switch run.Status {
		case openai.RunStatusCompleted:
			metrics.ObserveRun(string(run.Status), attempt)
			return run, nil
		case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired:
			metrics.ObserveRun(string(run.Status), attempt)
			return run, newRunFailedError(run)
		}

		if err := sleep(ctx, s.pollInterval); err != nil {
			return run, errors.Wrapf(err, "waiting for run %s", runID)
		}
	}

	metrics.ObserveRun("timeout", s.pollAttempts)
	s.log.Warn().
		Str("thread_id", threadID).
		Str("run_id", runID).
		Str("last_status", string(run.Status)).
		Int("attempts", s.pollAttempts).
		Msg("run did not finish in time")
	return run, ErrRunTimeout
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
