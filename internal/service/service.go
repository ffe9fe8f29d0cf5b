// Package service implements the assistant relay: thread handling, run
// polling and reply extraction on top of the upstream Assistants API.
package service

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/relay/internal/adapter/assistant"
	"github.com/xiaot623/gogo/relay/internal/config"
	"github.com/xiaot623/gogo/relay/internal/policy"
)

const (
	DefaultPollAttempts = 40
	DefaultPollInterval = 400 * time.Millisecond
)

// Service relays chat messages to the assistant. It keeps no per-request
// state; threads and runs live upstream.
type Service struct {
	api          assistant.API
	policyEngine *policy.Engine
	pollAttempts int
	pollInterval time.Duration
	messageLimit int
	log          zerolog.Logger
}

// New creates the relay service. policyEngine may be nil, in which case
// every well-formed message is relayed. Zero poll settings in cfg (or a nil
// cfg) fall back to DefaultPollAttempts and DefaultPollInterval; config.Load
// never produces them.
func New(api assistant.API, policyEngine *policy.Engine, cfg *config.Config, log zerolog.Logger) *Service {
	s := &Service{
		api:          api,
		policyEngine: policyEngine,
		pollAttempts: DefaultPollAttempts,
		pollInterval: DefaultPollInterval,
		messageLimit: assistant.DefaultMessageLimit,
		log:          log,
	}
	if cfg != nil {
		if cfg.PollAttempts > 0 {
			s.pollAttempts = cfg.PollAttempts
		}
		if cfg.PollInterval > 0 {
			s.pollInterval = cfg.PollInterval
		}
		if cfg.MessageLimit > 0 {
			s.messageLimit = cfg.MessageLimit
		}
	}
	return s
}
