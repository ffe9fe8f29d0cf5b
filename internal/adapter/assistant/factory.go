package assistant

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/relay/internal/config"
)

// ModeMock selects the in-memory upstream.
const ModeMock = "MOCK"

// NewAPI creates the upstream client selected by cfg.Mode. With
// RELAY_MODE=MOCK it returns a MockClient; otherwise a real Client.
func NewAPI(cfg *config.Config, log zerolog.Logger) API {
	if strings.EqualFold(cfg.Mode, ModeMock) {
		log.Warn().Msg("RELAY_MODE=MOCK detected, using in-memory assistant API")
		return NewMockClient()
	}

	return NewClient(cfg.BaseURL, cfg.APIKey, cfg.AssistantID, cfg.UpstreamTimeout,
		WithBetaHeader(cfg.BetaHeader),
		WithLogger(log.With().Str("component", "assistant").Logger()),
	)
}
