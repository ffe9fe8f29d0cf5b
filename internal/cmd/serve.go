package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/relay/internal/adapter/assistant"
	"github.com/xiaot623/gogo/relay/internal/config"
	"github.com/xiaot623/gogo/relay/internal/logger"
	"github.com/xiaot623/gogo/relay/internal/policy"
	"github.com/xiaot623/gogo/relay/internal/service"
	httpserver "github.com/xiaot623/gogo/relay/internal/transport/http"
	"github.com/xiaot623/gogo/relay/internal/transport/ws"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnvFiles()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	api := assistant.NewAPI(cfg, log)

	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.MessagePolicyPath, cfg.MaxMessageChars)
	if err != nil {
		return errors.Wrap(err, "initialize message policy")
	}

	svc := service.New(api, policyEngine, cfg, log.With().Str("component", "service").Logger())
	wsServer := ws.NewServer(svc, cfg.WSPingInterval, cfg.WSMaxMessageSize, log.With().Str("component", "ws").Logger())
	e := httpserver.NewServer(svc, wsServer, log)

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(cfg.Addr()); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().
		Str("addr", cfg.Addr()).
		Str("base_url", cfg.BaseURL).
		Str("assistant_id", cfg.AssistantID).
		Msg("assistant relay started")

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "start server")
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down assistant relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown server gracefully")
		return err
	}

	log.Info().Msg("assistant relay stopped")
	return nil
}
