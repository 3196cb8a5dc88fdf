package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researchpilot/internal/agent"
	"github.com/mohammad-safakhou/researchpilot/internal/history"
	"github.com/mohammad-safakhou/researchpilot/internal/server"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the SSE research stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			store, err := history.New(ctx, a.cfg.History, a.logger.Named("history"))
			if err != nil {
				return err
			}
			defer store.Close()

			srv, err := server.New(a.cfg.Server, server.Deps{
				Runner:  a.orch,
				History: store,
				Chat:    agent.NewChatAgent(a.provider),
				Metrics: a.metrics,
				Logger:  a.logger.Named("http"),
			})
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("http shutdown", zap.Error(err))
			}
			return <-errCh
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (default server.address)")
	return serve
}
