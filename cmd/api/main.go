package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/LUMINOUX-HEHE/DPR/internal/config"
	httpapi "github.com/LUMINOUX-HEHE/DPR/internal/http"
	"github.com/LUMINOUX-HEHE/DPR/internal/logging"
)

var version = "dev"

var listenFlag string

var rootCmd = &cobra.Command{
	Use:   "prasthav-api",
	Short: "Prasthav-AI DPR review console",
	Long: `Serves the DPR review console: login, dashboard, DPR management and
evaluation views, backed by the DPR analysis API.

Configuration is read from APP_* environment variables, with defaults from
./prasthav.env (or APP_CONFIG_FILE).`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.Flags().StringVar(&listenFlag, "listen", "", "Listen address (overrides APP_LISTEN_ADDR)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg := config.FromEnv()
	if listenFlag != "" {
		cfg.ListenAddr = listenFlag
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	srv, err := httpapi.NewServer(cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize server")
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("version", version).Str("addr", cfg.ListenAddr).Str("env", cfg.Env).Msg("starting API server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			_ = srv.Shutdown(context.Background())
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	return nil
}
