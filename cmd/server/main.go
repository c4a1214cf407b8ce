package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/netsketch/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd(run).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the server command. Flags start from the environment
// configuration and override it when set; runFn receives the result.
func newRootCmd(runFn func(context.Context, server.Config) error) *cobra.Command {
	cfg := server.NewConfigFromEnv()

	cmd := &cobra.Command{
		Use:   "server",
		Short: "NetSketch collaborative drawing server",
		Long: `Server accepts drawing clients over TCP and keeps one shared canvas.

Every accepted change is broadcast to all connected clients in the same
order. With --http, health, stats and a WebSocket endpoint are served too.

Remaining settings are read from the environment (ALLOWED_ORIGINS,
MAX_FRAME_SIZE, READ_TIMEOUT, RATE_LIMIT_BURST, ...).`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runFn(ctx, *cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Address, "address", cfg.Address, "address to listen on")
	flags.StringVar(&cfg.Port, "port", cfg.Port, "TCP port for drawing clients")
	flags.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "optional HTTP address for health, stats and WebSocket clients")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")

	return cmd
}

func run(ctx context.Context, cfg server.Config) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: server.ParseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	srv := server.New(cfg, logger)
	if err := srv.Listen(); err != nil {
		return err
	}
	logger.Info("starting NetSketch server", "addr", srv.Addr().String())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ctx); err != nil && !errors.Is(err, server.ErrServerClosed) {
			return err
		}
		return nil
	})

	var httpServer *http.Server
	if cfg.HTTPAddr != "" {
		httpServer = server.CreateHTTPServer(cfg.HTTPAddr, srv.Router())
		g.Go(func() error {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		if httpServer != nil {
			if err := server.ShutdownHTTPServer(httpServer, shutdownTimeout); err != nil {
				logger.Warn("HTTP server shutdown error", "error", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
