package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tommyd2377/voice-ai-system/cmd/voicebridge/internal/server"
	"github.com/tommyd2377/voice-ai-system/pkg/orders"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook and media-stream server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Engine.APIKey == "" {
			return fmt.Errorf("no engine API key: set engine.api_key or OPENAI_API_KEY")
		}

		store, err := orders.Open(orders.Options{Dir: cfg.DataDir})
		if err != nil {
			return err
		}
		defer store.Close()

		srv, err := server.New(cfg, store, slog.Default())
		if err != nil {
			return err
		}

		httpSrv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			slog.Info("listening", "addr", cfg.Listen, "public_host", cfg.PublicHost)
			errc <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
