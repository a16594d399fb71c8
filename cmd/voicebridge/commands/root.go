package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tommyd2377/voice-ai-system/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "voicebridge",
	Short: "Telephony to AI voice bridge",
	Long: `voicebridge - bridges carrier phone calls to a realtime AI engine.

The server answers the carrier's call webhook with a media-stream
descriptor, accepts the media websocket, and runs one bridged session
per call: μ-law decode, resample, condition, forward to the engine,
and the reverse path back to the caller. Confirmed orders are persisted
locally.

Examples:
  # Run the server
  voicebridge serve -f voicebridge.yaml

  # List stored orders
  voicebridge orders list -f voicebridge.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", "voicebridge.yaml", "config file path")
}

// loadConfig loads the config file named by --config and installs the
// configured slog default.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	return cfg, nil
}
