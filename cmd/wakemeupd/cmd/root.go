package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wakemeup/internal/config"
	"wakemeup/internal/service/monitor"
	"wakemeup/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile path where the alarm collection is persisted.
	stateFile string
	// replayTrack optionally names a JSON track to replay instead of
	// accepting pushed positions.
	replayTrack string
	// replayInterval is the spacing between replayed samples.
	replayInterval time.Duration

	// rootCmd represents the base command for running the alarm daemon.
	rootCmd = &cobra.Command{
		Use:   "wakemeupd [listen-address]",
		Short: "Run the proximity alarm daemon.",
		Long: `Starts the daemon that tracks reported positions and fires proximity alarms.

Positions are pushed over the HTTP API or a WebSocket feed; each sample is
evaluated against every active alarm's geofence and a crossing fires exactly
one trigger event. Alarms are persisted to a JSON file and survive restarts.
Listen address can be provided as argument to override config (e.g., :9090).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return monitor.Run(ctx, &monitor.Options{
				ConfigPath:     configPath,
				ListenAddress:  listenAddress,
				StateFile:      stateFile,
				ReplayTrack:    replayTrack,
				ReplayInterval: replayInterval,
			})
		},
	}
)

// Execute runs the wakemeupd CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().
		StringVarP(&stateFile, "state-file", "s", "", "path to persist the alarm collection (defaults to config)")
	rootCmd.Flags().StringVar(&replayTrack, "replay", "", "JSON track file to replay instead of the position feed")
	rootCmd.Flags().DurationVar(&replayInterval, "replay-interval", 0, "spacing between replayed samples")
}
