package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"wakemeup/internal/service/client"
	"wakemeup/internal/version"
)

// defaultServerAddress is where a locally running daemon listens.
const defaultServerAddress = "localhost:8080"

var (
	// serverAddress is the daemon's API address.
	serverAddress string

	// rootCmd represents the base command for the alarm control CLI.
	rootCmd = &cobra.Command{
		Use:   "wakemeupctl",
		Short: "Manage and observe the proximity alarm daemon.",
		Long: `Command-line client for the wakemeupd daemon.

Lists, adds, toggles, and removes proximity alarms, watches the trigger event
stream, and feeds position samples from a recorded track.`,
	}
)

// newClient builds an API client for the configured daemon address.
func newClient() (*client.Client, error) {
	return client.New(serverAddress)
}

// Execute runs the wakemeupctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&serverAddress, "server", "s", defaultServerAddress, "daemon API address")
}
