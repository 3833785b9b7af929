package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream trigger events from the daemon.",
	Long: `Subscribes to the daemon's trigger event stream and prints each geofence
entry as it fires. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		events, err := c.WatchEvents(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("Watching for trigger events, Ctrl+C to stop")

		for event := range events {
			fmt.Printf("%s  %s (%s) entered, %.0f m from destination\n",
				event.At.Format("15:04:05"), event.Alarm.Name, event.Alarm.ID, event.DistanceMeters)
		}

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(watchCmd)
}
