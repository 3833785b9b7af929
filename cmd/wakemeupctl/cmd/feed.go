package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wakemeup/internal/location"
)

// feedInterval is the spacing between fed samples.
var feedInterval time.Duration

var feedCmd = &cobra.Command{
	Use:   "feed <track.json>",
	Short: "Feed a recorded track to the daemon's position stream.",
	Long: `Reads a JSON array of {latitude, longitude} points and pushes them to the
daemon over the WebSocket position feed, one sample per interval.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		track, err := location.LoadTrack(args[0])
		if err != nil {
			return err
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		feed, err := c.OpenPositionFeed(cmd.Context())
		if err != nil {
			return err
		}

		defer func() {
			_ = feed.Close()
		}()

		ticker := time.NewTicker(feedInterval)
		defer ticker.Stop()

		for i, point := range track {
			if err := feed.Send(point); err != nil {
				return err
			}

			fmt.Printf("Sent %d/%d: %.5f, %.5f\n", i+1, len(track), point.Latitude, point.Longitude)

			if i == len(track)-1 {
				break
			}

			select {
			case <-ticker.C:
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		}

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	feedCmd.Flags().DurationVarP(&feedInterval, "interval", "i", time.Second, "spacing between samples")

	rootCmd.AddCommand(feedCmd)
}
