package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wakemeup/internal/domain/alarm"
)

var (
	// addName is the display name of the new alarm.
	addName string
	// addLat and addLon place the destination directly.
	addLat float64
	addLon float64
	// addPlace resolves the destination through the daemon's place lookup.
	addPlace string
	// addRadius is the geofence radius in meters.
	addRadius float64
	// addRingtone optionally names a sound file for the notifier.
	addRingtone string
	// addInactive creates the alarm disarmed.
	addInactive bool

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List all alarms.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			list, err := c.Alarms(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDESTINATION\tRADIUS\tACTIVE")

			for _, a := range list {
				fmt.Fprintf(w, "%s\t%s\t%.5f,%.5f\t%.0fm\t%t\n",
					a.ID, a.Name, a.Destination.Latitude, a.Destination.Longitude, a.Radius, a.IsActive)
			}

			return w.Flush()
		},
	}

	addCmd = &cobra.Command{
		Use:   "add",
		Short: "Add a proximity alarm.",
		Long: `Creates an alarm around a destination.

The destination is given either as --lat/--lon or as --place free text, which
is resolved through the daemon's place lookup (the first suggestion wins).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			destination := &alarm.Coordinate{Latitude: addLat, Longitude: addLon}

			if addPlace != "" {
				predictions, err := c.PredictPlaces(cmd.Context(), addPlace)
				if err != nil {
					return err
				}

				if len(predictions) == 0 {
					return fmt.Errorf("no place matches %q", addPlace)
				}

				destination, err = c.ResolvePlace(cmd.Context(), predictions[0].PlaceID)
				if err != nil {
					return err
				}

				fmt.Printf("Resolved %q to %s (%.5f, %.5f)\n",
					addPlace, predictions[0].Description, destination.Latitude, destination.Longitude)
			} else if addLat == 0 && addLon == 0 {
				return errors.New("either --place or --lat/--lon must be provided")
			}

			created, err := c.AddAlarm(cmd.Context(), alarm.Alarm{
				Name:         addName,
				Destination:  destination,
				Radius:       addRadius,
				IsActive:     !addInactive,
				RingtonePath: addRingtone,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Added alarm %s (%s)\n", created.ID, created.Name)

			return nil
		},
	}

	removeCmd = &cobra.Command{
		Use:   "remove <alarm-id>",
		Short: "Remove an alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			if err := c.RemoveAlarm(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Printf("Removed alarm %s\n", args[0])

			return nil
		},
	}

	toggleCmd = &cobra.Command{
		Use:   "toggle <alarm-id>",
		Short: "Arm or disarm an alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			toggled, err := c.ToggleAlarm(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			state := "disarmed"
			if toggled.IsActive {
				state = "armed"
			}

			fmt.Printf("Alarm %s (%s) is now %s\n", toggled.ID, toggled.Name, state)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	addCmd.Flags().StringVarP(&addName, "name", "n", "", "alarm display name")
	addCmd.Flags().Float64Var(&addLat, "lat", 0, "destination latitude")
	addCmd.Flags().Float64Var(&addLon, "lon", 0, "destination longitude")
	addCmd.Flags().StringVarP(&addPlace, "place", "p", "", "destination as free text, resolved via place lookup")
	addCmd.Flags().Float64VarP(&addRadius, "radius", "r", 500, "geofence radius in meters")
	addCmd.Flags().StringVar(&addRingtone, "ringtone", "", "path to a sound file for the notifier")
	addCmd.Flags().BoolVar(&addInactive, "inactive", false, "create the alarm disarmed")

	rootCmd.AddCommand(listCmd, addCmd, removeCmd, toggleCmd)
}
