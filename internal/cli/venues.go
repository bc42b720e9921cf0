package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	service "github.com/okian/catalog/internal/app"
	"github.com/okian/catalog/internal/domain/venue"
)

// VenuesCmd returns the venues command
func VenuesCmd() *cobra.Command {
	var (
		venues string
		format string
	)

	cmd := &cobra.Command{
		Use:   "venues",
		Short: "Build the venue index and report its keys and collisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := loadConfig(ctx, venues, nil, format)
			if err != nil {
				return err
			}
			if cfg.VenuesURL == "" {
				return service.ErrNoVenueSource
			}
			vf, err := service.VenueFeedFor(cfg)
			if err != nil {
				return err
			}
			set, err := vf.Venues(ctx)
			if err != nil {
				return err
			}

			var collisions []venue.Collision
			idx := venue.BuildIndex(set.Venues, venue.WithCollisionHandler(func(c venue.Collision) {
				collisions = append(collisions, c)
			}))

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Venues: %d (skipped %d, inactive %d)\n", idx.Len(), set.Skipped, set.Inactive)
			fmt.Fprintf(w, "  names:   %d\n", len(idx.ByName))
			fmt.Fprintf(w, "  aliases: %d\n", len(idx.ByAlias))
			fmt.Fprintf(w, "  handles: %d\n", len(idx.ByHandle))
			if len(collisions) == 0 {
				fmt.Fprintf(w, "Collisions: %s\n", color.New(color.FgGreen).Sprint("none"))
				return nil
			}
			fmt.Fprintf(w, "Collisions: %s\n", color.New(color.FgYellow).Sprint(len(collisions)))
			for _, c := range collisions {
				fmt.Fprintf(w, "  %-6s %q: %s -> %s\n", c.Kind, c.Key, c.PreviousID, c.VenueID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&venues, "venues", "", "Venue feed location (path or URL)")
	cmd.Flags().StringVar(&format, "format", "", "Force feed format: csv or json (default: by extension)")

	return cmd
}
