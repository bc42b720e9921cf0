package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	service "github.com/okian/catalog/internal/app"
	"github.com/okian/catalog/internal/domain/model"
	"github.com/okian/catalog/pkg/logger"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	var (
		venues  string
		events  []string
		format  string
		asJSON  bool
		timeout time.Duration
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion pass and print the result",
		Long: `Run one ingestion pass over the venue feed and every event feed.

Flags override the configured feeds. --events may repeat and accepts
"name=location" to label a feed. Quarantined rows are reported but are not
a failure; a feed that cannot be fetched or decoded is.`,
		Example: `  catalog ingest --venues venues.csv --events agenda=events.json
  catalog ingest --json > result.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := loadConfig(ctx, venues, events, format)
			if err != nil {
				return err
			}
			if timeout > 0 {
				cfg.PassTimeoutMS = int(timeout.Milliseconds())
			}

			log := logger.Nop()
			if verbose {
				log = logger.Named("ingest")
			}
			svc, err := service.FromConfig(cfg, service.WithLogger(log))
			if err != nil {
				return err
			}
			res, err := svc.Ingest(ctx)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&venues, "venues", "", "Venue feed location (path or URL)")
	cmd.Flags().StringArrayVar(&events, "events", nil, "Event feed location, optionally name=location (repeatable)")
	cmd.Flags().StringVar(&format, "format", "", "Force feed format: csv or json (default: by extension)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Pass timeout (overrides pass_timeout_ms)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log pass progress to stderr")

	return cmd
}

func printResult(w io.Writer, res *model.Result) {
	s := res.Stats
	fmt.Fprintf(w, "Pass %s\n", res.PassID)
	fmt.Fprintf(w, "  rows:       %d\n", s.TotalRows)
	fmt.Fprintf(w, "  loaded:     %s\n", color.New(color.FgGreen).Sprint(s.LoadedCount))
	fmt.Fprintf(w, "  merged:     %d\n", s.DuplicatesMerged)
	fmt.Fprintf(w, "  events:     %d\n", len(res.Events))

	quarantined := len(res.Quarantined)
	if quarantined == 0 {
		fmt.Fprintf(w, "  quarantine: %s\n", color.New(color.FgGreen).Sprint("none"))
		return
	}
	fmt.Fprintf(w, "  quarantine: %s\n", color.New(color.FgYellow).Sprint(quarantined))
	reasons := make([]string, 0, len(s.QuarantinedByReason))
	for r, n := range s.QuarantinedByReason {
		if n > 0 {
			reasons = append(reasons, string(r))
		}
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(w, "    %-24s %d\n", r, s.QuarantinedByReason[model.QuarantineReason(r)])
	}
}
