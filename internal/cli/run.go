package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const (
	jobCycles      = "cycles"
	jobObligations = "obligations"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	Now string // RFC3339 override for the run's clock
}

// NewRunCommand creates the one-shot run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <cycles|obligations>",
		Short: "Run one engine pass and print its stats",
		Long: `Run a single pass of one engine against the configured database and
print the run stats as JSON.

Examples:
  engine run cycles
  engine run obligations --now 2025-01-10T00:15:00Z`,
		Args:          cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs:     []string{jobCycles, jobObligations},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := parseNow(opts.Now, time.Now)
			if err != nil {
				return err
			}
			return runOnce(cmd, args[0], now)
		},
	}

	cmd.Flags().StringVar(&opts.Now, "now", "", "evaluate as of this RFC3339 instant instead of the current time")

	return cmd
}

func parseNow(raw string, clock func() time.Time) (time.Time, error) {
	if raw == "" {
		return clock(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now value %q: %w", raw, err)
	}
	return t, nil
}

func runOnce(cmd *cobra.Command, job string, now time.Time) error {
	comps, err := loadComponents()
	if err != nil {
		return err
	}
	defer comps.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), comps.cfg.JobTimeout)
	defer cancel()

	var stats any
	switch job {
	case jobCycles:
		stats, err = comps.cycles.Run(ctx, now)
	case jobObligations:
		stats, err = comps.obligations.Run(ctx, now)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
