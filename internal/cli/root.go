package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the engine root command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "ROSCA cycle progression and overdue obligation engine",
		Long: `Batch engines for rotating savings circles.

Configuration is read from the environment and an optional .env file.
DATABASE_URL is required; policy knobs (GRACE_PERIOD_DAYS, LATE_FEE_RATE,
XNSCORE_OVERDUE_PENALTY, CYCLE_GRACE_PERIOD_DAYS) and BUSINESS_TIMEZONE
have defaults.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewRunCommand())

	return cmd
}
