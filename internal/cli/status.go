package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Limit int
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent run activity from the audit log",
		Long: `Print the most recent audit log rows, newest first. The audit log
records run starts, per-kind failures, and end-of-run summaries, so this is
the cross-process view of what the engine has been doing. For the live
state of an in-flight run, query the intake server's /status endpoint.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of audit rows to show")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	a, err := loadApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()

	rows, err := a.store.RecentAudit(cmd.Context(), opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read audit log", err)
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
		return nil
	}
	for _, row := range rows {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  [%s] %s\n",
			row.LoggedAt.Format(time.RFC3339), row.Source, row.Message)
	}
	return nil
}
