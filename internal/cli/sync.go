package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rostersync/rostersync/internal/engine"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync [key=value ...]",
		Short: "Run one synchronization over the waiting batch",
		Long: `Run one synchronization over the extract files waiting in the upload
directory. Optional key=value arguments override installation policies for
this run only (ignoreMissingSessions, ignoreMembershipRemovals,
userRemovalMode).

Example:
  rostersync sync --config rostersync.yaml
  rostersync sync userRemovalMode=delete`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd, args)
		},
	}

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command, args []string) error {
	overrides, err := parseOverrides(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid override", err)
	}

	a, err := loadApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()

	rs, err := a.engine.Sync(cmd.Context(), overrides)
	switch {
	case engine.IsNoBatch(err):
		return NewExitError(ExitCommandError, "no extract files waiting in the upload directory")
	case engine.IsRunActive(err):
		return NewExitError(ExitCommandError, "a synchronization is already in progress")
	case err != nil:
		return WrapExitError(ExitFailure, "synchronization did not start", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Run %s %s\n%s", rs.ID, rs.Status, rs.SummaryText)
	if rs.Status != engine.StatusComplete {
		return NewExitError(ExitFailure, "run finished with status "+string(rs.Status))
	}
	return nil
}
