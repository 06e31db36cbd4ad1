package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"basalt.dev/basalt/internal/output"
	"basalt.dev/basalt/internal/restack"
	"basalt.dev/basalt/internal/runtime"
)

// newRestackCmd creates the restack command
func newRestackCmd() *cobra.Command {
	var (
		branch       string
		continueFlag bool
		abortFlag    bool
	)

	cmd := &cobra.Command{
		Use:   "restack",
		Short: "Rebase every branch in the current stack onto its refreshed parent",
		Long: `Rebase every branch in the current stack onto its refreshed parent,
bottom to top. On conflict the restack halts: resolve the conflicted
files, stage them, and run 'bt restack --continue' (or '--abort').`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if continueFlag && abortFlag {
				return fmt.Errorf("--continue and --abort are mutually exclusive")
			}

			rc, err := getInitializedContext()
			if err != nil {
				return err
			}
			defer func() { _ = rc.Splog.Close() }()

			lock := rc.Store.NewLock()
			if err := lock.Acquire(); err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			orchestrator := restack.NewOrchestrator(rc.Store.Dir(), rc.Splog)

			if abortFlag {
				if err := orchestrator.Abort(cmd.Context()); err != nil {
					return err
				}
				rc.Splog.Info("Restack aborted")
				return nil
			}

			var report *restack.Report
			if continueFlag {
				report, err = orchestrator.Continue(cmd.Context())
			} else {
				meta, metaErr := rc.LoadMetadata()
				if metaErr != nil {
					return metaErr
				}

				s, detectErr := detectStack(branch, meta.BaseBranch)
				if detectErr != nil {
					return detectErr
				}

				report, err = orchestrator.Run(cmd.Context(), s)
			}

			if report != nil {
				printRestackReport(rc, report)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "", "top branch of the stack; defaults to the current branch")
	cmd.Flags().BoolVar(&continueFlag, "continue", false, "resume a restack halted by conflicts")
	cmd.Flags().BoolVar(&abortFlag, "abort", false, "abandon a halted restack")

	return cmd
}

func printRestackReport(rc *runtime.Context, report *restack.Report) {
	rc.Splog.Newline()
	for _, result := range report.Results {
		switch result.State {
		case restack.StateRebased:
			rc.Splog.Info("%s %s: rebased", output.Green("✓"), result.Branch)
		case restack.StateUpToDate:
			rc.Splog.Info("%s %s: already in place", output.Dim("·"), result.Branch)
		case restack.StateConflicted:
			rc.Splog.Info("%s %s: conflicts", output.Red("✗"), result.Branch)
			for _, path := range report.ConflictPaths {
				rc.Splog.Info("    %s", output.Yellow(path))
			}
		case restack.StatePending:
			rc.Splog.Info("%s %s: not reached", output.Dim("·"), result.Branch)
		}
	}

	if report.Completed {
		if queue := report.PushQueue(); len(queue) > 0 {
			rc.Splog.Tip("Run 'bt submit' to push the %d rebased branch(es)", len(queue))
		}
	} else {
		rc.Splog.Tip("Resolve the conflicts, stage the files, then run 'bt restack --continue'")
	}
}
