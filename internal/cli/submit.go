package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	basalterrors "basalt.dev/basalt/internal/errors"
	"basalt.dev/basalt/internal/git"
	"basalt.dev/basalt/internal/output"
	"basalt.dev/basalt/internal/stack"
	"basalt.dev/basalt/internal/submit"
)

// newSubmitCmd creates the submit command
func newSubmitCmd() *cobra.Command {
	var (
		ready  bool
		branch string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Push every branch in the current stack and create or update its review",
		Long: `Push every branch in the current stack and create or update its review.
Branches are processed bottom to top; each review targets the branch below
it. New reviews open as drafts unless --ready is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			// Pushing mid-rebase or with local edits would publish tips the
			// user has not finished with
			if git.IsRebaseInProgress(cmd.Context()) {
				return fmt.Errorf("%w: finish it with 'bt restack --continue' or drop it with 'bt restack --abort'", basalterrors.ErrRebaseInProgress)
			}
			dirty, err := git.HasUncommittedChanges(cmd.Context())
			if err != nil {
				return err
			}
			if dirty {
				return fmt.Errorf("%w: commit or stash before submitting", basalterrors.ErrUncommittedChanges)
			}

			meta, err := rc.LoadMetadata()
			if err != nil {
				return err
			}

			s, err := detectStack(branch, meta.BaseBranch)
			if err != nil {
				return err
			}

			p, err := rc.BuildProvider(cmd.Context(), meta)
			if err != nil {
				return err
			}

			pipeline := submit.NewPipeline(submit.NewGitOps(), p, rc.Store, meta, rc.Remote, rc.Splog)
			report, err := pipeline.Submit(cmd.Context(), s, submit.Options{Ready: ready})
			if err != nil {
				return err
			}

			printSubmitReport(rc.Splog, report)
			if report.Failed() {
				return errSubmissionIncomplete
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&ready, "ready", false, "mark reviews as ready instead of draft")
	cmd.Flags().StringVar(&branch, "branch", "", "top branch of the stack; defaults to the current branch")

	return cmd
}

func detectStack(branch, baseBranch string) (*stack.Stack, error) {
	if branch != "" {
		return stack.Detect(branch, baseBranch)
	}
	return stack.DetectFromCurrent(baseBranch)
}

func printSubmitReport(splog *output.Splog, report *submit.Report) {
	splog.Newline()
	for _, result := range report.Results {
		switch result.Outcome {
		case submit.OutcomeCreated:
			splog.Info("%s %s: created %s", output.Green("✓"), result.Branch, result.ReviewURL)
		case submit.OutcomeUpdated:
			splog.Info("%s %s: updated %s", output.Green("✓"), result.Branch, result.ReviewID)
		case submit.OutcomeUnchanged:
			splog.Info("%s %s: up to date", output.Dim("·"), result.Branch)
		case submit.OutcomeSkipped:
			splog.Info("%s %s: skipped (a branch below it failed)", output.Yellow("-"), result.Branch)
		case submit.OutcomeFailed:
			splog.Info("%s %s: %v", output.Red("✗"), result.Branch, result.Err)
		}
	}
}
