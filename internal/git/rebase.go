package git

import (
	"context"
	"fmt"
	"os"
)

// RebaseResult represents the result of a rebase operation
type RebaseResult int

const (
	// RebaseDone indicates the rebase was successful
	RebaseDone RebaseResult = iota
	// RebaseConflict indicates a conflict occurred during rebase
	RebaseConflict
)

// Rebase rebases a branch onto another ref.
// onto is the new parent ref; from is the old fork point (the commit the
// branch's history is replayed from). Returns the branch's new tip SHA on
// success. On conflict the working tree is left mid-rebase for the caller.
func Rebase(ctx context.Context, branchName, onto, from string) (RebaseResult, string, error) {
	// Save current branch/detached HEAD so it can be restored after the rebase
	currentBranch, err := GetCurrentBranch()
	var currentRev string
	if err != nil {
		currentBranch = ""
		currentRev, _ = RunGitCommandWithContext(ctx, "rev-parse", "HEAD")
	}

	branchRev, err := RunGitCommandWithContext(ctx, "rev-parse", "refs/heads/"+branchName)
	if err != nil {
		return RebaseConflict, "", fmt.Errorf("failed to get revision for %s: %w", branchName, err)
	}

	// Rebase in detached HEAD to avoid "already used by worktree" errors:
	// git rebase --onto <onto> <from> <branchRev>
	_, err = RunGitCommandWithContext(ctx, "rebase", "--onto", onto, from, branchRev)
	if err != nil {
		if IsRebaseInProgress(ctx) {
			return RebaseConflict, "", nil
		}
		// Rebase failed for another reason; abort and restore
		_, _ = RunGitCommandWithContext(ctx, "rebase", "--abort")
		restoreCheckout(ctx, currentBranch, currentRev)
		return RebaseConflict, "", fmt.Errorf("rebase of %s onto %s failed: %w", branchName, onto, err)
	}

	newRev, err := RunGitCommandWithContext(ctx, "rev-parse", "HEAD")
	if err != nil {
		return RebaseConflict, "", fmt.Errorf("failed to get new revision after rebase: %w", err)
	}

	if err := UpdateBranchRef(ctx, branchName, newRev); err != nil {
		return RebaseConflict, "", err
	}

	restoreCheckout(ctx, currentBranch, currentRev)
	return RebaseDone, newRev, nil
}

func restoreCheckout(ctx context.Context, branch, rev string) {
	if branch != "" {
		if err := CheckoutBranch(ctx, branch); err != nil {
			_ = CheckoutDetached(ctx, branch)
		}
	} else if rev != "" {
		_ = CheckoutDetached(ctx, rev)
	}
}

// IsRebaseInProgress checks if a rebase is currently in progress
func IsRebaseInProgress(ctx context.Context) bool {
	gitDir, err := RunGitCommandWithContext(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return false
	}

	if _, err := os.Stat(gitDir + "/rebase-merge"); err == nil {
		return true
	}
	if _, err := os.Stat(gitDir + "/rebase-apply"); err == nil {
		return true
	}
	return false
}

// RebaseContinue continues an in-progress rebase after conflicts are resolved
func RebaseContinue(ctx context.Context) (RebaseResult, string, error) {
	_, err := RunGitCommandWithContext(ctx, "-c", "core.editor=true", "rebase", "--continue")
	if err != nil {
		if IsRebaseInProgress(ctx) {
			return RebaseConflict, "", nil
		}
		return RebaseConflict, "", fmt.Errorf("rebase continue failed: %w", err)
	}

	newRev, err := RunGitCommandWithContext(ctx, "rev-parse", "HEAD")
	if err != nil {
		return RebaseConflict, "", fmt.Errorf("failed to get revision after rebase continue: %w", err)
	}

	return RebaseDone, newRev, nil
}

// RebaseAbort aborts an in-progress rebase
func RebaseAbort(ctx context.Context) error {
	_, err := RunGitCommandWithContext(ctx, "rebase", "--abort")
	if err != nil {
		return fmt.Errorf("rebase abort failed: %w", err)
	}
	return nil
}

// ConflictingPaths lists the paths currently in conflicted (unmerged) state
func ConflictingPaths(ctx context.Context) ([]string, error) {
	return RunGitCommandLines(ctx, "diff", "--name-only", "--diff-filter=U")
}
