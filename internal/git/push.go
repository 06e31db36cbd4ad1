package git

import (
	"context"
	"fmt"
	"strings"
)

// PushBranch pushes a branch to the remote, creating the upstream tracking
// ref if absent. If forceWithLease is true, uses --force-with-lease so the
// push fails instead of clobbering remote changes made by someone else.
func PushBranch(ctx context.Context, branchName, remote string, forceWithLease bool) error {
	args := []string{"push", "-u", remote}
	if forceWithLease {
		args = append(args, "--force-with-lease")
	}
	args = append(args, branchName)

	_, err := RunGitCommandWithContext(ctx, args...)
	if err != nil {
		if strings.Contains(err.Error(), "stale info") || strings.Contains(err.Error(), "forced update") {
			return fmt.Errorf("force-with-lease push of %s failed because the remote branch changed externally. Fetch and restack before submitting again: %w", branchName, err)
		}
		return fmt.Errorf("failed to push branch %s: %w", branchName, err)
	}

	return nil
}
