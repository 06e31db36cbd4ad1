package git

import (
	"context"
)

// HasUncommittedChanges reports whether the working tree has staged or
// unstaged changes. Untracked files do not count.
func HasUncommittedChanges(ctx context.Context) (bool, error) {
	output, err := RunGitCommandWithContext(ctx, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return false, err
	}
	return output != "", nil
}
