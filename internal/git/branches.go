package git

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"

	basalterrors "basalt.dev/basalt/internal/errors"
)

// GetCurrentBranch returns the current branch name.
// Returns ErrNotOnBranch when HEAD is detached.
func GetCurrentBranch() (string, error) {
	repo, err := openRepo()
	if err != nil {
		return "", err
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}

	if !head.Name().IsBranch() {
		return "", basalterrors.ErrNotOnBranch
	}

	return head.Name().Short(), nil
}

// GetAllBranchNames returns all local branch names in the repository
func GetAllBranchNames() ([]string, error) {
	repo, err := openRepo()
	if err != nil {
		return nil, err
	}

	branches, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to get branches: %w", err)
	}

	var names []string
	err = branches.ForEach(func(ref *plumbing.Reference) error {
		if ref.Name().IsBranch() {
			names = append(names, ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate branches: %w", err)
	}

	return names, nil
}

// BranchExists reports whether a local branch with the given name exists
func BranchExists(branchName string) (bool, error) {
	repo, err := openRepo()
	if err != nil {
		return false, err
	}

	_, err = repo.Reference(plumbing.ReferenceName("refs/heads/"+branchName), true)
	return err == nil, nil
}

// GetRevision returns the commit SHA a branch points to
func GetRevision(branchName string) (string, error) {
	repo, err := openRepo()
	if err != nil {
		return "", err
	}

	ref, err := repo.Reference(plumbing.ReferenceName("refs/heads/"+branchName), true)
	if err != nil {
		return "", basalterrors.NewBranchNotFoundError(branchName)
	}

	return ref.Hash().String(), nil
}

// GetRemoteRevision returns the SHA of the remote-tracking ref for a branch,
// or an empty string if the branch has never been pushed.
func GetRemoteRevision(remote, branchName string) (string, error) {
	repo, err := openRepo()
	if err != nil {
		return "", err
	}

	ref, err := repo.Reference(plumbing.ReferenceName("refs/remotes/"+remote+"/"+branchName), true)
	if err != nil {
		return "", nil
	}

	return ref.Hash().String(), nil
}

// HasUpstream reports whether a branch has a remote-tracking ref
func HasUpstream(remote, branchName string) (bool, error) {
	rev, err := GetRemoteRevision(remote, branchName)
	if err != nil {
		return false, err
	}
	return rev != "", nil
}

// GetCommitSubject returns the first line of the commit message at a revision
func GetCommitSubject(rev string) (string, error) {
	return RunGitCommand("log", "-1", "--format=%s", rev)
}

// CheckoutBranch checks out an existing branch
func CheckoutBranch(ctx context.Context, branchName string) error {
	_, err := RunGitCommandWithContext(ctx, "checkout", branchName)
	if err != nil {
		return fmt.Errorf("failed to checkout branch %s: %w", branchName, err)
	}
	return nil
}

// CreateAndCheckoutBranch creates and checks out a new branch
func CreateAndCheckoutBranch(ctx context.Context, branchName string) error {
	_, err := RunGitCommandWithContext(ctx, "checkout", "-b", branchName)
	if err != nil {
		return fmt.Errorf("failed to create and checkout branch %s: %w", branchName, err)
	}
	return nil
}

// CheckoutDetached checks out a revision in detached HEAD state
func CheckoutDetached(ctx context.Context, rev string) error {
	_, err := RunGitCommandWithContext(ctx, "checkout", "--detach", rev)
	if err != nil {
		return fmt.Errorf("failed to checkout %s in detached state: %w", rev, err)
	}
	return nil
}

// UpdateBranchRef force-updates a branch reference to point to a new commit
func UpdateBranchRef(ctx context.Context, branchName, commitSHA string) error {
	_, err := RunGitCommandWithContext(ctx, "update-ref", "refs/heads/"+branchName, commitSHA)
	if err != nil {
		return fmt.Errorf("failed to update branch ref %s: %w", branchName, err)
	}
	return nil
}

// DetectDefaultBranch finds the repository's default branch.
// Tries origin/HEAD first, then common names, and falls back to "main".
func DetectDefaultBranch() string {
	// origin/HEAD symbolic ref, e.g. refs/remotes/origin/main
	if out, err := RunGitCommand("symbolic-ref", "refs/remotes/origin/HEAD", "--short"); err == nil && out != "" {
		if idx := len("origin/"); len(out) > idx && out[:idx] == "origin/" {
			return out[idx:]
		}
	}

	for _, candidate := range []string{"main", "master"} {
		if exists, err := BranchExists(candidate); err == nil && exists {
			return candidate
		}
	}

	for _, candidate := range []string{"main", "master"} {
		if rev, err := GetRemoteRevision("origin", candidate); err == nil && rev != "" {
			return candidate
		}
	}

	return "main"
}
