package git

import (
	"fmt"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Repository wraps a go-git repository for read-side graph queries.
// Mutations (rebase, push, checkout) go through the CommandRunner instead.
type Repository struct {
	*gogit.Repository
	path string
}

// OpenRepository opens a git repository at or above the given path
func OpenRepository(path string) (*Repository, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	repo, err := gogit.PlainOpenWithOptions(absPath, &gogit.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}

	return &Repository{
		Repository: repo,
		path:       absPath,
	}, nil
}

// openRepo opens the repository rooted at the default runner's working
// directory (or the process working directory). Opened fresh on each call so
// ref reads always see the current on-disk state.
func openRepo() (*Repository, error) {
	dir := defaultRunner.workingDir
	if dir == "" {
		dir = "."
	}
	return OpenRepository(dir)
}

// GetRepoRoot returns the root directory of the Git repository
func GetRepoRoot() (string, error) {
	repo, err := openRepo()
	if err != nil {
		return "", err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}

	return worktree.Filesystem.Root(), nil
}

// GetGitDir returns the path of the .git directory
func GetGitDir() (string, error) {
	return RunGitCommand("rev-parse", "--absolute-git-dir")
}

// resolveRefHash resolves a ref string (branch name, remote ref or SHA) to a hash
func resolveRefHash(repo *Repository, ref string) (plumbing.Hash, error) {
	// Try as a full or short ref first
	for _, candidate := range []string{ref, "refs/heads/" + ref, "refs/remotes/" + ref} {
		resolved, err := repo.Reference(plumbing.ReferenceName(candidate), true)
		if err == nil {
			return resolved.Hash(), nil
		}
	}

	// Fall back to revision resolution (handles SHAs and expressions)
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to resolve %s: %w", ref, err)
	}
	return *hash, nil
}
