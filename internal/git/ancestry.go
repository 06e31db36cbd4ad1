package git

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// CommitInfo describes one commit on a stack path
type CommitInfo struct {
	SHA        string
	Subject    string
	NumParents int
}

// GetMergeBase returns the merge base between two refs
func GetMergeBase(ref1, ref2 string) (string, error) {
	repo, err := openRepo()
	if err != nil {
		return "", err
	}

	hash1, err := resolveRefHash(repo, ref1)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", ref1, err)
	}

	hash2, err := resolveRefHash(repo, ref2)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", ref2, err)
	}

	commit1, err := repo.CommitObject(hash1)
	if err != nil {
		return "", fmt.Errorf("failed to get commit for %s: %w", ref1, err)
	}

	commit2, err := repo.CommitObject(hash2)
	if err != nil {
		return "", fmt.Errorf("failed to get commit for %s: %w", ref2, err)
	}

	mergeBases, err := commit1.MergeBase(commit2)
	if err != nil {
		return "", fmt.Errorf("failed to find merge base: %w", err)
	}

	if len(mergeBases) == 0 {
		return "", fmt.Errorf("no merge base between %s and %s", ref1, ref2)
	}

	return mergeBases[0].Hash.String(), nil
}

// IsAncestor checks if the first ref is an ancestor of the second ref
func IsAncestor(ancestor, descendant string) (bool, error) {
	repo, err := openRepo()
	if err != nil {
		return false, err
	}

	ancestorHash, err := resolveRefHash(repo, ancestor)
	if err != nil {
		return false, fmt.Errorf("failed to resolve ancestor ref: %w", err)
	}

	descendantHash, err := resolveRefHash(repo, descendant)
	if err != nil {
		return false, fmt.Errorf("failed to resolve descendant ref: %w", err)
	}

	if ancestorHash == descendantHash {
		return true, nil
	}

	ancestorCommit, err := repo.CommitObject(ancestorHash)
	if err != nil {
		return false, fmt.Errorf("failed to get ancestor commit: %w", err)
	}

	descendantCommit, err := repo.CommitObject(descendantHash)
	if err != nil {
		return false, fmt.Errorf("failed to get descendant commit: %w", err)
	}

	return ancestorCommit.IsAncestor(descendantCommit)
}

// CommitsBetween walks the first-parent chain from head down to (excluding)
// base and returns the commits tip-first. The walk follows first parents
// only; merge commits on the path are reported via NumParents so callers can
// reject non-linear ranges.
func CommitsBetween(base, head string) ([]CommitInfo, error) {
	repo, err := openRepo()
	if err != nil {
		return nil, err
	}

	baseHash, err := resolveRefHash(repo, base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base: %w", err)
	}

	headHash, err := resolveRefHash(repo, head)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve head: %w", err)
	}

	var commits []CommitInfo
	current := headHash
	for current != baseHash {
		commit, err := repo.CommitObject(current)
		if err != nil {
			return nil, fmt.Errorf("failed to read commit %s: %w", current, err)
		}

		commits = append(commits, CommitInfo{
			SHA:        commit.Hash.String(),
			Subject:    commitSubject(commit),
			NumParents: commit.NumParents(),
		})

		if commit.NumParents() == 0 {
			// Reached a root commit without passing through base
			return nil, fmt.Errorf("base %s is not reachable from %s", base, head)
		}

		parent, err := commit.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("failed to get parent of %s: %w", current, err)
		}
		current = parent.Hash
	}

	return commits, nil
}

// FindMergeCommit returns the SHA of the first merge commit found between base
// and head, or an empty string when the range is linear.
func FindMergeCommit(base, head string) (string, error) {
	commits, err := CommitsBetween(base, head)
	if err != nil {
		return "", err
	}

	for _, commit := range commits {
		if commit.NumParents > 1 {
			return commit.SHA, nil
		}
	}
	return "", nil
}

// BranchTips returns a map of commit SHA to the local branch names whose tips
// point at that commit.
func BranchTips() (map[string][]string, error) {
	repo, err := openRepo()
	if err != nil {
		return nil, err
	}

	branches, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to get branches: %w", err)
	}

	tips := make(map[string][]string)
	err = branches.ForEach(func(ref *plumbing.Reference) error {
		if ref.Name().IsBranch() {
			sha := ref.Hash().String()
			tips[sha] = append(tips[sha], ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate branches: %w", err)
	}

	return tips, nil
}

func commitSubject(commit *object.Commit) string {
	message := commit.Message
	for i := 0; i < len(message); i++ {
		if message[i] == '\n' {
			return message[:i]
		}
	}
	return message
}
