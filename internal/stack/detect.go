package stack

import (
	"fmt"

	basalterrors "basalt.dev/basalt/internal/errors"
	"basalt.dev/basalt/internal/git"
)

// Detect builds a validated Stack by walking the commit graph from
// startBranch down to its merge base with baseBranch. Every local branch
// whose tip lies on that path becomes a stack entry, ordered base-first.
// The range must be linear: any merge commit invalidates the whole stack.
func Detect(startBranch, baseBranch string) (*Stack, error) {
	if startBranch == baseBranch {
		return nil, &basalterrors.EmptyStackError{
			CurrentBranch: startBranch,
			BaseBranch:    baseBranch,
		}
	}

	if exists, err := git.BranchExists(startBranch); err != nil {
		return nil, err
	} else if !exists {
		return nil, basalterrors.NewBranchNotFoundError(startBranch)
	}

	if exists, err := git.BranchExists(baseBranch); err != nil {
		return nil, err
	} else if !exists {
		return nil, basalterrors.NewBranchNotFoundError(baseBranch)
	}

	mergeBase, err := git.GetMergeBase(startBranch, baseBranch)
	if err != nil {
		return nil, fmt.Errorf("%w: %s and %s share no history", basalterrors.ErrNoLinearPath, startBranch, baseBranch)
	}

	startRev, err := git.GetRevision(startBranch)
	if err != nil {
		return nil, err
	}
	if startRev == mergeBase {
		// startBranch is an ancestor of baseBranch: nothing to submit
		return nil, &basalterrors.EmptyStackError{
			CurrentBranch: startBranch,
			BaseBranch:    baseBranch,
		}
	}

	commits, err := git.CommitsBetween(mergeBase, startBranch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", basalterrors.ErrNoLinearPath, err)
	}
	if len(commits) == 0 {
		return nil, &basalterrors.EmptyStackError{
			CurrentBranch: startBranch,
			BaseBranch:    baseBranch,
		}
	}

	tips, err := git.BranchTips()
	if err != nil {
		return nil, err
	}

	remote := git.GetRemote()

	// Walk tip-first commits and collect branch refs on the path. A merge
	// commit anywhere in the range invalidates the stack.
	var branches []Branch
	seen := make(map[string]bool)
	for _, commit := range commits {
		if commit.NumParents > 1 {
			return nil, &basalterrors.MergeCommitError{
				BranchName: startBranch,
				CommitSHA:  commit.SHA,
			}
		}

		for _, name := range tips[commit.SHA] {
			if name == baseBranch {
				continue
			}
			if seen[name] {
				return nil, &basalterrors.DuplicateBranchError{BranchName: name}
			}
			seen[name] = true

			upstream, err := git.GetRemoteRevision(remote, name)
			if err != nil {
				return nil, err
			}

			branches = append(branches, Branch{
				Name:     name,
				Commit:   commit.SHA,
				Upstream: upstream,
			})
		}
	}

	if len(branches) == 0 {
		return nil, &basalterrors.EmptyStackError{
			CurrentBranch: startBranch,
			BaseBranch:    baseBranch,
		}
	}

	// Commits were walked tip-first; reverse into base-first order.
	for i, j := 0, len(branches)-1; i < j; i, j = i+1, j-1 {
		branches[i], branches[j] = branches[j], branches[i]
	}

	return &Stack{
		Base:     baseBranch,
		Branches: branches,
	}, nil
}

// DetectFromCurrent detects the stack ending at the currently checked out
// branch. Detached HEAD requires an explicit branch argument instead.
func DetectFromCurrent(baseBranch string) (*Stack, error) {
	current, err := git.GetCurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("%w: pass an explicit branch name", err)
	}
	return Detect(current, baseBranch)
}
