package submit

import (
	"context"

	"basalt.dev/basalt/internal/git"
)

// GitOps is the slice of git the pipeline needs. Narrow on purpose so
// tests can drive the pipeline without a real repository.
type GitOps interface {
	// GetRevision returns the local tip of a branch
	GetRevision(branch string) (string, error)

	// GetRemoteRevision returns the last-known remote tip, "" if never pushed
	GetRemoteRevision(remote, branch string) (string, error)

	// HasUpstream reports whether the branch tracks a remote branch
	HasUpstream(remote, branch string) (bool, error)

	// PushBranch pushes a branch, with --force-with-lease when forced
	PushBranch(ctx context.Context, branch, remote string, forceWithLease bool) error

	// GetCommitSubject returns the subject line of a revision's commit
	GetCommitSubject(rev string) (string, error)
}

// realGit adapts the git package to GitOps
type realGit struct{}

// NewGitOps returns the production GitOps backed by the git package
func NewGitOps() GitOps {
	return realGit{}
}

func (realGit) GetRevision(branch string) (string, error) {
	return git.GetRevision(branch)
}

func (realGit) GetRemoteRevision(remote, branch string) (string, error) {
	return git.GetRemoteRevision(remote, branch)
}

func (realGit) HasUpstream(remote, branch string) (bool, error) {
	return git.HasUpstream(remote, branch)
}

func (realGit) PushBranch(ctx context.Context, branch, remote string, forceWithLease bool) error {
	return git.PushBranch(ctx, branch, remote, forceWithLease)
}

func (realGit) GetCommitSubject(rev string) (string, error) {
	return git.GetCommitSubject(rev)
}
