// Package errors provides sentinel errors and custom error types for the basalt application.
// Use errors.Is() and errors.As() to check for specific error types.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common conditions
var (
	// ErrNotOnBranch indicates that HEAD is detached and not on a branch
	ErrNotOnBranch = errors.New("not on a branch")

	// ErrBranchNotFound indicates that a branch does not exist
	ErrBranchNotFound = errors.New("branch not found")

	// ErrEmptyStack indicates that no stack exists between two branches
	ErrEmptyStack = errors.New("empty stack")

	// ErrMergeCommit indicates that a merge commit was found in a stack range
	ErrMergeCommit = errors.New("merge commit in stack")

	// ErrNoLinearPath indicates diverged history or an unreachable base branch
	ErrNoLinearPath = errors.New("no linear path to base branch")

	// ErrDuplicateBranch indicates a branch that appears twice in a stack range
	ErrDuplicateBranch = errors.New("duplicate branch in stack")

	// ErrRebaseConflict indicates that a rebase operation encountered a conflict
	ErrRebaseConflict = errors.New("rebase conflict")

	// ErrRebaseInProgress indicates that a rebase is already in progress
	ErrRebaseInProgress = errors.New("rebase in progress")

	// ErrUncommittedChanges indicates that the working tree is dirty
	ErrUncommittedChanges = errors.New("uncommitted changes")

	// ErrNotInitialized indicates that basalt metadata does not exist yet
	ErrNotInitialized = errors.New("repository not initialized")

	// ErrCorrupted indicates that the metadata file exists but cannot be parsed
	ErrCorrupted = errors.New("metadata corrupted")

	// ErrLocked indicates that another basalt invocation holds the metadata lock
	ErrLocked = errors.New("operation in progress")

	// ErrTransient marks provider failures that are worth retrying (timeouts, 5xx)
	ErrTransient = errors.New("transient provider error")

	// ErrRejected marks provider failures that must not be retried (4xx, validation)
	ErrRejected = errors.New("provider rejected request")

	// ErrTokenExpired indicates an invalid or expired authentication token
	ErrTokenExpired = errors.New("token invalid or expired")

	// ErrMissingScope indicates a token that lacks a required scope
	ErrMissingScope = errors.New("token missing required scope")
)

// BranchNotFoundError represents an error when a branch is not found
type BranchNotFoundError struct {
	BranchName string
}

func (e *BranchNotFoundError) Error() string {
	return fmt.Sprintf("branch %s does not exist", e.BranchName)
}

// Is returns true if the target error is ErrBranchNotFound
func (e *BranchNotFoundError) Is(target error) bool {
	return target == ErrBranchNotFound
}

// NewBranchNotFoundError creates a new BranchNotFoundError
func NewBranchNotFoundError(branchName string) *BranchNotFoundError {
	return &BranchNotFoundError{BranchName: branchName}
}

// EmptyStackError indicates that there is nothing to submit between two branches
type EmptyStackError struct {
	CurrentBranch string
	BaseBranch    string
}

func (e *EmptyStackError) Error() string {
	return fmt.Sprintf("no commits in stack between %s and %s. Ensure you have commits to submit", e.CurrentBranch, e.BaseBranch)
}

// Is returns true if the target error is ErrEmptyStack
func (e *EmptyStackError) Is(target error) bool {
	return target == ErrEmptyStack
}

// MergeCommitError identifies the exact merge commit that invalidates a stack
type MergeCommitError struct {
	BranchName string
	CommitSHA  string
}

func (e *MergeCommitError) Error() string {
	return fmt.Sprintf("stack contains merge commit %s on branch %s. Stacks must be linear; use 'git log --graph --oneline' to inspect the history", e.CommitSHA, e.BranchName)
}

// Is returns true if the target error is ErrMergeCommit
func (e *MergeCommitError) Is(target error) bool {
	return target == ErrMergeCommit
}

// DuplicateBranchError identifies a branch collected twice while walking a
// stack range
type DuplicateBranchError struct {
	BranchName string
}

func (e *DuplicateBranchError) Error() string {
	return fmt.Sprintf("branch %s appears twice in the stack", e.BranchName)
}

// Is returns true if the target error is ErrDuplicateBranch
func (e *DuplicateBranchError) Is(target error) bool {
	return target == ErrDuplicateBranch
}

// RebaseConflictError represents an error when a rebase encounters a conflict
type RebaseConflictError struct {
	BranchName string
	Paths      []string
}

func (e *RebaseConflictError) Error() string {
	if len(e.Paths) > 0 {
		return fmt.Sprintf("rebase conflict on branch %s in: %s. Resolve the conflict and run 'bt restack --continue'", e.BranchName, strings.Join(e.Paths, ", "))
	}
	return fmt.Sprintf("rebase conflict on branch %s. Resolve the conflict and run 'bt restack --continue'", e.BranchName)
}

// Is returns true if the target error is ErrRebaseConflict
func (e *RebaseConflictError) Is(target error) bool {
	return target == ErrRebaseConflict
}

// GitCommandError represents an error from a git command execution
type GitCommandError struct {
	Command string
	Args    []string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *GitCommandError) Error() string {
	msg := fmt.Sprintf("git command failed: %s", e.Command)
	if len(e.Args) > 0 {
		msg += fmt.Sprintf(" %v", e.Args)
	}
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", e.Stderr)
	}
	if e.Stdout != "" {
		msg += fmt.Sprintf("\nstdout: %s", e.Stdout)
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n%v", e.Err)
	}
	return msg
}

func (e *GitCommandError) Unwrap() error {
	return e.Err
}

// NewGitCommandError creates a new GitCommandError
func NewGitCommandError(command string, args []string, stdout, stderr string, err error) *GitCommandError {
	return &GitCommandError{
		Command: command,
		Args:    args,
		Stdout:  stdout,
		Stderr:  stderr,
		Err:     err,
	}
}

// ProviderErrorCategory distinguishes retryable from terminal provider failures
type ProviderErrorCategory int

const (
	// Transient failures (timeout, 5xx) may be retried once with backoff
	Transient ProviderErrorCategory = iota
	// Rejected failures (4xx, auth, validation) are surfaced immediately
	Rejected
)

// ProviderError wraps a failure from a review provider API call
type ProviderError struct {
	Provider   string
	Operation  string
	Category   ProviderErrorCategory
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Provider, e.Operation)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is maps the error category onto the ErrTransient/ErrRejected sentinels
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Category == Transient
	case ErrRejected:
		return e.Category == Rejected
	}
	return false
}

// NewTransientProviderError creates a retryable provider error
func NewTransientProviderError(provider, operation string, statusCode int, message string) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Operation:  operation,
		Category:   Transient,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewRejectedProviderError creates a terminal provider error
func NewRejectedProviderError(provider, operation string, statusCode int, message string) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Operation:  operation,
		Category:   Rejected,
		StatusCode: statusCode,
		Message:    message,
	}
}

// MissingScopeError indicates a token that cannot create or update reviews
type MissingScopeError struct {
	Provider string
	Required string
	Scopes   []string
}

func (e *MissingScopeError) Error() string {
	return fmt.Sprintf("%s token is missing the %q scope (token has: %s). Create a token with the %q scope and re-run 'bt init'",
		e.Provider, e.Required, strings.Join(e.Scopes, ", "), e.Required)
}

// Is returns true if the target error is ErrMissingScope
func (e *MissingScopeError) Is(target error) bool {
	return target == ErrMissingScope
}

// UnsupportedVersionError indicates metadata written by an incompatible basalt version
type UnsupportedVersionError struct {
	Version   string
	Supported string
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported metadata version %q (this basalt supports version %q). Upgrade basalt or migrate the metadata", e.Version, e.Supported)
}

// Is returns true if the target error is ErrCorrupted
func (e *UnsupportedVersionError) Is(target error) bool {
	return target == ErrCorrupted
}

// LockError indicates that a concurrent basalt invocation holds the metadata lock
type LockError struct {
	Path string
	PID  int
}

func (e *LockError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("another basalt operation is in progress (pid %d). If no other basalt is running, remove %s", e.PID, e.Path)
	}
	return fmt.Sprintf("another basalt operation is in progress. If no other basalt is running, remove %s", e.Path)
}

// Is returns true if the target error is ErrLocked
func (e *LockError) Is(target error) bool {
	return target == ErrLocked
}
