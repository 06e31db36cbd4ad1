// Package restack rebases every branch of a stack onto its refreshed
// parent, bottom to top. Each branch is replayed from its old fork point
// onto the parent's new tip, so reparented commits are never duplicated.
package restack

import (
	"context"
	"fmt"

	"basalt.dev/basalt/internal/errors"
	"basalt.dev/basalt/internal/git"
	"basalt.dev/basalt/internal/output"
	"basalt.dev/basalt/internal/stack"
)

// BranchState is where a branch sits in the restack run
type BranchState string

const (
	// StatePending means the branch has not been processed yet
	StatePending BranchState = "pending"
	// StateUpToDate means the branch was already based on its parent's tip
	StateUpToDate BranchState = "up-to-date"
	// StateRebased means the branch was successfully rebased
	StateRebased BranchState = "rebased"
	// StateConflicted means the rebase halted on this branch with conflicts
	StateConflicted BranchState = "conflicted"
)

// BranchResult is the per-branch outcome of a restack run
type BranchResult struct {
	Branch string
	State  BranchState
	OldTip string
	NewTip string
}

// Report summarizes a restack run. Completed is false when the run halted
// on a conflict; ConflictPaths then names the unmerged files.
type Report struct {
	Results       []BranchResult
	Completed     bool
	ConflictPaths []string
}

// PushQueue returns the branches whose tips changed and therefore need a
// force push. Branches the run never reached are excluded.
func (r *Report) PushQueue() []string {
	var queue []string
	for _, result := range r.Results {
		if result.State == StateRebased && result.NewTip != result.OldTip {
			queue = append(queue, result.Branch)
		}
	}
	return queue
}

// Orchestrator drives the sequential rebase of a stack
type Orchestrator struct {
	splog    *output.Splog
	stateDir string
}

// NewOrchestrator creates an orchestrator persisting interrupted-run state
// under stateDir (the repository's basalt metadata directory)
func NewOrchestrator(stateDir string, splog *output.Splog) *Orchestrator {
	return &Orchestrator{splog: splog, stateDir: stateDir}
}

// Run restacks the whole stack. Preconditions: no rebase already in
// progress and a clean working tree. On conflict the run halts, branches
// below the conflict keep their rebased tips, branches above are left
// untouched, and enough state is persisted for Continue to resume.
func (o *Orchestrator) Run(ctx context.Context, s *stack.Stack) (*Report, error) {
	if git.IsRebaseInProgress(ctx) {
		return nil, fmt.Errorf("%w: finish it with 'bt restack --continue' or drop it with 'bt restack --abort'", errors.ErrRebaseInProgress)
	}

	dirty, err := git.HasUncommittedChanges(ctx)
	if err != nil {
		return nil, err
	}
	if dirty {
		return nil, fmt.Errorf("%w: commit or stash before restacking", errors.ErrUncommittedChanges)
	}

	baseTip, err := git.GetRevision(s.Base)
	if err != nil {
		return nil, err
	}

	// Capture every tip before touching anything. Fork points are computed
	// against these pre-rebase tips, not the moving refs.
	oldTips := make(map[string]string, len(s.Branches))
	for _, branch := range s.Branches {
		tip, err := git.GetRevision(branch.Name)
		if err != nil {
			return nil, err
		}
		oldTips[branch.Name] = tip
	}

	report := &Report{}
	for _, branch := range s.Branches {
		report.Results = append(report.Results, BranchResult{
			Branch: branch.Name,
			State:  StatePending,
			OldTip: oldTips[branch.Name],
		})
	}

	return o.run(ctx, s, baseTip, oldTips, report, 0)
}

// run processes branches from startIndex onward. oldParent/newParent tips
// for branch i come from branch i-1 (or the base for i == 0).
func (o *Orchestrator) run(ctx context.Context, s *stack.Stack, baseTip string, oldTips map[string]string, report *Report, startIndex int) (*Report, error) {
	oldParentTip := baseTip
	newParentTip := baseTip
	if startIndex > 0 {
		prev := s.Branches[startIndex-1].Name
		oldParentTip = oldTips[prev]
		newParentTip = report.Results[startIndex-1].NewTip
	}

	for i := startIndex; i < len(s.Branches); i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		name := s.Branches[i].Name
		oldTip := oldTips[name]
		result := &report.Results[i]

		fork, err := git.GetMergeBase(oldTip, oldParentTip)
		if err != nil {
			return report, fmt.Errorf("failed to find fork point of %s: %w", name, err)
		}

		if fork == newParentTip {
			o.splog.Debug("%s already based on %s, skipping", name, newParentTip[:7])
			result.State = StateUpToDate
			result.NewTip = oldTip
			oldParentTip = oldTip
			newParentTip = oldTip
			continue
		}

		o.splog.Info("Restacking %s...", name)
		outcome, newTip, err := git.Rebase(ctx, name, newParentTip, fork)
		if err != nil {
			return report, err
		}

		if outcome == git.RebaseConflict {
			result.State = StateConflicted
			paths, _ := git.ConflictingPaths(ctx)
			report.ConflictPaths = paths

			if err := o.saveState(s, baseTip, oldTips, report, i); err != nil {
				return report, err
			}

			return report, &errors.RebaseConflictError{
				BranchName: name,
				Paths:      paths,
			}
		}

		result.State = StateRebased
		result.NewTip = newTip
		oldParentTip = oldTip
		newParentTip = newTip
	}

	report.Completed = true
	o.clearState()
	return report, nil
}

// Continue resumes a restack halted by a conflict, after the user resolved
// the conflicted files and staged them
func (o *Orchestrator) Continue(ctx context.Context) (*Report, error) {
	state, err := o.loadState()
	if err != nil {
		return nil, err
	}

	if !git.IsRebaseInProgress(ctx) {
		return nil, fmt.Errorf("no rebase in progress; nothing to continue")
	}

	outcome, newTip, err := git.RebaseContinue(ctx)
	if err != nil {
		return nil, err
	}
	if outcome == git.RebaseConflict {
		paths, _ := git.ConflictingPaths(ctx)
		report := state.toReport()
		report.ConflictPaths = paths
		return report, &errors.RebaseConflictError{
			BranchName: state.Branches[state.CurrentIndex].Name,
			Paths:      paths,
		}
	}

	// The rebase ran detached, so the branch ref still points at the old
	// tip. Move it and put the user back on a branch.
	current := state.Branches[state.CurrentIndex]
	if err := git.UpdateBranchRef(ctx, current.Name, newTip); err != nil {
		return nil, err
	}
	if err := git.CheckoutBranch(ctx, current.Name); err != nil {
		return nil, err
	}

	s, oldTips, report := state.restore()
	report.Results[state.CurrentIndex].State = StateRebased
	report.Results[state.CurrentIndex].NewTip = newTip

	return o.run(ctx, s, state.BaseTip, oldTips, report, state.CurrentIndex+1)
}

// Abort drops the in-progress rebase and forgets the interrupted run.
// Branches already rebased keep their new tips.
func (o *Orchestrator) Abort(ctx context.Context) error {
	if git.IsRebaseInProgress(ctx) {
		if err := git.RebaseAbort(ctx); err != nil {
			return err
		}
	}

	state, err := o.loadState()
	if err == nil && state.CurrentIndex < len(state.Branches) {
		// Leave the user on the branch the conflict happened on
		_ = git.CheckoutBranch(ctx, state.Branches[state.CurrentIndex].Name)
	}

	o.clearState()
	return nil
}
