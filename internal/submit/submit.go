// Package submit pushes a stack's branches and creates or updates one
// review per branch, bottom to top. Each branch's review targets its
// parent branch, so reviewers always see a single branch's worth of diff.
package submit

import (
	"context"
	"fmt"

	"basalt.dev/basalt/internal/metadata"
	"basalt.dev/basalt/internal/output"
	"basalt.dev/basalt/internal/provider"
	"basalt.dev/basalt/internal/stack"
)

// Outcome is what happened to one branch during submission
type Outcome string

const (
	// OutcomeCreated means a new review was opened
	OutcomeCreated Outcome = "created"
	// OutcomeUpdated means an existing review was refreshed
	OutcomeUpdated Outcome = "updated"
	// OutcomeUnchanged means nothing needed to change
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeFailed means the branch could not be submitted
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped means a lower branch failed, so this one was not tried
	OutcomeSkipped Outcome = "skipped"
)

// BranchResult is the per-branch outcome of a submission run
type BranchResult struct {
	Branch    string
	Outcome   Outcome
	ReviewID  string
	ReviewURL string
	Pushed    bool
	Err       error
}

// Report summarizes a submission run
type Report struct {
	Results []BranchResult
}

// Failed reports whether any branch failed
func (r *Report) Failed() bool {
	for _, result := range r.Results {
		if result.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}

// Options tune a submission run
type Options struct {
	// Ready marks reviews as ready instead of draft
	Ready bool
}

// Pipeline submits a stack against one provider
type Pipeline struct {
	git      GitOps
	provider provider.Provider
	store    *metadata.Store
	meta     *metadata.RepositoryMetadata
	remote   string
	splog    *output.Splog
}

// NewPipeline wires a submission pipeline
func NewPipeline(gitOps GitOps, p provider.Provider, store *metadata.Store, meta *metadata.RepositoryMetadata, remote string, splog *output.Splog) *Pipeline {
	return &Pipeline{
		git:      gitOps,
		provider: p,
		store:    store,
		meta:     meta,
		remote:   remote,
		splog:    splog,
	}
}

// Submit processes the stack bottom to top. Metadata is saved after every
// branch, so an interrupted run loses at most the in-flight branch. When a
// branch fails, branches above it are skipped: their reviews would target
// an unpushed or stale parent.
func (p *Pipeline) Submit(ctx context.Context, s *stack.Stack, opts Options) (*Report, error) {
	report := &Report{}
	blocked := false
	reviews := make(map[string]*provider.Review)

	for i, branch := range s.Branches {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if blocked {
			report.Results = append(report.Results, BranchResult{
				Branch:  branch.Name,
				Outcome: OutcomeSkipped,
			})
			continue
		}

		result, review := p.submitBranch(ctx, s, i, opts)
		if review != nil {
			reviews[branch.Name] = review
		}
		report.Results = append(report.Results, result)

		if result.Outcome == OutcomeFailed {
			p.splog.Error("Failed to submit %s: %v", branch.Name, result.Err)
			blocked = true
		}
	}

	p.settleDescriptions(ctx, s, reviews, report)

	return report, nil
}

func (p *Pipeline) submitBranch(ctx context.Context, s *stack.Stack, index int, opts Options) (BranchResult, *provider.Review) {
	branch := s.Branches[index]
	target := s.ParentOf(index)
	result := BranchResult{Branch: branch.Name}

	localTip, err := p.git.GetRevision(branch.Name)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result, nil
	}

	pushed, err := p.pushIfNeeded(ctx, branch.Name, localTip)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result, nil
	}
	result.Pushed = pushed

	review, created, err := p.ensureReview(ctx, s, branch.Name, target, localTip, opts)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result, nil
	}

	result.ReviewID = review.ID
	result.ReviewURL = review.URL

	bm := p.meta.GetBranch(branch.Name)
	if bm == nil {
		bm = metadata.NewBranchMetadata(target)
	}
	bm.Parent = target
	p.meta.SetBranch(branch.Name, bm)
	if bm.ReviewID != review.ID || bm.ReviewURL != review.URL {
		bm.SetReview(review.ID, review.URL)
	}
	bm.ReviewState = string(review.State)
	if err := p.store.Save(p.meta); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result, nil
	}

	switch {
	case created:
		result.Outcome = OutcomeCreated
		p.splog.Info("Created %s for %s: %s", review.ID, branch.Name, review.URL)
	case pushed:
		result.Outcome = OutcomeUpdated
		p.splog.Info("Updated %s for %s", review.ID, branch.Name)
	default:
		result.Outcome = OutcomeUnchanged
		p.splog.Debug("%s unchanged, nothing to do", branch.Name)
	}
	return result, review
}

// settleDescriptions rewrites the stack footer of every review touched in
// this run now that all review ids are recorded. Reviews created earlier in
// the same run were described before the ids above them existed; settling
// here keeps a resubmit of the unchanged stack a strict no-op.
func (p *Pipeline) settleDescriptions(ctx context.Context, s *stack.Stack, reviews map[string]*provider.Review, report *Report) {
	for i := range report.Results {
		result := &report.Results[i]
		review := reviews[result.Branch]
		if review == nil {
			continue
		}

		description := p.describeStack(s, result.Branch)
		if review.Description == description {
			continue
		}

		_, err := provider.WithRetry(ctx, func() (*provider.Review, error) {
			return p.provider.UpdateReview(ctx, review.ID, provider.UpdateReviewOptions{
				Description: &description,
			})
		})
		if err != nil {
			p.splog.Error("Failed to update the stack footer of %s: %v", review.ID, err)
			result.Outcome = OutcomeFailed
			result.Err = err
		}
	}
}

// pushIfNeeded pushes the branch when the local tip differs from the
// remote one. First pushes set upstream; subsequent pushes use
// --force-with-lease so a tip moved by someone else is never clobbered.
func (p *Pipeline) pushIfNeeded(ctx context.Context, branch, localTip string) (bool, error) {
	remoteTip, err := p.git.GetRemoteRevision(p.remote, branch)
	if err != nil {
		return false, err
	}
	if remoteTip == localTip {
		return false, nil
	}

	hasUpstream, err := p.git.HasUpstream(p.remote, branch)
	if err != nil {
		return false, err
	}

	if err := p.git.PushBranch(ctx, branch, p.remote, hasUpstream); err != nil {
		return false, err
	}
	return true, nil
}

// ensureReview finds or creates the review for a branch and brings its
// target, title, and description up to date. Returns created=true when a
// new review was opened.
func (p *Pipeline) ensureReview(ctx context.Context, s *stack.Stack, branch, target, localTip string, opts Options) (*provider.Review, bool, error) {
	title, err := p.git.GetCommitSubject(localTip)
	if err != nil || title == "" {
		title = branch
	}
	description := p.describeStack(s, branch)

	// Known review id from metadata wins; otherwise adopt an open review
	// the provider already has for this branch.
	var existing *provider.Review
	if bm := p.meta.GetBranch(branch); bm != nil && bm.ReviewID != "" {
		existing, err = provider.WithRetry(ctx, func() (*provider.Review, error) {
			return p.provider.GetReview(ctx, bm.ReviewID)
		})
		if err != nil {
			return nil, false, err
		}
		if existing != nil && existing.State != provider.ReviewOpen {
			p.splog.Warn("%s for %s is %s; opening a new review", bm.ReviewID, branch, existing.State)
			existing = nil
		}
	}
	if existing == nil {
		existing, err = provider.WithRetry(ctx, func() (*provider.Review, error) {
			return p.provider.FindReviewForBranch(ctx, branch)
		})
		if err != nil {
			return nil, false, err
		}
	}

	if existing == nil {
		review, err := provider.WithRetry(ctx, func() (*provider.Review, error) {
			return p.provider.CreateReview(ctx, provider.CreateReviewOptions{
				SourceBranch: branch,
				TargetBranch: target,
				Title:        title,
				Description:  description,
				Draft:        !opts.Ready,
			})
		})
		if err != nil {
			return nil, false, err
		}
		return review, true, nil
	}

	update := provider.UpdateReviewOptions{}
	if existing.TargetBranch != target {
		update.TargetBranch = &target
	}
	if existing.Description != description {
		update.Description = &description
	}
	if opts.Ready && existing.Draft {
		ready := false
		update.Draft = &ready
		update.Title = &title
	}

	if update.TargetBranch == nil && update.Description == nil && update.Draft == nil {
		return existing, false, nil
	}

	review, err := provider.WithRetry(ctx, func() (*provider.Review, error) {
		return p.provider.UpdateReview(ctx, existing.ID, update)
	})
	if err != nil {
		return nil, false, err
	}
	return review, false, nil
}

// describeStack renders the stack footer appended to every review
// description. The output depends only on the stack's branch list and
// recorded review ids, so resubmitting an unchanged stack is a no-op.
func (p *Pipeline) describeStack(s *stack.Stack, current string) string {
	footer := "---\n**Stack** (top to bottom):\n"
	for i := len(s.Branches) - 1; i >= 0; i-- {
		name := s.Branches[i].Name
		ref := name
		if bm := p.meta.GetBranch(name); bm != nil && bm.ReviewID != "" {
			ref = fmt.Sprintf("%s (%s)", bm.ReviewID, name)
		}
		marker := "  "
		if name == current {
			marker = "➡ "
		}
		footer += fmt.Sprintf("- %s%s\n", marker, ref)
	}
	footer += fmt.Sprintf("- %sbase: %s\n", "  ", s.Base)
	return footer
}
