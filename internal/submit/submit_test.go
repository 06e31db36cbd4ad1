package submit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"basalt.dev/basalt/internal/errors"
	"basalt.dev/basalt/internal/metadata"
	"basalt.dev/basalt/internal/output"
	"basalt.dev/basalt/internal/provider"
	"basalt.dev/basalt/internal/stack"
	"basalt.dev/basalt/internal/submit"
)

// stubGit simulates just enough git for the pipeline: local tips, remote
// tips, and pushes that copy one to the other
type stubGit struct {
	local    map[string]string
	remote   map[string]string
	subjects map[string]string
	pushes   []string
}

func newStubGit() *stubGit {
	return &stubGit{
		local:    make(map[string]string),
		remote:   make(map[string]string),
		subjects: make(map[string]string),
	}
}

func (g *stubGit) GetRevision(branch string) (string, error) {
	return g.local[branch], nil
}

func (g *stubGit) GetRemoteRevision(remote, branch string) (string, error) {
	return g.remote[branch], nil
}

func (g *stubGit) HasUpstream(remote, branch string) (bool, error) {
	_, ok := g.remote[branch]
	return ok, nil
}

func (g *stubGit) PushBranch(ctx context.Context, branch, remote string, forceWithLease bool) error {
	g.pushes = append(g.pushes, branch)
	g.remote[branch] = g.local[branch]
	return nil
}

func (g *stubGit) GetCommitSubject(rev string) (string, error) {
	return g.subjects[rev], nil
}

func threeStack() *stack.Stack {
	return &stack.Stack{
		Base: "main",
		Branches: []stack.Branch{
			{Name: "branch-a", Commit: "sha-a"},
			{Name: "branch-b", Commit: "sha-b"},
			{Name: "branch-c", Commit: "sha-c"},
		},
	}
}

func countCalls(mock *provider.MockProvider, op string) int {
	n := 0
	for _, call := range mock.Calls {
		if call == op {
			n++
		}
	}
	return n
}

func newFixture(t *testing.T) (*stubGit, *provider.MockProvider, *metadata.Store, *metadata.RepositoryMetadata, *submit.Pipeline) {
	t.Helper()

	git := newStubGit()
	git.local["branch-a"] = "sha-a"
	git.local["branch-b"] = "sha-b"
	git.local["branch-c"] = "sha-c"
	git.subjects["sha-a"] = "Add the parser"
	git.subjects["sha-b"] = "Wire the parser in"
	git.subjects["sha-c"] = "Delete the old parser"

	mock := provider.NewMockProvider(provider.GitLab)
	store := metadata.NewStoreWithRefCheck(t.TempDir(), func(string) (bool, error) { return true, nil })
	meta := metadata.New("gitlab", "main")
	require.NoError(t, store.Save(meta))

	pipeline := submit.NewPipeline(git, mock, store, meta, "origin", output.NewSplog())
	return git, mock, store, meta, pipeline
}

func TestSubmit(t *testing.T) {
	t.Run("fresh stack creates one review per branch with chained targets", func(t *testing.T) {
		git, mock, store, meta, pipeline := newFixture(t)

		report, err := pipeline.Submit(context.Background(), threeStack(), submit.Options{})
		require.NoError(t, err)
		require.False(t, report.Failed())
		require.Len(t, report.Results, 3)

		for _, result := range report.Results {
			require.Equal(t, submit.OutcomeCreated, result.Outcome)
			require.True(t, result.Pushed)
			require.NotEmpty(t, result.ReviewID)
		}
		require.Equal(t, []string{"branch-a", "branch-b", "branch-c"}, git.pushes)
		require.Equal(t, 3, mock.ReviewCount())

		// Review targets chain downward
		reviewA, err := mock.GetReview(context.Background(), report.Results[0].ReviewID)
		require.NoError(t, err)
		require.Equal(t, "main", reviewA.TargetBranch)
		require.True(t, reviewA.Draft)
		require.Equal(t, "Add the parser", reviewA.Title)

		reviewB, err := mock.GetReview(context.Background(), report.Results[1].ReviewID)
		require.NoError(t, err)
		require.Equal(t, "branch-a", reviewB.TargetBranch)

		reviewC, err := mock.GetReview(context.Background(), report.Results[2].ReviewID)
		require.NoError(t, err)
		require.Equal(t, "branch-b", reviewC.TargetBranch)

		// Metadata has a matching entry per branch, persisted
		loaded, err := store.Load()
		require.NoError(t, err)
		for i, name := range []string{"branch-a", "branch-b", "branch-c"} {
			bm := loaded.GetBranch(name)
			require.NotNil(t, bm)
			require.Equal(t, report.Results[i].ReviewID, bm.ReviewID)
			require.Equal(t, "open", bm.ReviewState)
		}
		require.Equal(t, meta.GetBranch("branch-b").Parent, "branch-a")
	})

	t.Run("resubmitting an unchanged stack is a strict no-op", func(t *testing.T) {
		git, mock, _, _, pipeline := newFixture(t)

		first, err := pipeline.Submit(context.Background(), threeStack(), submit.Options{})
		require.NoError(t, err)

		// Descriptions settle within the first run: every stack footer
		// embeds the ids of the whole stack, including reviews that were
		// created later in the same run
		reviewA, err := mock.GetReview(context.Background(), first.Results[0].ReviewID)
		require.NoError(t, err)
		require.Contains(t, reviewA.Description, "!3 (branch-c)")
		require.Contains(t, reviewA.Description, "➡ !1 (branch-a)")

		pushesAfterFirst := len(git.pushes)
		updatesAfterFirst := countCalls(mock, "UpdateReview")

		report, err := pipeline.Submit(context.Background(), threeStack(), submit.Options{})
		require.NoError(t, err)
		require.Equal(t, pushesAfterFirst, len(git.pushes))
		require.Equal(t, 3, mock.ReviewCount())
		require.Equal(t, updatesAfterFirst, countCalls(mock, "UpdateReview"))
		for _, result := range report.Results {
			require.Equal(t, submit.OutcomeUnchanged, result.Outcome)
			require.False(t, result.Pushed)
		}
	})

	t.Run("changed branch is pushed with its review updated", func(t *testing.T) {
		git, mock, _, _, pipeline := newFixture(t)

		_, err := pipeline.Submit(context.Background(), threeStack(), submit.Options{})
		require.NoError(t, err)
		_, err = pipeline.Submit(context.Background(), threeStack(), submit.Options{})
		require.NoError(t, err)

		git.local["branch-b"] = "sha-b2"
		git.subjects["sha-b2"] = "Wire the parser in"

		s := threeStack()
		s.Branches[1].Commit = "sha-b2"

		report, err := pipeline.Submit(context.Background(), s, submit.Options{})
		require.NoError(t, err)

		require.Equal(t, submit.OutcomeUnchanged, report.Results[0].Outcome)
		require.Equal(t, submit.OutcomeUpdated, report.Results[1].Outcome)
		require.True(t, report.Results[1].Pushed)
		require.Equal(t, "sha-b2", git.remote["branch-b"])
		require.Equal(t, 3, mock.ReviewCount())
	})

	t.Run("a failed branch blocks the branches above it", func(t *testing.T) {
		_, mock, store, _, pipeline := newFixture(t)

		mock.FailOn["CreateReview"] = errors.NewRejectedProviderError("GitLab", "create", 422, "validation failed")

		s := threeStack()
		report, err := pipeline.Submit(context.Background(), s, submit.Options{})
		require.NoError(t, err)
		require.True(t, report.Failed())

		require.Equal(t, submit.OutcomeFailed, report.Results[0].Outcome)
		require.ErrorIs(t, report.Results[0].Err, errors.ErrRejected)
		require.Equal(t, submit.OutcomeSkipped, report.Results[1].Outcome)
		require.Equal(t, submit.OutcomeSkipped, report.Results[2].Outcome)

		// Nothing above the failure reached the store
		loaded, err := store.Load()
		require.NoError(t, err)
		require.Nil(t, loaded.GetBranch("branch-b"))
	})

	t.Run("transient provider failures are retried once", func(t *testing.T) {
		_, mock, _, _, pipeline := newFixture(t)

		mock.FailOn["CreateReview"] = errors.NewTransientProviderError("GitLab", "create", 503, "try later")
		mock.FailCount["CreateReview"] = 1 // first call fails, retry succeeds

		s := &stack.Stack{
			Base:     "main",
			Branches: []stack.Branch{{Name: "branch-a", Commit: "sha-a"}},
		}

		report, err := pipeline.Submit(context.Background(), s, submit.Options{})
		require.NoError(t, err)
		require.False(t, report.Failed())
		require.Equal(t, submit.OutcomeCreated, report.Results[0].Outcome)

		creates := 0
		for _, call := range mock.Calls {
			if call == "CreateReview" {
				creates++
			}
		}
		require.Equal(t, 2, creates)
	})

	t.Run("rejected provider failures are not retried", func(t *testing.T) {
		_, mock, _, _, pipeline := newFixture(t)

		mock.FailOn["CreateReview"] = errors.NewRejectedProviderError("GitLab", "create", 422, "bad request")

		s := &stack.Stack{
			Base:     "main",
			Branches: []stack.Branch{{Name: "branch-a", Commit: "sha-a"}},
		}

		report, err := pipeline.Submit(context.Background(), s, submit.Options{})
		require.NoError(t, err)
		require.True(t, report.Failed())

		creates := 0
		for _, call := range mock.Calls {
			if call == "CreateReview" {
				creates++
			}
		}
		require.Equal(t, 1, creates)
	})

	t.Run("ready flips an existing draft review", func(t *testing.T) {
		_, mock, _, _, pipeline := newFixture(t)

		s := &stack.Stack{
			Base:     "main",
			Branches: []stack.Branch{{Name: "branch-a", Commit: "sha-a"}},
		}

		first, err := pipeline.Submit(context.Background(), s, submit.Options{})
		require.NoError(t, err)
		review, err := mock.GetReview(context.Background(), first.Results[0].ReviewID)
		require.NoError(t, err)
		require.True(t, review.Draft)

		_, err = pipeline.Submit(context.Background(), s, submit.Options{Ready: true})
		require.NoError(t, err)

		review, err = mock.GetReview(context.Background(), first.Results[0].ReviewID)
		require.NoError(t, err)
		require.False(t, review.Draft)
	})

	t.Run("a merged review is replaced instead of reused", func(t *testing.T) {
		_, mock, _, _, pipeline := newFixture(t)

		s := &stack.Stack{
			Base:     "main",
			Branches: []stack.Branch{{Name: "branch-a", Commit: "sha-a"}},
		}

		first, err := pipeline.Submit(context.Background(), s, submit.Options{})
		require.NoError(t, err)
		mock.SetReviewState(first.Results[0].ReviewID, provider.ReviewMerged)

		second, err := pipeline.Submit(context.Background(), s, submit.Options{})
		require.NoError(t, err)
		require.Equal(t, submit.OutcomeCreated, second.Results[0].Outcome)
		require.NotEqual(t, first.Results[0].ReviewID, second.Results[0].ReviewID)
	})
}
