package stack_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"basalt.dev/basalt/internal/errors"
	"basalt.dev/basalt/internal/stack"
	"basalt.dev/basalt/testhelpers"
)

func TestDetect(t *testing.T) {
	t.Run("detects a linear stack base-first", func(t *testing.T) {
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

		require.NoError(t, scene.Repo.CreateAndCheckoutBranch("branch-a"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("a", "a"))
		require.NoError(t, scene.Repo.CreateAndCheckoutBranch("branch-b"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("b", "b"))
		require.NoError(t, scene.Repo.CreateAndCheckoutBranch("branch-c"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("c", "c"))

		s, err := stack.Detect("branch-c", "main")
		require.NoError(t, err)
		require.Equal(t, "main", s.Base)
		require.Equal(t, []string{"branch-a", "branch-b", "branch-c"}, s.Names())
	})

	t.Run("branch with no commits past base is empty", func(t *testing.T) {
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

		require.NoError(t, scene.Repo.CreateAndCheckoutBranch("branch-a"))

		_, err := stack.Detect("branch-a", "main")
		require.ErrorIs(t, err, errors.ErrEmptyStack)
	})

	t.Run("detecting from the base branch is empty", func(t *testing.T) {
		testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

		_, err := stack.Detect("main", "main")
		require.ErrorIs(t, err, errors.ErrEmptyStack)
	})

	t.Run("rejects merge commits in the stack range", func(t *testing.T) {
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

		require.NoError(t, scene.Repo.CreateAndCheckoutBranch("side"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("side", "side"))
		require.NoError(t, scene.Repo.CheckoutBranch("main"))
		require.NoError(t, scene.Repo.CreateAndCheckoutBranch("branch-a"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("a", "a"))
		require.NoError(t, scene.Repo.MergeBranch("side"))

		_, err := stack.Detect("branch-a", "main")
		require.ErrorIs(t, err, errors.ErrMergeCommit)

		var mergeErr *errors.MergeCommitError
		require.ErrorAs(t, err, &mergeErr)
		require.Equal(t, "branch-a", mergeErr.BranchName)
		require.NotEmpty(t, mergeErr.CommitSHA)
	})

	t.Run("unknown branch", func(t *testing.T) {
		testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

		_, err := stack.Detect("nope", "main")
		require.ErrorIs(t, err, errors.ErrBranchNotFound)
	})

	t.Run("intermediate branch tips are picked up", func(t *testing.T) {
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

		require.NoError(t, scene.Repo.CreateAndCheckoutBranch("branch-a"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("a1", "a1"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("a2", "a2"))
		require.NoError(t, scene.Repo.CreateAndCheckoutBranch("branch-b"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("b", "b"))

		s, err := stack.Detect("branch-b", "main")
		require.NoError(t, err)
		require.Equal(t, []string{"branch-a", "branch-b"}, s.Names())

		aTip, err := scene.Repo.GetRevision("branch-a")
		require.NoError(t, err)
		require.Equal(t, aTip, s.Branches[0].Commit)
	})
}

func TestDetectFromCurrent(t *testing.T) {
	t.Run("uses the checked-out branch", func(t *testing.T) {
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

		require.NoError(t, scene.Repo.CreateAndCheckoutBranch("branch-a"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("a", "a"))

		s, err := stack.DetectFromCurrent("main")
		require.NoError(t, err)
		require.Equal(t, []string{"branch-a"}, s.Names())
	})

	t.Run("fails on detached HEAD", func(t *testing.T) {
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

		rev, err := scene.Repo.GetRevision("main")
		require.NoError(t, err)
		require.NoError(t, scene.Repo.RunGitCommand("checkout", rev))

		_, err = stack.DetectFromCurrent("main")
		require.ErrorIs(t, err, errors.ErrNotOnBranch)
	})
}

func TestStackHelpers(t *testing.T) {
	s := &stack.Stack{
		Base: "main",
		Branches: []stack.Branch{
			{Name: "a"},
			{Name: "b"},
		},
	}

	require.Equal(t, "main", s.ParentOf(0))
	require.Equal(t, "a", s.ParentOf(1))
	require.Equal(t, "b", s.Tip().Name)
	require.True(t, s.Contains("a"))
	require.False(t, s.Contains("main"))
}
