package git_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"basalt.dev/basalt/internal/git"
	"basalt.dev/basalt/testhelpers"
)

func TestCommitsBetween(t *testing.T) {
	t.Run("returns stack commits tip-first", func(t *testing.T) {
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

		require.NoError(t, scene.Repo.CreateAndCheckoutBranch("feature"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("first", "1"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("second", "2"))

		mainRev, err := scene.Repo.GetRevision("main")
		require.NoError(t, err)
		featureRev, err := scene.Repo.GetRevision("feature")
		require.NoError(t, err)

		commits, err := git.CommitsBetween(mainRev, featureRev)
		require.NoError(t, err)
		require.Len(t, commits, 2)
		require.Equal(t, "second", commits[0].Subject)
		require.Equal(t, "first", commits[1].Subject)
		require.Equal(t, 1, commits[0].NumParents)
	})

	t.Run("merge commits report their parent count", func(t *testing.T) {
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

		require.NoError(t, scene.Repo.CreateAndCheckoutBranch("side"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("side", "side"))
		require.NoError(t, scene.Repo.CheckoutBranch("main"))
		require.NoError(t, scene.Repo.CreateAndCheckoutBranch("feature"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("feature", "f"))
		require.NoError(t, scene.Repo.MergeBranch("side"))

		mainRev, err := scene.Repo.GetRevision("main")
		require.NoError(t, err)
		featureRev, err := scene.Repo.GetRevision("feature")
		require.NoError(t, err)

		commits, err := git.CommitsBetween(mainRev, featureRev)
		require.NoError(t, err)
		require.Equal(t, 2, commits[0].NumParents)
	})
}

func TestGetMergeBase(t *testing.T) {
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	forkRev, err := scene.Repo.GetRevision("main")
	require.NoError(t, err)

	require.NoError(t, scene.Repo.CreateAndCheckoutBranch("feature"))
	require.NoError(t, scene.Repo.CreateChangeAndCommit("feature", "f"))
	require.NoError(t, scene.Repo.CheckoutBranch("main"))
	require.NoError(t, scene.Repo.CreateChangeAndCommit("main moves", "m"))

	base, err := git.GetMergeBase("feature", "main")
	require.NoError(t, err)
	require.Equal(t, forkRev, base)
}

func TestIsAncestor(t *testing.T) {
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	require.NoError(t, scene.Repo.CreateAndCheckoutBranch("feature"))
	require.NoError(t, scene.Repo.CreateChangeAndCommit("feature", "f"))

	ok, err := git.IsAncestor("main", "feature")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = git.IsAncestor("feature", "main")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBranchTips(t *testing.T) {
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	require.NoError(t, scene.Repo.CreateAndCheckoutBranch("feature"))
	require.NoError(t, scene.Repo.CreateChangeAndCommit("feature", "f"))

	tips, err := git.BranchTips()
	require.NoError(t, err)

	featureRev, err := scene.Repo.GetRevision("feature")
	require.NoError(t, err)
	require.Contains(t, tips[featureRev], "feature")
}
