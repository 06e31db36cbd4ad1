package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	basalterrors "basalt.dev/basalt/internal/errors"
	"basalt.dev/basalt/internal/metadata"
	"basalt.dev/basalt/internal/provider"
)

func TestRefreshReviewStates(t *testing.T) {
	mock := provider.NewMockProvider(provider.GitLab)
	review, err := mock.CreateReview(context.Background(), provider.CreateReviewOptions{
		SourceBranch: "branch-a",
		TargetBranch: "main",
		Title:        "Add the parser",
	})
	require.NoError(t, err)
	mock.SetReviewState(review.ID, provider.ReviewMerged)

	meta := metadata.New("gitlab", "main")
	bm := metadata.NewBranchMetadata("main")
	bm.SetReview(review.ID, review.URL)
	bm.ReviewState = "open"
	meta.SetBranch("branch-a", bm)

	report := &statusReport{
		Branches: []statusBranch{
			{Name: "branch-a", ReviewID: review.ID, ReviewState: "open", Submitted: true},
			{Name: "branch-b"},
		},
	}

	refreshReviewStates(context.Background(), mock, meta, report)

	require.Equal(t, "merged", report.Branches[0].ReviewState)
	require.Equal(t, "merged", meta.GetBranch("branch-a").ReviewState)
	require.Empty(t, report.Branches[1].ReviewState)

	// Lookup failures keep the state cached at the last submit
	mock.FailOn["GetReview"] = basalterrors.NewTransientProviderError("GitLab", "get", 503, "try later")
	report.Branches[0].ReviewState = "open"
	refreshReviewStates(context.Background(), mock, meta, report)
	require.Equal(t, "open", report.Branches[0].ReviewState)
}
