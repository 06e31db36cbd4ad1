package cli

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	basalterrors "basalt.dev/basalt/internal/errors"
	"basalt.dev/basalt/internal/metadata"
	"basalt.dev/basalt/internal/output"
	"basalt.dev/basalt/internal/provider"
)

// statusBranch is one row of bt status output
type statusBranch struct {
	Name        string `json:"name"`
	Tip         string `json:"tip"`
	ReviewID    string `json:"review_id,omitempty"`
	ReviewURL   string `json:"review_url,omitempty"`
	ReviewState string `json:"review_state,omitempty"`
	Submitted   bool   `json:"submitted"`
}

type statusReport struct {
	Provider      string         `json:"provider"`
	BaseBranch    string         `json:"base_branch"`
	Branches      []statusBranch `json:"branches"`
	StaleMetadata []string       `json:"stale_metadata,omitempty"`
}

// newStatusCmd creates the status command
func newStatusCmd() *cobra.Command {
	var (
		branch   string
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current stack and its reviews",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := getInitializedContext()
			if err != nil {
				return err
			}
			defer func() { _ = rc.Splog.Close() }()

			meta, err := rc.LoadMetadata()
			if err != nil {
				return err
			}

			s, err := detectStack(branch, meta.BaseBranch)
			if err != nil && !errors.Is(err, basalterrors.ErrEmptyStack) {
				return err
			}

			report := statusReport{
				Provider:   meta.Provider,
				BaseBranch: meta.BaseBranch,
			}

			if s != nil {
				for _, b := range s.Branches {
					row := statusBranch{Name: b.Name, Tip: shortSHA(b.Commit)}
					if bm := meta.GetBranch(b.Name); bm != nil && bm.ReviewID != "" {
						row.ReviewID = bm.ReviewID
						row.ReviewURL = bm.ReviewURL
						row.ReviewState = bm.ReviewState
						row.Submitted = true
					}
					report.Branches = append(report.Branches, row)
				}
			}

			// Refresh review states from the provider when a token is
			// already cached; without one the cached state from the last
			// submit stands, and status stays non-interactive.
			if meta.Cache.AuthToken != "" {
				if p, perr := rc.BuildProvider(cmd.Context(), meta); perr == nil {
					refreshReviewStates(cmd.Context(), p, meta, &report)
					if serr := rc.Store.Save(meta); serr != nil {
						rc.Splog.Debug("failed to cache review states: %v", serr)
					}
				}
			}

			// Metadata entries whose branch no longer exists locally
			for name, bm := range meta.Branches {
				if bm.Stale {
					report.StaleMetadata = append(report.StaleMetadata, name)
				}
			}

			if jsonMode {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				rc.Splog.Page(string(data) + "\n")
				return nil
			}

			printStatus(rc.Splog, &report)
			return nil
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "", "top branch of the stack; defaults to the current branch")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "emit machine-readable output")

	return cmd
}

// refreshReviewStates asks the provider for the current lifecycle state of
// every submitted branch and records it both in the report and in the
// metadata cache. Lookup failures leave the cached state in place.
func refreshReviewStates(ctx context.Context, p provider.Provider, meta *metadata.RepositoryMetadata, report *statusReport) {
	for i := range report.Branches {
		row := &report.Branches[i]
		if row.ReviewID == "" {
			continue
		}

		review, err := p.GetReview(ctx, row.ReviewID)
		if err != nil || review == nil {
			continue
		}

		row.ReviewState = string(review.State)
		if bm := meta.GetBranch(row.Name); bm != nil {
			bm.ReviewState = string(review.State)
		}
	}
}

func printStatus(splog *output.Splog, report *statusReport) {
	splog.Info("Provider: %s", report.Provider)
	splog.Info("Base:     %s", report.BaseBranch)
	splog.Newline()

	if len(report.Branches) == 0 {
		splog.Info("No stack on the current branch")
	}

	// Top of the stack first, matching how reviews chain downward
	for i := len(report.Branches) - 1; i >= 0; i-- {
		row := report.Branches[i]
		if row.Submitted {
			splog.Info("  %s %s %s%s  %s", output.Cyan(row.Tip), output.Bold(row.Name), row.ReviewID, reviewStateLabel(row.ReviewState), output.Dim(row.ReviewURL))
		} else {
			splog.Info("  %s %s %s", output.Cyan(row.Tip), output.Bold(row.Name), output.Dim("(not submitted)"))
		}
	}
	splog.Info("  %s", output.Dim(report.BaseBranch))

	for _, name := range report.StaleMetadata {
		splog.Newline()
		splog.Warn("Metadata for %s points at a branch that no longer exists", name)
	}
}

func reviewStateLabel(state string) string {
	switch state {
	case string(provider.ReviewMerged):
		return " " + output.Green("[merged]")
	case string(provider.ReviewClosed):
		return " " + output.Red("[closed]")
	case string(provider.ReviewOpen):
		return " " + output.Dim("[open]")
	default:
		return ""
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
