package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	basalterrors "basalt.dev/basalt/internal/errors"
	"basalt.dev/basalt/internal/git"
	"basalt.dev/basalt/internal/metadata"
	"basalt.dev/basalt/internal/provider"
	"basalt.dev/basalt/internal/runtime"
)

// newInitCmd creates the init command
func newInitCmd() *cobra.Command {
	var (
		providerName string
		baseBranch   string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize basalt in this repository and authenticate with the review provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := runtime.GetContext()
			if err != nil {
				return err
			}
			defer func() { _ = rc.Splog.Close() }()

			lock := rc.Store.NewLock()
			if err := lock.Acquire(); err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			// Re-running init updates the existing metadata in place. A
			// corrupted document is surfaced, not silently recreated:
			// recreating would discard the branch-to-review mappings.
			meta, err := rc.Store.Load()
			if err != nil {
				if !errors.Is(err, basalterrors.ErrNotInitialized) {
					return err
				}
				meta = nil
			}

			providerType, err := resolveProviderType(providerName, rc.Remote)
			if err != nil {
				return err
			}

			if baseBranch == "" {
				if meta != nil && meta.BaseBranch != "" {
					baseBranch = meta.BaseBranch
				} else {
					baseBranch = git.DetectDefaultBranch()
				}
			}
			if exists, err := git.BranchExists(baseBranch); err != nil {
				return err
			} else if !exists {
				return fmt.Errorf("base branch %q does not exist", baseBranch)
			}

			if meta == nil {
				meta = metadata.New(string(providerType), baseBranch)
			} else {
				meta.Provider = string(providerType)
				meta.BaseBranch = baseBranch
			}

			if err := rc.Store.Save(meta); err != nil {
				return err
			}

			// Authenticating here fronts the token chain so the first
			// submit doesn't stall on a prompt.
			if _, err := rc.BuildProvider(cmd.Context(), meta); err != nil {
				return err
			}

			rc.Splog.Info("Initialized basalt: provider=%s base=%s", providerType, baseBranch)
			rc.Splog.Tip("Create a branch, commit, then run 'bt submit'")
			return nil
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "", "review provider (gitlab or github); detected from the remote when omitted")
	cmd.Flags().StringVar(&baseBranch, "base-branch", "", "base branch stacks grow from; detected when omitted")

	return cmd
}

func resolveProviderType(name, remote string) (provider.Type, error) {
	if name != "" {
		return provider.ParseType(name)
	}

	remoteURL, err := git.GetRemoteURL(remote)
	if err != nil {
		return "", fmt.Errorf("cannot detect provider without a remote: %w", err)
	}
	return provider.DetectFromRemoteURL(remoteURL)
}
