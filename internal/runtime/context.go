// Package runtime provides a context type that holds the stores and logger
// for use throughout the application. This avoids passing multiple parameters.
package runtime

import (
	"context"
	"fmt"

	"basalt.dev/basalt/internal/credentials"
	"basalt.dev/basalt/internal/git"
	"basalt.dev/basalt/internal/metadata"
	"basalt.dev/basalt/internal/output"
	"basalt.dev/basalt/internal/provider"
)

// Context provides access to the metadata store and output for commands
type Context struct {
	Splog    *output.Splog
	Store    *metadata.Store
	RepoRoot string
	Remote   string
}

// GetContext builds the command context for the current repository
func GetContext() (*Context, error) {
	if !git.IsGitAvailable() {
		return nil, fmt.Errorf("git is not available on PATH")
	}

	repoRoot, err := git.GetRepoRoot()
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	git.SetWorkingDir(repoRoot)

	gitDir, err := git.GetGitDir()
	if err != nil {
		return nil, err
	}

	splog, err := output.NewSplogWithFile(output.LogFilePath())
	if err != nil {
		splog = output.NewSplog()
	}

	return &Context{
		Splog:    splog,
		Store:    metadata.NewStore(gitDir),
		RepoRoot: repoRoot,
		Remote:   git.GetRemote(),
	}, nil
}

// LoadMetadata loads repository metadata, surfacing the init hint on a
// repository that was never initialized
func (c *Context) LoadMetadata() (*metadata.RepositoryMetadata, error) {
	return c.Store.Load()
}

// BuildProvider constructs the review provider recorded in metadata and
// resolves a verified token for it. The resolved token is written back to
// the metadata cache so the next run skips the chain.
func (c *Context) BuildProvider(ctx context.Context, meta *metadata.RepositoryMetadata) (provider.Provider, error) {
	providerType, err := provider.ParseType(meta.Provider)
	if err != nil {
		return nil, err
	}

	baseURL := meta.Cache.BaseURL
	projectPath := meta.Cache.ProjectPath
	if baseURL == "" || projectPath == "" {
		remoteURL, err := git.GetRemoteURL(c.Remote)
		if err != nil {
			return nil, err
		}
		baseURL, projectPath, err = provider.ParseRemoteURL(remoteURL)
		if err != nil {
			return nil, err
		}
		meta.Cache.BaseURL = baseURL
		meta.Cache.ProjectPath = projectPath
	}

	p, err := provider.New(providerType, baseURL, projectPath)
	if err != nil {
		return nil, err
	}

	resolver := credentials.NewResolver(p, meta.Cache.AuthToken, c.Splog)
	token, err := resolver.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}

	if token != meta.Cache.AuthToken {
		meta.Cache.AuthToken = token
		if err := c.Store.Save(meta); err != nil {
			c.Splog.Debug("failed to cache token: %v", err)
		}
	}

	return p, nil
}
