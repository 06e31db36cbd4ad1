package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	basalterrors "basalt.dev/basalt/internal/errors"
)

// githubRequiredScope is the scope a token needs to manage pull requests
const githubRequiredScope = "repo"

// GitHubClient implements Provider against the GitHub REST API using the
// go-github SDK. Review ids are pull request numbers rendered as strings.
type GitHubClient struct {
	owner    string
	repo     string
	client   *github.Client
	token    string
	scopes   []string
	verified bool
}

// NewGitHubClient creates a client for a repository identified by
// "owner/repo".
func NewGitHubClient(projectPath string) (*GitHubClient, error) {
	owner, repo, ok := strings.Cut(projectPath, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid GitHub project path %q, expected owner/repo", projectPath)
	}

	return &GitHubClient{
		owner:  owner,
		repo:   repo,
		client: github.NewClient(nil),
	}, nil
}

// Type returns the backend identity
func (c *GitHubClient) Type() Type {
	return GitHub
}

// RequiredScope returns the scope needed to manage pull requests
func (c *GitHubClient) RequiredScope() string {
	return githubRequiredScope
}

// SetToken sets the token without verifying it (used for cached tokens)
func (c *GitHubClient) SetToken(token string) {
	c.useToken(token)
	c.verified = false
}

func (c *GitHubClient) useToken(token string) {
	if token == c.token && c.client != nil {
		return
	}
	c.token = token
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	c.client = github.NewClient(oauth2.NewClient(context.Background(), ts))
}

// Authenticate verifies the token against GET /user and checks that it
// carries the repo scope. Verification is cached per client instance.
func (c *GitHubClient) Authenticate(ctx context.Context, token string) (*Credential, error) {
	if c.verified && token == c.token {
		return &Credential{Token: token, Scopes: c.scopes, Valid: true}, nil
	}

	c.useToken(token)

	scopes, err := c.VerifyScopes(ctx, token)
	if err != nil {
		return nil, err
	}

	if !containsScope(scopes, githubRequiredScope) {
		return nil, &basalterrors.MissingScopeError{
			Provider: "GitHub",
			Required: githubRequiredScope,
			Scopes:   scopes,
		}
	}

	c.scopes = scopes
	c.verified = true
	return &Credential{Token: token, Scopes: scopes, Valid: true}, nil
}

// VerifyScopes returns the classic-token scopes from the X-OAuth-Scopes
// response header of an authenticated request.
func (c *GitHubClient) VerifyScopes(ctx context.Context, token string) ([]string, error) {
	c.useToken(token)

	_, resp, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return nil, c.mapError("GET /user", resp, err)
	}

	header := resp.Header.Get("X-OAuth-Scopes")
	if header == "" {
		// Fine-grained tokens carry no scope header; treat a working token
		// as having the scope it just exercised.
		return []string{githubRequiredScope}, nil
	}

	var scopes []string
	for _, s := range strings.Split(header, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes, nil
}

// CreateReview opens a pull request
func (c *GitHubClient) CreateReview(ctx context.Context, opts CreateReviewOptions) (*Review, error) {
	pr, resp, err := c.client.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
		Title: github.String(opts.Title),
		Body:  github.String(opts.Description),
		Head:  github.String(opts.SourceBranch),
		Base:  github.String(opts.TargetBranch),
		Draft: github.Bool(opts.Draft),
	})
	if err != nil {
		return nil, c.mapError("create pull request", resp, err)
	}

	return prToReview(pr), nil
}

// UpdateReview edits an existing pull request by number
func (c *GitHubClient) UpdateReview(ctx context.Context, id string, opts UpdateReviewOptions) (*Review, error) {
	number, err := parsePRNumber(id)
	if err != nil {
		return nil, err
	}

	update := &github.PullRequest{}
	if opts.Title != nil {
		update.Title = opts.Title
	}
	if opts.Description != nil {
		update.Body = opts.Description
	}
	if opts.TargetBranch != nil {
		update.Base = &github.PullRequestBranch{Ref: opts.TargetBranch}
	}

	pr, resp, err := c.client.PullRequests.Edit(ctx, c.owner, c.repo, number, update)
	if err != nil {
		return nil, c.mapError("update pull request", resp, err)
	}

	return prToReview(pr), nil
}

// GetReview fetches a pull request by number
func (c *GitHubClient) GetReview(ctx context.Context, id string) (*Review, error) {
	number, err := parsePRNumber(id)
	if err != nil {
		return nil, err
	}

	pr, resp, err := c.client.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, c.mapError("get pull request", resp, err)
	}

	return prToReview(pr), nil
}

// FindReviewForBranch returns the open pull request whose head matches the
// branch, or nil when none exists
func (c *GitHubClient) FindReviewForBranch(ctx context.Context, branch string) (*Review, error) {
	prs, resp, err := c.client.PullRequests.List(ctx, c.owner, c.repo, &github.PullRequestListOptions{
		Head:  c.owner + ":" + branch,
		State: "open",
	})
	if err != nil {
		return nil, c.mapError("list pull requests", resp, err)
	}

	if len(prs) == 0 {
		return nil, nil
	}
	return prToReview(prs[0]), nil
}

// mapError classifies go-github errors onto the error taxonomy
func (c *GitHubClient) mapError(operation string, resp *github.Response, err error) error {
	if resp == nil {
		return basalterrors.NewTransientProviderError("GitHub", operation, 0, err.Error())
	}

	status := resp.StatusCode
	switch {
	case status >= 500:
		return basalterrors.NewTransientProviderError("GitHub", operation, status, err.Error())
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", basalterrors.ErrTokenExpired,
			basalterrors.NewRejectedProviderError("GitHub", operation, status, "invalid or expired token; re-run 'bt init' to re-authenticate"))
	default:
		return basalterrors.NewRejectedProviderError("GitHub", operation, status, err.Error())
	}
}

func prToReview(pr *github.PullRequest) *Review {
	state := ReviewOpen
	switch {
	case pr.GetMerged() || pr.MergedAt != nil:
		state = ReviewMerged
	case pr.GetState() == "closed":
		state = ReviewClosed
	}

	return &Review{
		ID:           "#" + strconv.Itoa(pr.GetNumber()),
		URL:          pr.GetHTMLURL(),
		Title:        pr.GetTitle(),
		Description:  pr.GetBody(),
		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		Draft:        pr.GetDraft(),
		State:        state,
	}
}

// parsePRNumber parses a review id of the form "#123" (or bare "123")
func parsePRNumber(id string) (int, error) {
	number, err := strconv.Atoi(strings.TrimPrefix(id, "#"))
	if err != nil {
		return 0, fmt.Errorf("invalid GitHub review id %q: %w", id, err)
	}
	return number, nil
}
