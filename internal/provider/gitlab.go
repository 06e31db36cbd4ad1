package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	basalterrors "basalt.dev/basalt/internal/errors"
)

// gitlabRequiredScope is the scope a token needs to manage merge requests
const gitlabRequiredScope = "api"

// GitLabClient implements Provider against the GitLab REST v4 API.
// Transport failures map to the Transient error category, request failures
// to Rejected, so the pipeline can decide whether a retry is sensible.
type GitLabClient struct {
	apiURL      string
	projectPath string
	httpClient  *http.Client
	token       string
	scopes      []string
	verified    bool
}

// NewGitLabClient creates a client for a GitLab instance.
// baseURL is the instance root (e.g. "https://gitlab.com"); projectPath is
// the URL-encoded-to-be project path (e.g. "group/repo").
func NewGitLabClient(baseURL, projectPath string) *GitLabClient {
	return &GitLabClient{
		apiURL:      strings.TrimRight(baseURL, "/") + "/api/v4",
		projectPath: projectPath,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Type returns the backend identity
func (c *GitLabClient) Type() Type {
	return GitLab
}

// RequiredScope returns the scope needed to manage merge requests
func (c *GitLabClient) RequiredScope() string {
	return gitlabRequiredScope
}

// SetToken sets the token without verifying it (used for cached tokens)
func (c *GitLabClient) SetToken(token string) {
	c.token = token
	c.verified = false
}

// gitlabMR is the wire format of a merge request
type gitlabMR struct {
	IID          int    `json:"iid"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	State        string `json:"state"`
	WebURL       string `json:"web_url"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	Draft        bool   `json:"draft"`
}

type gitlabTokenInfo struct {
	Scopes []string `json:"scopes"`
	Active bool     `json:"active"`
}

// Authenticate verifies the token by calling GET /user and checking scopes.
// Verification is cached for the lifetime of the client instance.
func (c *GitLabClient) Authenticate(ctx context.Context, token string) (*Credential, error) {
	if c.verified && token == c.token {
		return &Credential{Token: token, Scopes: c.scopes, Valid: true}, nil
	}

	c.token = token
	c.verified = false

	scopes, err := c.VerifyScopes(ctx, token)
	if err != nil {
		return nil, err
	}

	if !containsScope(scopes, gitlabRequiredScope) {
		return nil, &basalterrors.MissingScopeError{
			Provider: "GitLab",
			Required: gitlabRequiredScope,
			Scopes:   scopes,
		}
	}

	if err := c.do(ctx, http.MethodGet, "/user", nil, nil); err != nil {
		return nil, err
	}

	c.scopes = scopes
	c.verified = true
	return &Credential{Token: token, Scopes: scopes, Valid: true}, nil
}

// VerifyScopes returns the scopes carried by a token via
// GET /personal_access_tokens/self.
func (c *GitLabClient) VerifyScopes(ctx context.Context, token string) ([]string, error) {
	saved := c.token
	c.token = token
	defer func() { c.token = saved }()

	var info gitlabTokenInfo
	if err := c.do(ctx, http.MethodGet, "/personal_access_tokens/self", nil, &info); err != nil {
		return nil, err
	}

	if !info.Active {
		return nil, fmt.Errorf("%w: GitLab reports the token as revoked or expired", basalterrors.ErrTokenExpired)
	}

	return info.Scopes, nil
}

// CreateReview creates a merge request
func (c *GitLabClient) CreateReview(ctx context.Context, opts CreateReviewOptions) (*Review, error) {
	title := opts.Title
	if opts.Draft && !strings.HasPrefix(title, "Draft:") {
		title = "Draft: " + title
	}

	body := map[string]any{
		"source_branch": opts.SourceBranch,
		"target_branch": opts.TargetBranch,
		"title":         title,
		"description":   opts.Description,
	}

	var mr gitlabMR
	path := fmt.Sprintf("/projects/%s/merge_requests", url.PathEscape(c.projectPath))
	if err := c.do(ctx, http.MethodPost, path, body, &mr); err != nil {
		return nil, err
	}

	return mrToReview(&mr), nil
}

// UpdateReview updates a merge request by IID
func (c *GitLabClient) UpdateReview(ctx context.Context, id string, opts UpdateReviewOptions) (*Review, error) {
	iid, err := parseMRID(id)
	if err != nil {
		return nil, err
	}

	body := map[string]any{}
	if opts.Title != nil {
		body["title"] = *opts.Title
	}
	if opts.Description != nil {
		body["description"] = *opts.Description
	}
	if opts.TargetBranch != nil {
		body["target_branch"] = *opts.TargetBranch
	}
	if opts.Draft != nil {
		// GitLab toggles draft state through the title prefix
		if *opts.Draft {
			if opts.Title != nil && !strings.HasPrefix(*opts.Title, "Draft:") {
				body["title"] = "Draft: " + *opts.Title
			}
		} else if opts.Title != nil {
			body["title"] = strings.TrimSpace(strings.TrimPrefix(*opts.Title, "Draft:"))
		}
	}

	var mr gitlabMR
	path := fmt.Sprintf("/projects/%s/merge_requests/%d", url.PathEscape(c.projectPath), iid)
	if err := c.do(ctx, http.MethodPut, path, body, &mr); err != nil {
		return nil, err
	}

	return mrToReview(&mr), nil
}

// GetReview fetches a merge request by IID
func (c *GitLabClient) GetReview(ctx context.Context, id string) (*Review, error) {
	iid, err := parseMRID(id)
	if err != nil {
		return nil, err
	}

	var mr gitlabMR
	path := fmt.Sprintf("/projects/%s/merge_requests/%d", url.PathEscape(c.projectPath), iid)
	if err := c.do(ctx, http.MethodGet, path, nil, &mr); err != nil {
		return nil, err
	}

	return mrToReview(&mr), nil
}

// FindReviewForBranch returns the open merge request whose source branch
// matches, or nil when none exists
func (c *GitLabClient) FindReviewForBranch(ctx context.Context, branch string) (*Review, error) {
	var mrs []gitlabMR
	path := fmt.Sprintf("/projects/%s/merge_requests?source_branch=%s&state=opened",
		url.PathEscape(c.projectPath), url.QueryEscape(branch))
	if err := c.do(ctx, http.MethodGet, path, nil, &mrs); err != nil {
		return nil, err
	}

	if len(mrs) == 0 {
		return nil, nil
	}
	return mrToReview(&mrs[0]), nil
}

// do performs one API request, mapping failures onto the error taxonomy:
// network errors and 5xx → Transient, 4xx → Rejected.
func (c *GitLabClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return basalterrors.NewTransientProviderError("GitLab", method+" "+path, 0, "request timed out")
		}
		return basalterrors.NewTransientProviderError("GitLab", method+" "+path, 0, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return basalterrors.NewTransientProviderError("GitLab", method+" "+path, resp.StatusCode, "failed to read response")
	}

	switch {
	case resp.StatusCode >= 500:
		return basalterrors.NewTransientProviderError("GitLab", method+" "+path, resp.StatusCode, apiMessage(respBody))
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", basalterrors.ErrTokenExpired,
			basalterrors.NewRejectedProviderError("GitLab", method+" "+path, resp.StatusCode, "invalid or expired token; re-run 'bt init' to re-authenticate"))
	case resp.StatusCode >= 400:
		return basalterrors.NewRejectedProviderError("GitLab", method+" "+path, resp.StatusCode, apiMessage(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse GitLab response: %w", err)
		}
	}
	return nil
}

// apiMessage extracts the "message" field from a GitLab error body, falling
// back to the raw body
func apiMessage(body []byte) string {
	var parsed struct {
		Message any    `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != nil {
			return fmt.Sprintf("%v", parsed.Message)
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return strings.TrimSpace(string(body))
}

func mrToReview(mr *gitlabMR) *Review {
	state := ReviewOpen
	switch mr.State {
	case "merged":
		state = ReviewMerged
	case "closed", "locked":
		state = ReviewClosed
	}

	return &Review{
		ID:           "!" + strconv.Itoa(mr.IID),
		URL:          mr.WebURL,
		Title:        mr.Title,
		Description:  mr.Description,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		Draft:        mr.Draft || strings.HasPrefix(mr.Title, "Draft:"),
		State:        state,
	}
}

// parseMRID parses a review id of the form "!123" (or bare "123") into an IID
func parseMRID(id string) (int, error) {
	iid, err := strconv.Atoi(strings.TrimPrefix(id, "!"))
	if err != nil {
		return 0, fmt.Errorf("invalid GitLab review id %q: %w", id, err)
	}
	return iid, nil
}

func containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
