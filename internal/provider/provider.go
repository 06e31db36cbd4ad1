// Package provider abstracts review operations across Git hosting backends.
// All provider-specific logic lives in the implementations; the submission
// pipeline and restack orchestrator never branch on provider identity.
package provider

import (
	"context"
	"fmt"
	"strings"
)

// Type identifies a supported hosting backend
type Type string

const (
	// GitLab provider (merge requests via the REST v4 API)
	GitLab Type = "gitlab"
	// GitHub provider (pull requests via the REST API)
	GitHub Type = "github"
)

// ParseType parses a provider name
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "gitlab":
		return GitLab, nil
	case "github":
		return GitHub, nil
	default:
		return "", fmt.Errorf("unknown provider %q (supported: gitlab, github)", s)
	}
}

// DetectFromRemoteURL guesses the provider from a git remote URL
func DetectFromRemoteURL(url string) (Type, error) {
	switch {
	case strings.Contains(url, "gitlab"):
		return GitLab, nil
	case strings.Contains(url, "github.com"):
		return GitHub, nil
	default:
		return "", fmt.Errorf("could not detect provider from remote %q; pass --provider explicitly", url)
	}
}

// ReviewState is the lifecycle state of a review
type ReviewState string

const (
	// ReviewOpen means the review is open for review
	ReviewOpen ReviewState = "open"
	// ReviewMerged means the review has been merged
	ReviewMerged ReviewState = "merged"
	// ReviewClosed means the review was closed without merging
	ReviewClosed ReviewState = "closed"
)

// Review is the provider-side entity for one stack branch. The engine only
// ever holds a cached snapshot; the provider owns the real thing.
type Review struct {
	ID           string
	URL          string
	Title        string
	Description  string
	SourceBranch string
	TargetBranch string
	Draft        bool
	State        ReviewState
}

// Credential is a verified bearer token plus its scopes
type Credential struct {
	Token  string
	Scopes []string
	Valid  bool
}

// HasScope reports whether the credential carries a scope
func (c *Credential) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// CreateReviewOptions are the parameters for creating a review
type CreateReviewOptions struct {
	SourceBranch string
	TargetBranch string
	Title        string
	Description  string
	Draft        bool
}

// UpdateReviewOptions are the parameters for updating an existing review.
// Nil fields are left unchanged.
type UpdateReviewOptions struct {
	Title        *string
	Description  *string
	TargetBranch *string
	Draft        *bool
}

// Provider is the capability set every hosting backend implements.
// Authenticate is idempotent: implementations cache a successful
// verification for the lifetime of the client instance.
type Provider interface {
	// Type returns the backend identity
	Type() Type

	// RequiredScope returns the token scope needed to create/update reviews
	RequiredScope() string

	// Authenticate verifies the token (and its scopes) against the provider
	Authenticate(ctx context.Context, token string) (*Credential, error)

	// VerifyScopes returns the scopes carried by a token
	VerifyScopes(ctx context.Context, token string) ([]string, error)

	// CreateReview creates a new review (MR/PR)
	CreateReview(ctx context.Context, opts CreateReviewOptions) (*Review, error)

	// UpdateReview updates an existing review by id
	UpdateReview(ctx context.Context, id string, opts UpdateReviewOptions) (*Review, error)

	// GetReview fetches a review by id
	GetReview(ctx context.Context, id string) (*Review, error)

	// FindReviewForBranch returns the open review whose source is the given
	// branch, or nil if none exists
	FindReviewForBranch(ctx context.Context, branch string) (*Review, error)
}
