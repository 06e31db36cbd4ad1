// Package metadata persists the mapping from branches to review identities
// plus cached provider connection state. The document lives at
// .git/basalt/metadata.yml so it is never subject to version control.
package metadata

import (
	"time"
)

// Version is the current metadata format version
const Version = "1"

// RepositoryMetadata is the root persisted document, one per repository
type RepositoryMetadata struct {
	Version    string                     `yaml:"version"`
	Provider   string                     `yaml:"provider"`
	BaseBranch string                     `yaml:"base_branch"`
	Branches   map[string]*BranchMetadata `yaml:"branches,omitempty"`
	Cache      ProviderCache              `yaml:"provider_cache,omitempty"`
}

// BranchMetadata is the persisted per-branch record
type BranchMetadata struct {
	ReviewID  string `yaml:"review_id,omitempty"`
	ReviewURL string `yaml:"review_url,omitempty"`
	// ReviewState is the review lifecycle state (open/merged/closed) as of
	// the last time the provider was asked about it
	ReviewState string `yaml:"review_state,omitempty"`
	Parent      string `yaml:"parent"`
	CreatedAt   string `yaml:"created_at"`
	UpdatedAt   string `yaml:"updated_at,omitempty"`

	// Stale is set on load when the branch no longer exists in the live
	// repository. Stale entries are flagged, never deleted: a recreated
	// branch resumes its review linkage.
	Stale bool `yaml:"-"`
}

// ProviderCache holds provider connection info so the credential chain and
// remote parsing can be skipped on subsequent invocations
type ProviderCache struct {
	BaseURL     string `yaml:"base_url,omitempty"`
	ProjectPath string `yaml:"project_path,omitempty"`
	AuthToken   string `yaml:"auth_token,omitempty"`
}

// New creates a fresh metadata document for an initialized repository
func New(provider, baseBranch string) *RepositoryMetadata {
	return &RepositoryMetadata{
		Version:    Version,
		Provider:   provider,
		BaseBranch: baseBranch,
		Branches:   make(map[string]*BranchMetadata),
	}
}

// NewBranchMetadata creates a per-branch record with the creation timestamp set
func NewBranchMetadata(parent string) *BranchMetadata {
	return &BranchMetadata{
		Parent:    parent,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// GetBranch returns the metadata for a branch, or nil if none is recorded
func (m *RepositoryMetadata) GetBranch(name string) *BranchMetadata {
	return m.Branches[name]
}

// SetBranch records or replaces the metadata for a branch
func (m *RepositoryMetadata) SetBranch(name string, bm *BranchMetadata) {
	if m.Branches == nil {
		m.Branches = make(map[string]*BranchMetadata)
	}
	m.Branches[name] = bm
}

// HasBranch reports whether metadata exists for a branch
func (m *RepositoryMetadata) HasBranch(name string) bool {
	_, ok := m.Branches[name]
	return ok
}

// SetReview updates a branch record with the review identity returned by the
// provider and stamps the update time
func (b *BranchMetadata) SetReview(reviewID, reviewURL string) {
	b.ReviewID = reviewID
	b.ReviewURL = reviewURL
	b.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}
