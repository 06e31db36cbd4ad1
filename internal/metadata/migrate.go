package metadata

import (
	"fmt"

	"gopkg.in/yaml.v3"

	basalterrors "basalt.dev/basalt/internal/errors"
)

// metadataV0 is the pre-1.0 layout: GitLab-only naming, no provider cache.
type metadataV0 struct {
	Version    string                  `yaml:"version"`
	Provider   string                  `yaml:"provider"`
	BaseBranch string                  `yaml:"base_branch"`
	Branches   map[string]*branchMetaV0 `yaml:"branches,omitempty"`
}

type branchMetaV0 struct {
	MRID      string `yaml:"mr_id,omitempty"`
	MRURL     string `yaml:"mr_url,omitempty"`
	Parent    string `yaml:"parent"`
	CreatedAt string `yaml:"created_at"`
	UpdatedAt string `yaml:"updated_at,omitempty"`
}

// Migrate upgrades a metadata document from an older format version to the
// current one, preserving all branch-to-review mappings. Unknown versions
// are rejected rather than guessed at.
func (s *Store) Migrate(meta *RepositoryMetadata, raw []byte) (*RepositoryMetadata, error) {
	switch meta.Version {
	case "0", "":
		return migrateV0(meta, raw)
	default:
		return nil, &basalterrors.UnsupportedVersionError{
			Version:   meta.Version,
			Supported: Version,
		}
	}
}

func migrateV0(meta *RepositoryMetadata, raw []byte) (*RepositoryMetadata, error) {
	var old metadataV0
	if err := yaml.Unmarshal(raw, &old); err != nil {
		return nil, fmt.Errorf("%w: cannot parse version 0 metadata: %v", basalterrors.ErrCorrupted, err)
	}

	provider := old.Provider
	if provider == "" {
		provider = "gitlab"
	}

	migrated := New(provider, old.BaseBranch)
	for name, bm := range old.Branches {
		migrated.SetBranch(name, &BranchMetadata{
			ReviewID:  bm.MRID,
			ReviewURL: bm.MRURL,
			Parent:    bm.Parent,
			CreatedAt: bm.CreatedAt,
			UpdatedAt: bm.UpdatedAt,
		})
	}

	// Version 1 also reads the new-style keys, so carry over anything the
	// loose v0 parse already produced under them.
	for name, bm := range meta.Branches {
		if migrated.HasBranch(name) && migrated.GetBranch(name).ReviewID != "" {
			continue
		}
		if bm.ReviewID != "" || bm.ReviewURL != "" {
			migrated.SetBranch(name, bm)
		}
	}

	return migrated, nil
}
