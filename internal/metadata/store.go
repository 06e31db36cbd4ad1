package metadata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	basalterrors "basalt.dev/basalt/internal/errors"
)

const (
	basaltDirName    = "basalt"
	metadataFileName = "metadata.yml"
)

// Store persists RepositoryMetadata under a repository's .git directory
type Store struct {
	gitDir string

	// branchExists is consulted on load to flag stale entries. Defaults to
	// checking live refs; tests may replace it.
	branchExists func(name string) (bool, error)
}

// NewStore creates a store rooted at the given .git directory
func NewStore(gitDir string) *Store {
	return &Store{gitDir: gitDir}
}

// NewStoreWithRefCheck creates a store with a custom branch existence check
func NewStoreWithRefCheck(gitDir string, branchExists func(name string) (bool, error)) *Store {
	return &Store{gitDir: gitDir, branchExists: branchExists}
}

// Dir returns the basalt metadata directory (.git/basalt)
func (s *Store) Dir() string {
	return filepath.Join(s.gitDir, basaltDirName)
}

// Path returns the metadata file path
func (s *Store) Path() string {
	return filepath.Join(s.Dir(), metadataFileName)
}

// Exists reports whether the metadata file exists
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}

// Load reads, migrates and validates the metadata document.
// A missing file returns ErrNotInitialized (run 'bt init'); an unreadable or
// unparsable file returns ErrCorrupted (inspect the file manually). Branch
// entries are cross-checked against live refs and flagged stale when the
// branch no longer exists.
func (s *Store) Load() (*RepositoryMetadata, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: run 'bt init' first", basalterrors.ErrNotInitialized)
		}
		return nil, fmt.Errorf("%w: cannot read %s: %v", basalterrors.ErrCorrupted, s.Path(), err)
	}

	var meta RepositoryMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %s is not valid YAML, inspect it manually: %v", basalterrors.ErrCorrupted, s.Path(), err)
	}

	if meta.Version != Version {
		migrated, err := s.Migrate(&meta, data)
		if err != nil {
			return nil, err
		}
		meta = *migrated
		if err := s.Save(&meta); err != nil {
			return nil, err
		}
	}

	if err := s.flagStaleBranches(&meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// Save writes the metadata document, creating .git/basalt if needed
func (s *Store) Save(meta *RepositoryMetadata) error {
	if err := os.MkdirAll(s.Dir(), 0o750); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %w", err)
	}

	if err := os.WriteFile(s.Path(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.Path(), err)
	}

	return nil
}

// Delete removes the metadata file if present
func (s *Store) Delete() error {
	err := os.Remove(s.Path())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", s.Path(), err)
	}
	return nil
}

// flagStaleBranches marks entries whose branch no longer exists. Entries are
// retained so a recreated branch resumes its review linkage.
func (s *Store) flagStaleBranches(meta *RepositoryMetadata) error {
	check := s.branchExists
	if check == nil {
		check = defaultBranchExists
	}

	for name, bm := range meta.Branches {
		exists, err := check(name)
		if err != nil {
			return fmt.Errorf("failed to validate branch %s against live refs: %w", name, err)
		}
		bm.Stale = !exists
	}
	return nil
}
