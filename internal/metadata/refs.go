package metadata

import (
	"basalt.dev/basalt/internal/git"
)

// defaultBranchExists checks live refs through the git package
func defaultBranchExists(name string) (bool, error) {
	return git.BranchExists(name)
}
