// Package testhelpers builds throwaway git repositories for tests.
package testhelpers

import (
	"os"
	"testing"

	"basalt.dev/basalt/internal/git"
)

// Scene is a test scene backed by a temporary directory with a real git
// repository checked out in it
type Scene struct {
	Dir    string
	Repo   *GitRepo
	oldDir string
}

// SceneSetup is a function type for setting up a scene
type SceneSetup func(*Scene) error

// NewScene creates a scene, points the git package at it, and registers
// cleanup. Setup runs with the scene directory as the working directory.
func NewScene(t *testing.T, setup SceneSetup) *Scene {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "basalt-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	oldDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get current directory: %v", err)
	}

	repo, err := NewGitRepo(tmpDir)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create git repo: %v", err)
	}

	scene := &Scene{
		Dir:    tmpDir,
		Repo:   repo,
		oldDir: oldDir,
	}

	if err := os.Chdir(tmpDir); err != nil {
		_ = os.RemoveAll(tmpDir)
		t.Fatalf("Failed to change directory: %v", err)
	}
	git.SetWorkingDir(tmpDir)

	if setup != nil {
		if err := setup(scene); err != nil {
			_ = os.Chdir(oldDir)
			_ = os.RemoveAll(tmpDir)
			t.Fatalf("Setup failed: %v", err)
		}
	}

	t.Cleanup(func() {
		_ = os.Chdir(oldDir)
		git.SetWorkingDir("")
		if os.Getenv("DEBUG") == "" {
			_ = os.RemoveAll(tmpDir)
		}
	})

	return scene
}

// GitDir returns the scene repository's .git directory
func (s *Scene) GitDir(t *testing.T) string {
	t.Helper()
	dir, err := s.Repo.RunGitCommandAndGetOutput("rev-parse", "--absolute-git-dir")
	if err != nil {
		t.Fatalf("Failed to resolve git dir: %v", err)
	}
	return dir
}

// BasicSceneSetup creates a scene with a single commit on main
func BasicSceneSetup(scene *Scene) error {
	return scene.Repo.CreateChangeAndCommit("1", "1")
}
