package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"basalt.dev/basalt/internal/provider"
)

func TestCLILogin(t *testing.T) {
	newSource := func(dir string, runLogin func(ctx context.Context, name string, args ...string) error) *promptSource {
		return &promptSource{
			config:   &cliConfigSource{providerType: provider.GitLab, configDir: dir},
			runLogin: runLogin,
		}
	}

	t.Run("runs the CLI and picks up the token it stored", func(t *testing.T) {
		dir := t.TempDir()
		source := newSource(dir, func(ctx context.Context, name string, args ...string) error {
			require.Equal(t, "glab", name)
			require.Equal(t, []string{"auth", "login"}, args)

			// The CLI writes its config as part of a successful login
			configPath := filepath.Join(dir, "glab-cli", "config.yml")
			require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0o750))
			return os.WriteFile(configPath, []byte(`hosts:
  gitlab.com:
    token: glpat-after-login
`), 0o600)
		})

		token, err := source.cliLogin(context.Background(), "glab")
		require.NoError(t, err)
		require.Equal(t, "glpat-after-login", token)
	})

	t.Run("a failed login surfaces the CLI error", func(t *testing.T) {
		source := newSource(t.TempDir(), func(ctx context.Context, name string, args ...string) error {
			return fmt.Errorf("exit status 1")
		})

		_, err := source.cliLogin(context.Background(), "glab")
		require.Error(t, err)
		require.Contains(t, err.Error(), "glab auth login")
	})

	t.Run("a login that stores no token is an error", func(t *testing.T) {
		source := newSource(t.TempDir(), func(ctx context.Context, name string, args ...string) error {
			return nil
		})

		_, err := source.cliLogin(context.Background(), "glab")
		require.Error(t, err)
		require.Contains(t, err.Error(), "no token")
	})
}
