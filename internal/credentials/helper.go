package credentials

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"basalt.dev/basalt/internal/git"
	"basalt.dev/basalt/internal/provider"
)

// gitCredentialSource asks the configured git credential helper for a
// token via `git credential fill`. Helpers backed by a real keychain will
// return silently; helpers that would prompt are suppressed with
// GIT_TERMINAL_PROMPT handling left to git itself.
type gitCredentialSource struct {
	providerType provider.Type

	// run overrides command execution for tests
	run func(ctx context.Context, input string, args ...string) (string, error)
}

func (s *gitCredentialSource) Name() string { return "git credential helper" }

func (s *gitCredentialSource) Token(ctx context.Context) (string, error) {
	host := "gitlab.com"
	if s.providerType == provider.GitHub {
		host = "github.com"
	}

	input := fmt.Sprintf("protocol=https\nhost=%s\n\n", host)

	run := s.run
	if run == nil {
		run = git.RunGitCommandWithInput
	}

	out, err := run(ctx, input, "credential", "fill")
	if err != nil {
		// A helper with nothing stored exits non-zero; not an error for us
		return "", nil
	}

	return parseCredentialOutput(out), nil
}

// parseCredentialOutput extracts the password field from key=value output
func parseCredentialOutput(out string) string {
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if ok && key == "password" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
