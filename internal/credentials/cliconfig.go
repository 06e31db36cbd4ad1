package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"basalt.dev/basalt/internal/provider"
)

// cliConfigSource reads the token the official provider CLI (glab or gh)
// has already stored, so users logged in through those tools never see a
// second prompt.
type cliConfigSource struct {
	providerType provider.Type

	// configDir overrides the config root for tests
	configDir string
}

func (s *cliConfigSource) Name() string {
	switch s.providerType {
	case provider.GitHub:
		return "gh config"
	default:
		return "glab config"
	}
}

func (s *cliConfigSource) Token(ctx context.Context) (string, error) {
	dir := s.configDir
	if dir == "" {
		var err error
		dir, err = os.UserConfigDir()
		if err != nil {
			return "", nil
		}
	}

	switch s.providerType {
	case provider.GitHub:
		return readHostToken(filepath.Join(dir, "gh", "hosts.yml"), "github.com", "oauth_token")
	case provider.GitLab:
		return readGlabConfig(filepath.Join(dir, "glab-cli", "config.yml"))
	default:
		return "", nil
	}
}

// ghHosts mirrors gh's hosts.yml: a map of hostname to per-host settings
type ghHostEntry struct {
	OauthToken string `yaml:"oauth_token"`
	Token      string `yaml:"token"`
}

func readHostToken(path, host, _ string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	var hosts map[string]ghHostEntry
	if err := yaml.Unmarshal(data, &hosts); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}

	entry, ok := hosts[host]
	if !ok {
		return "", nil
	}
	if entry.OauthToken != "" {
		return entry.OauthToken, nil
	}
	return entry.Token, nil
}

// glabConfig mirrors the parts of glab's config.yml we care about
type glabConfig struct {
	Hosts map[string]struct {
		Token string `yaml:"token"`
	} `yaml:"hosts"`
}

func readGlabConfig(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg glabConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Prefer gitlab.com, otherwise take any host with a token
	if entry, ok := cfg.Hosts["gitlab.com"]; ok && entry.Token != "" {
		return entry.Token, nil
	}
	for _, entry := range cfg.Hosts {
		if entry.Token != "" {
			return entry.Token, nil
		}
	}
	return "", nil
}
