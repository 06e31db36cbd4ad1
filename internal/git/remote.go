package git

import "fmt"

// GetRemote returns the default remote name (usually "origin")
func GetRemote() string {
	branch, err := GetCurrentBranch()
	if err == nil {
		remote, err := RunGitCommand("config", "--get", "branch."+branch+".remote")
		if err == nil && remote != "" {
			return remote
		}
	}

	return "origin"
}

// GetRemoteURL returns the fetch URL of a remote
func GetRemoteURL(remote string) (string, error) {
	url, err := RunGitCommand("remote", "get-url", remote)
	if err != nil {
		return "", fmt.Errorf("remote %s has no URL configured: %w", remote, err)
	}
	return url, nil
}
