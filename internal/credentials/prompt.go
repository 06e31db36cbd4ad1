package credentials

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"

	"basalt.dev/basalt/internal/output"
	"basalt.dev/basalt/internal/provider"
)

// promptSource interactively asks the user for a token. It only joins the
// chain when stdin is a terminal; in scripts and CI the chain simply ends.
// When the provider CLI (glab or gh) is installed, its login flow is
// offered and run directly, then the token it stored is picked up.
type promptSource struct {
	provider provider.Provider
	splog    *output.Splog

	config   *cliConfigSource
	lookPath func(file string) (string, error)
	runLogin func(ctx context.Context, name string, args ...string) error
}

func newPromptSource(p provider.Provider, splog *output.Splog) Source {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return nil
	}
	return &promptSource{
		provider: p,
		splog:    splog,
		config:   &cliConfigSource{providerType: p.Type()},
		lookPath: exec.LookPath,
		runLogin: runInteractive,
	}
}

// runInteractive runs a command wired to the user's terminal, so the
// provider CLI can drive its own login prompts
func runInteractive(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func (s *promptSource) Name() string { return "interactive prompt" }

func (s *promptSource) Token(ctx context.Context) (string, error) {
	cliBin := "glab"
	if s.provider.Type() == provider.GitHub {
		cliBin = "gh"
	}

	pasteOption := "Paste a personal access token"
	loginOption := fmt.Sprintf("Log in with '%s auth login'", cliBin)

	options := []string{pasteOption}
	if _, err := s.lookPath(cliBin); err == nil {
		options = []string{loginOption, pasteOption}
	}

	var choice string
	err := survey.AskOne(&survey.Select{
		Message: fmt.Sprintf("No %s token found. How would you like to authenticate?", s.provider.Type()),
		Options: options,
	}, &choice)
	if err != nil {
		return "", fmt.Errorf("authentication cancelled: %w", err)
	}

	if choice == loginOption {
		return s.cliLogin(ctx, cliBin)
	}

	var token string
	err = survey.AskOne(&survey.Password{
		Message: fmt.Sprintf("Personal access token (needs the %q scope):", s.provider.RequiredScope()),
	}, &token, survey.WithValidator(survey.Required))
	if err != nil {
		return "", fmt.Errorf("authentication cancelled: %w", err)
	}

	return token, nil
}

// cliLogin runs the provider CLI's login flow and re-reads the token it
// stored in its config file
func (s *promptSource) cliLogin(ctx context.Context, cliBin string) (string, error) {
	if err := s.runLogin(ctx, cliBin, "auth", "login"); err != nil {
		return "", fmt.Errorf("'%s auth login' failed: %w", cliBin, err)
	}

	token, err := s.config.Token(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("'%s auth login' finished but left no token in its config", cliBin)
	}
	return token, nil
}
