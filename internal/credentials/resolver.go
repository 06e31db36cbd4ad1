// Package credentials resolves a working API token for a review provider.
// Sources are tried in priority order; each candidate token is verified
// against the provider before it wins, so a stale or under-scoped token
// from one source falls through to the next instead of failing the run.
package credentials

import (
	"context"
	"fmt"

	"basalt.dev/basalt/internal/output"
	"basalt.dev/basalt/internal/provider"
)

// Source produces a candidate token. Returning an empty token with a nil
// error means the source has nothing to offer and the chain moves on.
type Source interface {
	// Name identifies the source in log output
	Name() string

	// Token returns a candidate token, or "" when the source has none
	Token(ctx context.Context) (string, error)
}

// Resolver walks a chain of token sources until one verifies
type Resolver struct {
	sources []Source
	splog   *output.Splog
}

// NewResolver builds the default chain for a provider: the token cached in
// repository metadata, the provider CLI's own config file, the git
// credential helper, and finally an interactive prompt.
func NewResolver(p provider.Provider, stored string, splog *output.Splog) *Resolver {
	sources := []Source{
		&storedSource{token: stored},
		&cliConfigSource{providerType: p.Type()},
		&gitCredentialSource{providerType: p.Type()},
	}
	if prompt := newPromptSource(p, splog); prompt != nil {
		sources = append(sources, prompt)
	}

	return &Resolver{sources: sources, splog: splog}
}

// NewResolverWithSources builds a resolver over an explicit chain (tests)
func NewResolverWithSources(splog *output.Splog, sources ...Source) *Resolver {
	return &Resolver{sources: sources, splog: splog}
}

// Resolve returns the first token in the chain that the provider accepts
// with the required scope. Every rejection is logged and the chain
// continues; only an exhausted chain is an error.
func (r *Resolver) Resolve(ctx context.Context, p provider.Provider) (string, error) {
	var lastErr error

	for _, source := range r.sources {
		token, err := source.Token(ctx)
		if err != nil {
			r.splog.Debug(fmt.Sprintf("credential source %s failed: %v", source.Name(), err))
			lastErr = err
			continue
		}
		if token == "" {
			r.splog.Debug(fmt.Sprintf("credential source %s has no token", source.Name()))
			continue
		}

		cred, err := p.Authenticate(ctx, token)
		if err != nil {
			r.splog.Debug(fmt.Sprintf("token from %s rejected: %v", source.Name(), err))
			lastErr = err
			continue
		}

		if !cred.HasScope(p.RequiredScope()) {
			r.splog.Debug(fmt.Sprintf("token from %s lacks scope %q", source.Name(), p.RequiredScope()))
			continue
		}

		r.splog.Debug(fmt.Sprintf("using token from %s", source.Name()))
		return token, nil
	}

	if lastErr != nil {
		return "", fmt.Errorf("no working %s token found (last failure: %w)", p.Type(), lastErr)
	}
	return "", fmt.Errorf("no %s token found; run 'bt init' to authenticate", p.Type())
}

// storedSource serves the token cached in repository metadata
type storedSource struct {
	token string
}

func (s *storedSource) Name() string { return "stored token" }

func (s *storedSource) Token(ctx context.Context) (string, error) {
	return s.token, nil
}
