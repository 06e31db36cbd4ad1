package credentials_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"basalt.dev/basalt/internal/credentials"
	basalterrors "basalt.dev/basalt/internal/errors"
	"basalt.dev/basalt/internal/output"
	"basalt.dev/basalt/internal/provider"
)

// fakeProvider accepts tokens from a fixed table of token -> scopes.
// Unknown tokens fail authentication the way an expired token would.
type fakeProvider struct {
	tokens map[string][]string
	tried  []string
}

func (f *fakeProvider) Type() provider.Type   { return provider.GitLab }
func (f *fakeProvider) RequiredScope() string { return "api" }

func (f *fakeProvider) Authenticate(ctx context.Context, token string) (*provider.Credential, error) {
	f.tried = append(f.tried, token)
	scopes, ok := f.tokens[token]
	if !ok {
		return nil, fmt.Errorf("%w: token rejected", basalterrors.ErrTokenExpired)
	}
	return &provider.Credential{Token: token, Scopes: scopes, Valid: true}, nil
}

func (f *fakeProvider) VerifyScopes(ctx context.Context, token string) ([]string, error) {
	scopes, ok := f.tokens[token]
	if !ok {
		return nil, basalterrors.ErrTokenExpired
	}
	return scopes, nil
}

func (f *fakeProvider) CreateReview(ctx context.Context, opts provider.CreateReviewOptions) (*provider.Review, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeProvider) UpdateReview(ctx context.Context, id string, opts provider.UpdateReviewOptions) (*provider.Review, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeProvider) GetReview(ctx context.Context, id string) (*provider.Review, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeProvider) FindReviewForBranch(ctx context.Context, branch string) (*provider.Review, error) {
	return nil, fmt.Errorf("not implemented")
}

// fixedSource hands out one candidate token
type fixedSource struct {
	name  string
	token string
	err   error
}

func (s *fixedSource) Name() string { return s.name }

func (s *fixedSource) Token(ctx context.Context) (string, error) {
	return s.token, s.err
}

func TestResolver(t *testing.T) {
	splog := output.NewSplog()

	t.Run("first verifying token wins", func(t *testing.T) {
		p := &fakeProvider{tokens: map[string][]string{"good": {"api"}}}
		resolver := credentials.NewResolverWithSources(splog,
			&fixedSource{name: "stored", token: "good"},
			&fixedSource{name: "cli", token: "other"},
		)

		token, err := resolver.Resolve(context.Background(), p)
		require.NoError(t, err)
		require.Equal(t, "good", token)
		require.Equal(t, []string{"good"}, p.tried)
	})

	t.Run("expired stored token falls through to the next source", func(t *testing.T) {
		p := &fakeProvider{tokens: map[string][]string{"fresh": {"api"}}}
		resolver := credentials.NewResolverWithSources(splog,
			&fixedSource{name: "stored", token: "expired"},
			&fixedSource{name: "cli", token: "fresh"},
		)

		token, err := resolver.Resolve(context.Background(), p)
		require.NoError(t, err)
		require.Equal(t, "fresh", token)
		require.Equal(t, []string{"expired", "fresh"}, p.tried)
	})

	t.Run("valid but under-scoped token is rejected at its stage", func(t *testing.T) {
		p := &fakeProvider{tokens: map[string][]string{
			"narrow": {"read_user"},
			"wide":   {"api"},
		}}
		resolver := credentials.NewResolverWithSources(splog,
			&fixedSource{name: "stored", token: "narrow"},
			&fixedSource{name: "cli", token: "wide"},
		)

		token, err := resolver.Resolve(context.Background(), p)
		require.NoError(t, err)
		require.Equal(t, "wide", token)
	})

	t.Run("empty sources are skipped without an authentication attempt", func(t *testing.T) {
		p := &fakeProvider{tokens: map[string][]string{"good": {"api"}}}
		resolver := credentials.NewResolverWithSources(splog,
			&fixedSource{name: "stored", token: ""},
			&fixedSource{name: "cli", token: "good"},
		)

		token, err := resolver.Resolve(context.Background(), p)
		require.NoError(t, err)
		require.Equal(t, "good", token)
		require.Equal(t, []string{"good"}, p.tried)
	})

	t.Run("failing source does not stop the chain", func(t *testing.T) {
		p := &fakeProvider{tokens: map[string][]string{"good": {"api"}}}
		resolver := credentials.NewResolverWithSources(splog,
			&fixedSource{name: "stored", err: fmt.Errorf("keychain locked")},
			&fixedSource{name: "cli", token: "good"},
		)

		token, err := resolver.Resolve(context.Background(), p)
		require.NoError(t, err)
		require.Equal(t, "good", token)
	})

	t.Run("exhausted chain reports the last failure", func(t *testing.T) {
		p := &fakeProvider{tokens: map[string][]string{}}
		resolver := credentials.NewResolverWithSources(splog,
			&fixedSource{name: "stored", token: "expired"},
		)

		_, err := resolver.Resolve(context.Background(), p)
		require.Error(t, err)
		require.ErrorIs(t, err, basalterrors.ErrTokenExpired)
	})

	t.Run("no sources at all points at bt init", func(t *testing.T) {
		p := &fakeProvider{tokens: map[string][]string{}}
		resolver := credentials.NewResolverWithSources(splog)

		_, err := resolver.Resolve(context.Background(), p)
		require.Error(t, err)
		require.Contains(t, err.Error(), "bt init")
	})
}
