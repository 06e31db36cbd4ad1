package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"basalt.dev/basalt/internal/errors"
	"basalt.dev/basalt/internal/provider"
)

func newGitLabServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *provider.GitLabClient) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := provider.NewGitLabClient(server.URL, "group/repo")
	client.SetToken("glpat-test")
	return server, client
}

func TestGitLabClient(t *testing.T) {
	t.Run("create review posts to the project and parses the MR", func(t *testing.T) {
		var gotPath, gotToken string
		var gotBody map[string]any

		_, client := newGitLabServer(t, func(w http.ResponseWriter, r *http.Request) {
			// EscapedPath keeps the %2F the client sent; Path decodes it
			gotPath = r.URL.EscapedPath()
			gotToken = r.Header.Get("PRIVATE-TOKEN")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{
				"iid": 42,
				"title": "Draft: Add the parser",
				"state": "opened",
				"web_url": "https://gitlab.example/group/repo/-/merge_requests/42",
				"source_branch": "branch-a",
				"target_branch": "main",
				"draft": true
			}`))
		})

		review, err := client.CreateReview(context.Background(), provider.CreateReviewOptions{
			SourceBranch: "branch-a",
			TargetBranch: "main",
			Title:        "Add the parser",
			Draft:        true,
		})
		require.NoError(t, err)

		require.Equal(t, "/api/v4/projects/group%2Frepo/merge_requests", gotPath)
		require.Equal(t, "glpat-test", gotToken)
		require.Equal(t, "Draft: Add the parser", gotBody["title"])
		require.Equal(t, "branch-a", gotBody["source_branch"])

		require.Equal(t, "!42", review.ID)
		require.Equal(t, provider.ReviewOpen, review.State)
		require.True(t, review.Draft)
	})

	t.Run("5xx responses are transient", func(t *testing.T) {
		_, client := newGitLabServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"upstream hiccup"}`, http.StatusBadGateway)
		})

		_, err := client.GetReview(context.Background(), "!1")
		require.ErrorIs(t, err, errors.ErrTransient)
		require.NotErrorIs(t, err, errors.ErrRejected)
	})

	t.Run("4xx responses are rejected with the API message", func(t *testing.T) {
		_, client := newGitLabServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"404 Not Found"}`, http.StatusNotFound)
		})

		_, err := client.GetReview(context.Background(), "!1")
		require.ErrorIs(t, err, errors.ErrRejected)
		require.Contains(t, err.Error(), "404 Not Found")
	})

	t.Run("401 maps to the expired-token sentinel", func(t *testing.T) {
		_, client := newGitLabServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"401 Unauthorized"}`, http.StatusUnauthorized)
		})

		_, err := client.GetReview(context.Background(), "!1")
		require.ErrorIs(t, err, errors.ErrTokenExpired)
	})

	t.Run("unreachable host is transient", func(t *testing.T) {
		client := provider.NewGitLabClient("http://127.0.0.1:1", "group/repo")
		client.SetToken("glpat-test")

		_, err := client.GetReview(context.Background(), "!1")
		require.ErrorIs(t, err, errors.ErrTransient)
	})

	t.Run("authenticate requires the api scope", func(t *testing.T) {
		_, client := newGitLabServer(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/v4/personal_access_tokens/self":
				_, _ = w.Write([]byte(`{"scopes":["read_user"],"active":true}`))
			default:
				_, _ = w.Write([]byte(`{}`))
			}
		})

		_, err := client.Authenticate(context.Background(), "glpat-test")
		require.ErrorIs(t, err, errors.ErrMissingScope)

		var scopeErr *errors.MissingScopeError
		require.ErrorAs(t, err, &scopeErr)
		require.Equal(t, "api", scopeErr.Required)
	})

	t.Run("authenticate accepts an active api-scoped token", func(t *testing.T) {
		_, client := newGitLabServer(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/v4/personal_access_tokens/self":
				_, _ = w.Write([]byte(`{"scopes":["api","read_user"],"active":true}`))
			case "/api/v4/user":
				_, _ = w.Write([]byte(`{"username":"dev"}`))
			default:
				http.NotFound(w, r)
			}
		})

		cred, err := client.Authenticate(context.Background(), "glpat-test")
		require.NoError(t, err)
		require.True(t, cred.Valid)
		require.True(t, cred.HasScope("api"))
	})

	t.Run("authenticate verifies once per client instance", func(t *testing.T) {
		requests := 0
		_, client := newGitLabServer(t, func(w http.ResponseWriter, r *http.Request) {
			requests++
			switch r.URL.Path {
			case "/api/v4/personal_access_tokens/self":
				_, _ = w.Write([]byte(`{"scopes":["api"],"active":true}`))
			case "/api/v4/user":
				_, _ = w.Write([]byte(`{"username":"dev"}`))
			default:
				http.NotFound(w, r)
			}
		})

		cred, err := client.Authenticate(context.Background(), "glpat-test")
		require.NoError(t, err)
		require.True(t, cred.Valid)
		afterFirst := requests
		require.Positive(t, afterFirst)

		// Same token, same instance: no further round trips
		cred, err = client.Authenticate(context.Background(), "glpat-test")
		require.NoError(t, err)
		require.True(t, cred.Valid)
		require.True(t, cred.HasScope("api"))
		require.Equal(t, afterFirst, requests)

		// A different token is verified from scratch
		_, err = client.Authenticate(context.Background(), "glpat-other")
		require.NoError(t, err)
		require.Greater(t, requests, afterFirst)
	})

	t.Run("revoked token surfaces as expired", func(t *testing.T) {
		_, client := newGitLabServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"scopes":["api"],"active":false}`))
		})

		_, err := client.VerifyScopes(context.Background(), "glpat-test")
		require.ErrorIs(t, err, errors.ErrTokenExpired)
	})

	t.Run("find review for branch filters by source branch", func(t *testing.T) {
		_, client := newGitLabServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "branch-a", r.URL.Query().Get("source_branch"))
			require.Equal(t, "opened", r.URL.Query().Get("state"))
			_, _ = w.Write([]byte(`[{"iid": 7, "state": "opened", "source_branch": "branch-a", "target_branch": "main"}]`))
		})

		review, err := client.FindReviewForBranch(context.Background(), "branch-a")
		require.NoError(t, err)
		require.Equal(t, "!7", review.ID)
	})

	t.Run("no open review yields nil without error", func(t *testing.T) {
		_, client := newGitLabServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		})

		review, err := client.FindReviewForBranch(context.Background(), "branch-a")
		require.NoError(t, err)
		require.Nil(t, review)
	})
}
