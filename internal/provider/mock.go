package provider

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// MockProvider is an in-memory Provider used by tests. It records every
// call and can be primed to fail specific operations.
type MockProvider struct {
	mu sync.Mutex

	providerType Type
	nextID       int
	reviews      map[string]*Review

	// Calls records operation names in invocation order
	Calls []string

	// FailOn maps an operation name ("CreateReview", "UpdateReview", ...)
	// to the error it should return. Entries are consumed per-call count
	// via FailCount; zero means fail every time.
	FailOn    map[string]error
	FailCount map[string]int

	// AuthScopes is what VerifyScopes returns; defaults to the required scope
	AuthScopes []string
	AuthErr    error
}

// NewMockProvider creates an empty mock behaving as the given backend type
func NewMockProvider(t Type) *MockProvider {
	return &MockProvider{
		providerType: t,
		nextID:       1,
		reviews:      make(map[string]*Review),
		FailOn:       make(map[string]error),
		FailCount:    make(map[string]int),
	}
}

// Type returns the configured backend identity
func (m *MockProvider) Type() Type {
	return m.providerType
}

// RequiredScope returns a stand-in scope name
func (m *MockProvider) RequiredScope() string {
	return "api"
}

func (m *MockProvider) record(op string) error {
	m.Calls = append(m.Calls, op)
	if err, ok := m.FailOn[op]; ok {
		if n := m.FailCount[op]; n > 0 {
			m.FailCount[op] = n - 1
			if m.FailCount[op] == 0 {
				delete(m.FailOn, op)
				delete(m.FailCount, op)
			}
			return err
		}
		if _, counted := m.FailCount[op]; !counted {
			return err
		}
	}
	return nil
}

// Authenticate accepts any token unless AuthErr is set
func (m *MockProvider) Authenticate(ctx context.Context, token string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("Authenticate"); err != nil {
		return nil, err
	}
	if m.AuthErr != nil {
		return nil, m.AuthErr
	}

	scopes := m.AuthScopes
	if scopes == nil {
		scopes = []string{m.RequiredScope()}
	}
	return &Credential{Token: token, Scopes: scopes, Valid: true}, nil
}

// VerifyScopes returns AuthScopes, or the required scope by default
func (m *MockProvider) VerifyScopes(ctx context.Context, token string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("VerifyScopes"); err != nil {
		return nil, err
	}
	if m.AuthErr != nil {
		return nil, m.AuthErr
	}
	if m.AuthScopes != nil {
		return m.AuthScopes, nil
	}
	return []string{m.RequiredScope()}, nil
}

// CreateReview stores a new review with a sequential id
func (m *MockProvider) CreateReview(ctx context.Context, opts CreateReviewOptions) (*Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("CreateReview"); err != nil {
		return nil, err
	}

	id := "!" + strconv.Itoa(m.nextID)
	m.nextID++

	review := &Review{
		ID:           id,
		URL:          "https://example.invalid/reviews/" + id,
		Title:        opts.Title,
		Description:  opts.Description,
		SourceBranch: opts.SourceBranch,
		TargetBranch: opts.TargetBranch,
		Draft:        opts.Draft,
		State:        ReviewOpen,
	}
	m.reviews[id] = review

	copied := *review
	return &copied, nil
}

// UpdateReview applies non-nil fields to a stored review
func (m *MockProvider) UpdateReview(ctx context.Context, id string, opts UpdateReviewOptions) (*Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("UpdateReview"); err != nil {
		return nil, err
	}

	review, ok := m.reviews[id]
	if !ok {
		return nil, fmt.Errorf("mock: no review %s", id)
	}

	if opts.Title != nil {
		review.Title = *opts.Title
	}
	if opts.Description != nil {
		review.Description = *opts.Description
	}
	if opts.TargetBranch != nil {
		review.TargetBranch = *opts.TargetBranch
	}
	if opts.Draft != nil {
		review.Draft = *opts.Draft
	}

	copied := *review
	return &copied, nil
}

// GetReview returns a stored review by id
func (m *MockProvider) GetReview(ctx context.Context, id string) (*Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("GetReview"); err != nil {
		return nil, err
	}

	review, ok := m.reviews[id]
	if !ok {
		return nil, fmt.Errorf("mock: no review %s", id)
	}

	copied := *review
	return &copied, nil
}

// FindReviewForBranch returns the open review with a matching source branch
func (m *MockProvider) FindReviewForBranch(ctx context.Context, branch string) (*Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("FindReviewForBranch"); err != nil {
		return nil, err
	}

	for _, review := range m.reviews {
		if review.SourceBranch == branch && review.State == ReviewOpen {
			copied := *review
			return &copied, nil
		}
	}
	return nil, nil
}

// SetReviewState flips the state of a stored review (for merged/closed tests)
func (m *MockProvider) SetReviewState(id string, state ReviewState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if review, ok := m.reviews[id]; ok {
		review.State = state
	}
}

// ReviewCount reports how many reviews the mock holds
func (m *MockProvider) ReviewCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reviews)
}
