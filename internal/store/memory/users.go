// Package memory holds single-process implementations of the external
// store contracts, used for standalone deployments and tests.
package memory

import (
	"context"
	"sync"

	"github.com/repolink/repolink/internal/domain"
)

// UserStore maps bearer tokens to users.
type UserStore struct {
	mu      sync.RWMutex
	byToken map[string]domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{byToken: make(map[string]domain.User)}
}

func (s *UserStore) Put(token string, u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byToken[token] = u
}

// ResolveByToken returns nil for an unknown token; that is not an
// error, just a failed authentication.
func (s *UserStore) ResolveByToken(_ context.Context, token string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byToken[token]
	if !ok {
		return nil, nil
	}
	return &u, nil
}
