package service

import (
	"context"
	"sync"

	"gomate-auth/internal/model"
)

// MemoryTokenStore is the in-process model.EmailTokenRepository used when no
// Redis is configured.
type MemoryTokenStore struct {
	mu       sync.Mutex
	tokens   map[string]model.EmailToken
	pending  map[string]string
	verified map[string]struct{}
}

var _ model.EmailTokenRepository = (*MemoryTokenStore)(nil)

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		tokens:   make(map[string]model.EmailToken),
		pending:  make(map[string]string),
		verified: make(map[string]struct{}),
	}
}

func (s *MemoryTokenStore) SaveToken(_ context.Context, tok model.EmailToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.pending[tok.Email]; ok {
		delete(s.tokens, prev)
	}
	s.tokens[tok.Token] = tok
	s.pending[tok.Email] = tok.Token
	return nil
}

func (s *MemoryTokenStore) TakeToken(_ context.Context, token string) (*model.EmailToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokens[token]
	if !ok {
		return nil, nil
	}
	delete(s.tokens, token)
	if s.pending[tok.Email] == token {
		delete(s.pending, tok.Email)
	}
	return &tok, nil
}

func (s *MemoryTokenStore) MarkVerified(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified[email] = struct{}{}
	return nil
}

func (s *MemoryTokenStore) IsVerified(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.verified[email]
	return ok, nil
}
