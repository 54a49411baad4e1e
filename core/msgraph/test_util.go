package msgraph

import "sync"

// InMemStore is a TokenStore kept in memory. Used by tests and as a fallback
// when no system keyring is available.
type InMemStore struct {
	mu  sync.Mutex
	tok Token
	set bool
}

var _ TokenStore = (*InMemStore)(nil)

func NewInMemStore() *InMemStore { return &InMemStore{} }

func (s *InMemStore) Load() (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tok, nil
}

func (s *InMemStore) Save(tok Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = tok
	s.set = true
	return nil
}

func (s *InMemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = Token{}
	s.set = false
	return nil
}

// Saved reports whether Save has been called since the last Clear.
func (s *InMemStore) Saved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}
