package stubbackend

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type userStore struct {
	mu    sync.RWMutex
	users map[string][]byte
	cost  int
}

func newUserStore(cost int) *userStore {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &userStore{users: map[string][]byte{}, cost: cost}
}

func (s *userStore) Register(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return ErrUserExists
	}
	s.users[username] = hash
	return nil
}

// Authenticate fails with ErrInvalidCredentials for unknown users too, so the
// response does not reveal which usernames exist.
func (s *userStore) Authenticate(username, password string) error {
	s.mu.RLock()
	hash, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}
