// Package memory holds thread-safe in-memory stores for local runs and tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/domain"
)

var errUserMissing = errors.New("user not found")

type UserStore struct {
	mu sync.RWMutex

	byID       map[string]*domain.User
	byEmail    map[string]string
	byUsername map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:       make(map[string]*domain.User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

func (s *UserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyOf(id), nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyOf(s.byEmail[email]), nil
}

func (s *UserStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyOf(s.byUsername[username]), nil
}

// Create checks both unique keys and inserts under one lock, so of two
// concurrent registrations with the same email exactly one wins.
func (s *UserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return domain.ErrEmailTaken
	}
	if _, ok := s.byUsername[user.Username]; ok {
		return domain.ErrUsernameTaken
	}

	cp := *user
	s.byID[cp.ID] = &cp
	s.byEmail[cp.Email] = cp.ID
	s.byUsername[cp.Username] = cp.ID
	return nil
}

func (s *UserStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return s.update(id, func(u *domain.User) {
		u.PasswordHash = passwordHash
	})
}

func (s *UserStore) MarkEmailVerified(_ context.Context, id string) error {
	return s.update(id, func(u *domain.User) {
		u.EmailVerified = true
	})
}

func (s *UserStore) SetResetToken(_ context.Context, id, token string, expiresAt time.Time) error {
	return s.update(id, func(u *domain.User) {
		u.ResetToken = token
		u.ResetTokenExpiry = &expiresAt
	})
}

func (s *UserStore) ResetPassword(_ context.Context, id, passwordHash string) error {
	return s.update(id, func(u *domain.User) {
		u.PasswordHash = passwordHash
		u.ResetToken = ""
		u.ResetTokenExpiry = nil
	})
}

// UpdateProfile checks the unique keys against other users and re-indexes
// under one lock.
func (s *UserStore) UpdateProfile(_ context.Context, id string, update domain.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return errUserMissing
	}
	if update.Email != nil {
		if owner, taken := s.byEmail[*update.Email]; taken && owner != id {
			return domain.ErrEmailTaken
		}
	}
	if update.Username != nil {
		if owner, taken := s.byUsername[*update.Username]; taken && owner != id {
			return domain.ErrUsernameTaken
		}
	}

	if update.Email != nil {
		delete(s.byEmail, u.Email)
		u.Email = *update.Email
		s.byEmail[u.Email] = id
	}
	if update.Username != nil {
		delete(s.byUsername, u.Username)
		u.Username = *update.Username
		s.byUsername[u.Username] = id
	}
	if update.EmailVerified != nil {
		u.EmailVerified = *update.EmailVerified
	}
	u.UpdatedAt = time.Now()
	return nil
}

func (s *UserStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	delete(s.byEmail, u.Email)
	delete(s.byUsername, u.Username)
	delete(s.byID, id)
	return true, nil
}

func (s *UserStore) update(id string, fn func(u *domain.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return errUserMissing
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

// callers get copies so they cannot mutate stored records
func (s *UserStore) copyOf(id string) *domain.User {
	u, ok := s.byID[id]
	if !ok {
		return nil
	}
	cp := *u
	if u.ResetTokenExpiry != nil {
		exp := *u.ResetTokenExpiry
		cp.ResetTokenExpiry = &exp
	}
	return &cp
}
