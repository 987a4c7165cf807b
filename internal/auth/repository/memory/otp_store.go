package memory

import (
	"context"
	"sync"
	"time"

	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/domain"
)

type otpKey struct {
	code    string
	otpType domain.OTPType
}

type OTPStore struct {
	mu    sync.Mutex
	codes map[string]*domain.OneTimeCode // by id
	index map[otpKey]string
}

func NewOTPStore() *OTPStore {
	return &OTPStore{
		codes: make(map[string]*domain.OneTimeCode),
		index: make(map[otpKey]string),
	}
}

func (s *OTPStore) Replace(_ context.Context, otp *domain.OneTimeCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := otpKey{code: otp.Code, otpType: otp.Type}
	if id, ok := s.index[key]; ok {
		// a collision with the caller's own previous code is fine, it is about to go
		if existing := s.codes[id]; existing.UserID != otp.UserID {
			return domain.ErrOtpCodeTaken
		}
	}

	s.deleteByUserAndType(otp.UserID, otp.Type)
	cp := *otp
	s.codes[cp.ID] = &cp
	s.index[key] = cp.ID
	return nil
}

func (s *OTPStore) FindByCodeAndType(_ context.Context, code string, otpType domain.OTPType) (*domain.OneTimeCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.index[otpKey{code: code, otpType: otpType}]
	if !ok {
		return nil, nil
	}
	cp := *s.codes[id]
	return &cp, nil
}

func (s *OTPStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(id), nil
}

func (s *OTPStore) DeleteByUserAndType(_ context.Context, userID string, otpType domain.OTPType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteByUserAndType(userID, otpType)
	return nil
}

func (s *OTPStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, otp := range s.codes {
		if otp.Expired(before) && s.remove(id) {
			n++
		}
	}
	return n, nil
}

func (s *OTPStore) deleteByUserAndType(userID string, otpType domain.OTPType) {
	for id, otp := range s.codes {
		if otp.UserID == userID && otp.Type == otpType {
			s.remove(id)
		}
	}
}

func (s *OTPStore) remove(id string) bool {
	otp, ok := s.codes[id]
	if !ok {
		return false
	}
	delete(s.codes, id)
	delete(s.index, otpKey{code: otp.Code, otpType: otp.Type})
	return true
}
