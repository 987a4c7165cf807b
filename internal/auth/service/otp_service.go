package service

//go:generate mockgen -destination=../../mocks/mock_otp_sender.go -package=mocks github.com/AnthoniusHendriyanto/account-auth/internal/auth/service OTPSender

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/domain"
	autherror "github.com/AnthoniusHendriyanto/account-auth/internal/errors"
	"github.com/AnthoniusHendriyanto/account-auth/internal/logging"
	"github.com/AnthoniusHendriyanto/account-auth/internal/mailer"
	"github.com/google/uuid"
)

const (
	// maxCodeAttempts bounds retries when a generated code collides with a
	// live code of the same type.
	maxCodeAttempts = 3
	maxCodeLength   = 18 // 10^18 still fits an int64
)

type OTPSender interface {
	Send(ctx context.Context, userID, email string, otpType domain.OTPType) error
	Verify(ctx context.Context, userID, code string, otpType domain.OTPType) error
	Resend(ctx context.Context, userID, email string, otpType domain.OTPType) error
}

type OTPService struct {
	repo     domain.OTPRepository
	mailer   domain.Mailer
	log      logging.Logger
	appName  string
	expiry   time.Duration
	length   int
	now      func() time.Time
	generate func(length int) (string, error)
}

type OTPOption func(*OTPService)

func WithOTPClock(now func() time.Time) OTPOption {
	return func(s *OTPService) { s.now = now }
}

func WithOTPGenerator(gen func(length int) (string, error)) OTPOption {
	return func(s *OTPService) { s.generate = gen }
}

func NewOTPService(repo domain.OTPRepository, m domain.Mailer, log logging.Logger, appName string, expiry time.Duration, length int, opts ...OTPOption) *OTPService {
	s := &OTPService{
		repo:     repo,
		mailer:   m,
		log:      log,
		appName:  appName,
		expiry:   expiry,
		length:   length,
		now:      time.Now,
		generate: generateCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send replaces any live code of (userID, otpType) with a fresh one and mails
// it. Failures are reported as ErrOtpSendFailed with the cause attached.
func (s *OTPService) Send(ctx context.Context, userID, email string, otpType domain.OTPType) error {
	otp, err := s.store(ctx, userID, otpType)
	if err != nil {
		s.log.Error(ctx, "failed to store otp", "user_id", userID, "type", otpType, "error", err)
		return autherror.ErrOtpSendFailed.Wrap(err)
	}

	html, err := mailer.RenderOTP(mailer.OTPData{
		AppName:          s.appName,
		Code:             otp.Code,
		Purpose:          purposeOf(otpType),
		ExpiresInMinutes: int(s.expiry / time.Minute),
	})
	if err != nil {
		return autherror.ErrOtpSendFailed.Wrap(err)
	}

	if err := s.mailer.Send(ctx, email, mailer.SubjectOTP, html); err != nil {
		s.log.Error(ctx, "failed to mail otp", "user_id", userID, "type", otpType, "error", err)
		return autherror.ErrOtpSendFailed.Wrap(err)
	}

	s.log.Info(ctx, "otp sent", "user_id", userID, "type", otpType)
	return nil
}

func (s *OTPService) store(ctx context.Context, userID string, otpType domain.OTPType) (*domain.OneTimeCode, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.generate(s.length)
		if err != nil {
			return nil, fmt.Errorf("failed to generate otp: %w", err)
		}

		now := s.now()
		otp := &domain.OneTimeCode{
			ID:        uuid.NewString(),
			UserID:    userID,
			Code:      code,
			Type:      otpType,
			ExpiresAt: now.Add(s.expiry),
			CreatedAt: now,
		}

		err = s.repo.Replace(ctx, otp)
		if errors.Is(err, domain.ErrOtpCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return otp, nil
	}
	return nil, fmt.Errorf("no free otp code after %d attempts", maxCodeAttempts)
}

// Verify consumes the code if it belongs to userID and is still live.
func (s *OTPService) Verify(ctx context.Context, userID, code string, otpType domain.OTPType) error {
	otp, err := s.repo.FindByCodeAndType(ctx, code, otpType)
	if err != nil {
		return autherror.ErrInternal.Wrap(err)
	}
	if otp == nil {
		return autherror.ErrOtpNotFound
	}

	if subtle.ConstantTimeCompare([]byte(otp.UserID), []byte(userID)) != 1 {
		return autherror.ErrInvalidOtp
	}

	if otp.Expired(s.now()) {
		if _, err := s.repo.Delete(ctx, otp.ID); err != nil {
			s.log.Warn(ctx, "failed to delete expired otp", "otp_id", otp.ID, "error", err)
		}
		return autherror.ErrOtpExpired
	}

	removed, err := s.repo.Delete(ctx, otp.ID)
	if err != nil {
		return autherror.ErrInternal.Wrap(err)
	}
	if !removed {
		// a concurrent Verify consumed it between our lookup and delete
		return autherror.ErrOtpAlreadyUsed
	}
	return nil
}

// Resend invalidates every live code of the pair before sending a new one.
func (s *OTPService) Resend(ctx context.Context, userID, email string, otpType domain.OTPType) error {
	if err := s.repo.DeleteByUserAndType(ctx, userID, otpType); err != nil {
		return autherror.ErrOtpSendFailed.Wrap(err)
	}
	return s.Send(ctx, userID, email, otpType)
}

// SweepExpired removes codes that expired before now and reports how many.
func (s *OTPService) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

func purposeOf(otpType domain.OTPType) string {
	if otpType == domain.OTPTypePasswordReset {
		return "reset your password"
	}
	return "verify your email"
}

func generateCode(length int) (string, error) {
	if length < 1 || length > maxCodeLength {
		return "", fmt.Errorf("otp length %d out of range", length)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}
