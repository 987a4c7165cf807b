package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/domain"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/dto"
	autherror "github.com/AnthoniusHendriyanto/account-auth/internal/errors"
	"github.com/AnthoniusHendriyanto/account-auth/internal/logging"
	"github.com/AnthoniusHendriyanto/account-auth/internal/mailer"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const maxUsernameAttempts = 5

// ProviderCatalog lists the social login providers that are configured.
type ProviderCatalog interface {
	Providers() []dto.ProviderOutput
}

type AuthService struct {
	users     domain.UserRepository
	otp       OTPSender
	tokens    TokenGenerator
	mailer    domain.Mailer
	log       logging.Logger
	revoked   domain.RevocationStore
	providers ProviderCatalog

	appName    string
	appURL     string
	bcryptCost int
	dummyHash  []byte
	now        func() time.Time
}

type AuthOption func(*AuthService)

func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.bcryptCost = cost }
}

// WithRevocationStore enables refresh token revocation on logout.
func WithRevocationStore(store domain.RevocationStore) AuthOption {
	return func(s *AuthService) { s.revoked = store }
}

func WithProviderCatalog(c ProviderCatalog) AuthOption {
	return func(s *AuthService) { s.providers = c }
}

func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(users domain.UserRepository, otp OTPSender, tokens TokenGenerator, m domain.Mailer,
	log logging.Logger, appName, appURL string, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:      users,
		otp:        otp,
		tokens:     tokens,
		mailer:     m,
		log:        log,
		appName:    appName,
		appURL:     strings.TrimRight(appURL, "/"),
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// compared against when the email is unknown so both paths cost one bcrypt
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.bcryptCost)
	return s
}

func (s *AuthService) Login(ctx context.Context, input dto.LoginInput) (*dto.TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, autherror.ErrInternal.Wrap(err)
	}

	if user == nil || !user.HasPassword() {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(input.Password))
		return nil, autherror.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		return nil, autherror.ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, autherror.ErrEmailNotVerified.WithExtra(map[string]any{
			"otpRedirect": true,
			"email":       user.Email,
		})
	}

	pair, err := s.issuePair(user, input.RememberMe)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user logged in", "user_id", user.ID, "remember_me", input.RememberMe)
	return pair, nil
}

func (s *AuthService) Register(ctx context.Context, input dto.RegisterInput) (*domain.User, error) {
	existing, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, autherror.ErrInternal.Wrap(err)
	}
	if existing != nil {
		if !existing.EmailVerified {
			return nil, autherror.ErrEmailAlreadyTaken.WithExtra(map[string]any{
				"otpRedirect": true,
				"email":       input.Email,
			})
		}
		return nil, autherror.ErrEmailAlreadyTaken
	}

	byName, err := s.users.GetByUsername(ctx, input.Username)
	if err != nil {
		return nil, autherror.ErrInternal.Wrap(err)
	}
	if byName != nil {
		return nil, autherror.ErrUsernameAlreadyTaken
	}

	hash, err := s.hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: hash,
		Provider:     domain.ProviderCredentials,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// the lookups above are advisory; the store decides concurrent races
	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailTaken):
			return nil, autherror.ErrEmailAlreadyTaken
		case errors.Is(err, domain.ErrUsernameTaken):
			return nil, autherror.ErrUsernameAlreadyTaken
		}
		return nil, autherror.ErrInternal.Wrap(err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) SendOtp(ctx context.Context, email string) error {
	user, err := s.unverifiedUser(ctx, email)
	if err != nil {
		return err
	}
	return s.otp.Send(ctx, user.ID, user.Email, domain.OTPTypeEmailVerification)
}

func (s *AuthService) ResendOtp(ctx context.Context, email string) error {
	user, err := s.unverifiedUser(ctx, email)
	if err != nil {
		return err
	}
	return s.otp.Resend(ctx, user.ID, user.Email, domain.OTPTypeEmailVerification)
}

func (s *AuthService) unverifiedUser(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.EmailVerified {
		return nil, autherror.ErrEmailAlreadyVerified
	}
	return user, nil
}

func (s *AuthService) ValidateOtp(ctx context.Context, email, code string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.otp.Verify(ctx, user.ID, code, domain.OTPTypeEmailVerification); err != nil {
		return err
	}

	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return autherror.ErrInternal.Wrap(err)
	}
	s.log.Info(ctx, "email verified", "user_id", user.ID)
	return nil
}

func (s *AuthService) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return autherror.ErrAccountAlreadyConnectedWithProvider
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return autherror.ErrInvalidCurrentPassword
	}
	// current is verified against the hash, so a plaintext compare is enough
	if currentPassword == newPassword {
		return autherror.ErrSamePassword
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return autherror.ErrInternal.Wrap(err)
	}
	return nil
}

// SendPasswordEmail issues and persists a reset token, mails the reset link
// and returns the token for the caller to set as a cookie.
func (s *AuthService) SendPasswordEmail(ctx context.Context, email string) (string, error) {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user.Provider != domain.ProviderCredentials {
		return "", autherror.ErrAccountAlreadyConnectedWithProvider
	}

	token, expiresAt, err := s.tokens.GenerateResetToken(user.ID, user.Username)
	if err != nil {
		return "", autherror.ErrInternal.Wrap(err)
	}
	if err := s.users.SetResetToken(ctx, user.ID, token, expiresAt); err != nil {
		return "", autherror.ErrInternal.Wrap(err)
	}

	html, err := mailer.RenderResetPassword(mailer.ResetPasswordData{
		AppName:          s.appName,
		Username:         user.Username,
		Link:             s.appURL + "/reset-password",
		ExpiresInMinutes: int(expiresAt.Sub(s.now()).Round(time.Minute) / time.Minute),
	})
	if err != nil {
		return "", autherror.ErrInternal.Wrap(err)
	}
	if err := s.mailer.Send(ctx, user.Email, mailer.SubjectResetPassword, html); err != nil {
		s.log.Error(ctx, "failed to mail reset link", "user_id", user.ID, "error", err)
		return "", autherror.ErrInternal.Wrap(err)
	}

	return token, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, userID, newPassword string) error {
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Provider != domain.ProviderCredentials {
		return autherror.ErrAccountAlreadyConnectedWithProvider
	}

	if user.PasswordHash != "" &&
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(newPassword)) == nil {
		return autherror.ErrSamePassword
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.ResetPassword(ctx, user.ID, hash); err != nil {
		return autherror.ErrInternal.Wrap(err)
	}
	s.log.Info(ctx, "password reset", "user_id", user.ID)
	return nil
}

// VerifyResetToken checks a reset token against the one persisted on the
// user and its expiry, on top of the signature check.
func (s *AuthService) VerifyResetToken(ctx context.Context, token string) (*JWTCustomClaims, error) {
	claims, err := s.tokens.VerifyResetToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, autherror.ErrInternal.Wrap(err)
	}
	if user == nil || user.ResetToken == "" || user.ResetToken != token ||
		user.ResetTokenExpiry == nil || !s.now().Before(*user.ResetTokenExpiry) {
		return nil, autherror.ErrInvalidToken
	}
	return claims, nil
}

// RefreshTokens issues a fresh pair for a valid refresh token. The presented
// token is not rotated out.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, autherror.ErrInternal.Wrap(err)
		}
		if revoked {
			return nil, autherror.ErrInvalidRefreshToken
		}
	}

	user, err := s.userByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return s.issuePair(user, false)
}

func (s *AuthService) HandleAuthCallback(_ context.Context, user *domain.User) (*dto.TokenResponse, error) {
	if user == nil {
		return nil, autherror.ErrUserNotFound
	}
	return s.issuePair(user, false)
}

// ResolveOAuthUser finds the account for a provider profile by email, or
// creates a verified one with a username derived from the display name.
func (s *AuthService) ResolveOAuthUser(ctx context.Context, provider domain.Provider, profile domain.ExternalProfile) (*domain.User, error) {
	profile.Email = normalizeEmail(profile.Email)
	if profile.Email == "" {
		return nil, autherror.ErrUserNotFound
	}

	user, err := s.users.GetByEmail(ctx, profile.Email)
	if err != nil {
		return nil, autherror.ErrInternal.Wrap(err)
	}
	if user != nil {
		return user, nil
	}

	base := usernameBase(profile)
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		username := base
		if attempt > 0 {
			suffix, err := generateCode(4)
			if err != nil {
				return nil, autherror.ErrInternal.Wrap(err)
			}
			username = base + suffix
		}

		now := s.now()
		user = &domain.User{
			ID:            uuid.NewString(),
			Email:         profile.Email,
			Username:      username,
			Provider:      provider,
			EmailVerified: true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		err := s.users.Create(ctx, user)
		switch {
		case err == nil:
			s.log.Info(ctx, "oauth user created", "user_id", user.ID, "provider", provider)
			return user, nil
		case errors.Is(err, domain.ErrUsernameTaken):
			continue
		case errors.Is(err, domain.ErrEmailTaken):
			// created concurrently by another callback
			existing, err := s.users.GetByEmail(ctx, profile.Email)
			if err != nil || existing == nil {
				return nil, autherror.ErrInternal.Wrap(err)
			}
			return existing, nil
		default:
			return nil, autherror.ErrInternal.Wrap(err)
		}
	}
	return nil, autherror.ErrUsernameAlreadyTaken
}

// Logout revokes the refresh token until it would expire. It never fails:
// the caller clears cookies regardless.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if s.revoked == nil || refreshToken == "" {
		return
	}
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.log.Warn(ctx, "failed to revoke refresh token", "user_id", claims.UserID, "error", err)
	}
}

func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.userByID(ctx, userID)
}

// UpdateUser applies a partial profile update and returns the stored user.
// A new email must be verified again before the next login.
func (s *AuthService) UpdateUser(ctx context.Context, userID string, input dto.UpdateUserInput) (*domain.User, error) {
	if input.Email == nil && input.Username == nil {
		return nil, autherror.ErrNoUpdatesProvided
	}

	user, err := s.userByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var update domain.ProfileUpdate
	if input.Email != nil {
		if email := normalizeEmail(*input.Email); email != user.Email {
			// social accounts are matched to their provider by email
			if user.Provider != domain.ProviderCredentials {
				return nil, autherror.ErrAccountAlreadyConnectedWithProvider
			}
			verified := false
			update.Email, update.EmailVerified = &email, &verified
		}
	}
	if input.Username != nil && *input.Username != user.Username {
		update.Username = input.Username
	}
	if update.Empty() {
		return user, nil
	}

	if err := s.users.UpdateProfile(ctx, user.ID, update); err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailTaken):
			return nil, autherror.ErrEmailAlreadyTaken
		case errors.Is(err, domain.ErrUsernameTaken):
			return nil, autherror.ErrUsernameAlreadyTaken
		}
		return nil, autherror.ErrInternal.Wrap(err)
	}

	s.log.Info(ctx, "user updated", "user_id", user.ID, "email_changed", update.Email != nil)
	return s.userByID(ctx, user.ID)
}

func (s *AuthService) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return autherror.ErrUserNotFound
	}

	removed, err := s.users.Delete(ctx, userID)
	if err != nil {
		return autherror.ErrInternal.Wrap(err)
	}
	if !removed {
		return autherror.ErrUserNotFound
	}
	s.log.Info(ctx, "user deleted", "user_id", userID)
	return nil
}

func (s *AuthService) Providers() []dto.ProviderOutput {
	if s.providers == nil {
		return []dto.ProviderOutput{}
	}
	return s.providers.Providers()
}

func (s *AuthService) issuePair(user *domain.User, extended bool) (*dto.TokenResponse, error) {
	access, err := s.tokens.IssueAccessToken(user.ID, user.Username, extended)
	if err != nil {
		return nil, autherror.ErrInternal.Wrap(err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, autherror.ErrInternal.Wrap(err)
	}
	return &dto.TokenResponse{AccessToken: access, RefreshToken: refresh, Extended: extended}, nil
}

func (s *AuthService) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", autherror.ErrInternal.Wrap(err)
	}
	return string(hash), nil
}

func (s *AuthService) userByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, autherror.ErrInternal.Wrap(err)
	}
	if user == nil {
		return nil, autherror.ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) userByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, autherror.ErrInternal.Wrap(err)
	}
	if user == nil {
		return nil, autherror.ErrUserNotFound
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func usernameBase(profile domain.ExternalProfile) string {
	source := profile.DisplayName
	if source == "" {
		source, _, _ = strings.Cut(profile.Email, "@")
	}

	var b strings.Builder
	for _, r := range strings.ToLower(source) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '_', r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}
