package service

//go:generate mockgen -destination=../../mocks/mock_token_generator.go -package=mocks github.com/AnthoniusHendriyanto/account-auth/internal/auth/service TokenGenerator

import (
	"fmt"
	"time"

	autherror "github.com/AnthoniusHendriyanto/account-auth/internal/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenGenerator interface {
	IssueAccessToken(userID, username string, extended bool) (string, error)
	IssueRefreshToken(userID, username string) (string, error)
	// GenerateResetToken returns a reset-scoped token and the instant after
	// which it must no longer be accepted for a password reset.
	GenerateResetToken(userID, username string) (string, time.Time, error)
	VerifyAccessToken(tokenString string) (*JWTCustomClaims, error)
	VerifyResetToken(tokenString string) (*JWTCustomClaims, error)
	VerifyRefreshToken(tokenString string) (*JWTCustomClaims, error)
	GetAccessTokenExpiry(extended bool) time.Duration
	GetRefreshTokenExpiry() time.Duration
}

// TokenExpiry groups the lifetimes the token service signs with.
type TokenExpiry struct {
	Access         time.Duration
	ExtendedAccess time.Duration
	Refresh        time.Duration
	Reset          time.Duration
}

type TokenService struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	Expiry             TokenExpiry

	now func() time.Time
}

// purposeReset marks tokens that may only be used to reset a password.
const purposeReset = "password_reset"

type JWTCustomClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Purpose  string `json:"purpose,omitempty"`
}

func NewTokenService(accessSecret, refreshSecret string, expiry TokenExpiry) *TokenService {
	return &TokenService{
		AccessTokenSecret:  accessSecret,
		RefreshTokenSecret: refreshSecret,
		Expiry:             expiry,
		now:                time.Now,
	}
}

func (ts *TokenService) IssueAccessToken(userID, username string, extended bool) (string, error) {
	token, _, err := ts.sign(ts.AccessTokenSecret, userID, username, "", ts.GetAccessTokenExpiry(extended))
	return token, err
}

func (ts *TokenService) IssueRefreshToken(userID, username string) (string, error) {
	token, _, err := ts.sign(ts.RefreshTokenSecret, userID, username, "", ts.Expiry.Refresh)
	return token, err
}

func (ts *TokenService) GenerateResetToken(userID, username string) (string, time.Time, error) {
	return ts.sign(ts.AccessTokenSecret, userID, username, purposeReset, ts.Expiry.Reset)
}

func (ts *TokenService) sign(secret, userID, username, purpose string, ttl time.Duration) (string, time.Time, error) {
	now := ts.now()
	expiresAt := now.Add(ttl)

	claims := JWTCustomClaims{
		UserID:   userID,
		Username: username,
		Purpose:  purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

func (ts *TokenService) GetAccessTokenExpiry(extended bool) time.Duration {
	if extended {
		return ts.Expiry.ExtendedAccess
	}
	return ts.Expiry.Access
}

func (ts *TokenService) GetRefreshTokenExpiry() time.Duration {
	return ts.Expiry.Refresh
}

// VerifyAccessToken parses and validates the given access token string.
// Reset tokens are rejected. Every failure is reported as ErrInvalidToken.
func (ts *TokenService) VerifyAccessToken(tokenString string) (*JWTCustomClaims, error) {
	claims, err := ts.verify(tokenString, ts.AccessTokenSecret, "")
	if err != nil {
		return nil, autherror.ErrInvalidToken.Wrap(err)
	}
	return claims, nil
}

// VerifyResetToken accepts only tokens minted by GenerateResetToken.
func (ts *TokenService) VerifyResetToken(tokenString string) (*JWTCustomClaims, error) {
	claims, err := ts.verify(tokenString, ts.AccessTokenSecret, purposeReset)
	if err != nil {
		return nil, autherror.ErrInvalidToken.Wrap(err)
	}
	return claims, nil
}

// VerifyRefreshToken is VerifyAccessToken for the refresh secret; failures
// are reported as ErrInvalidRefreshToken.
func (ts *TokenService) VerifyRefreshToken(tokenString string) (*JWTCustomClaims, error) {
	claims, err := ts.verify(tokenString, ts.RefreshTokenSecret, "")
	if err != nil {
		return nil, autherror.ErrInvalidRefreshToken.Wrap(err)
	}
	return claims, nil
}

func (ts *TokenService) verify(tokenString, secret, purpose string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(ts.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("token purpose %q not accepted here", claims.Purpose)
	}

	return claims, nil
}
