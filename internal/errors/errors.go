// Package errors holds the closed set of domain failures the service can
// report. Each kind carries a machine code, an HTTP status, an internal
// message and a message that is safe to show to users.
package errors

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalidCredentials
	KindInvalidToken
	KindInvalidRefreshToken
	KindEmailNotVerified
	KindEmailAlreadyTaken
	KindUsernameAlreadyTaken
	KindUserNotFound
	KindEmailAlreadyVerified
	KindOtpNotFound
	KindInvalidOtp
	KindOtpExpired
	KindOtpAlreadyUsed
	KindOtpSendFailed
	KindInvalidCurrentPassword
	KindSamePassword
	KindAccountAlreadyConnectedWithProvider
	KindNoUpdatesProvided
)

// AppError is the tagged error returned by every service operation.
// Extra is an optional side channel (for example {"otpRedirect": true}) that
// the HTTP layer merges into the error body.
type AppError struct {
	Kind        Kind
	Code        string
	Status      int
	Message     string
	UserMessage string
	Extra       map[string]any
	Err         error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Kind so that errors.Is(err, ErrOtpExpired) holds for copies
// produced by WithExtra and Wrap.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Kind == e.Kind
}

// WithExtra returns a copy of e carrying the given side-channel data.
func (e *AppError) WithExtra(extra map[string]any) *AppError {
	cp := *e
	cp.Extra = make(map[string]any, len(extra))
	for k, v := range extra {
		cp.Extra[k] = v
	}
	return &cp
}

// Wrap returns a copy of e with cause attached for logging.
func (e *AppError) Wrap(cause error) *AppError {
	cp := *e
	cp.Err = cause
	return &cp
}

func newError(kind Kind, status int, code, message, userMessage string) *AppError {
	return &AppError{
		Kind:        kind,
		Code:        code,
		Status:      status,
		Message:     message,
		UserMessage: userMessage,
	}
}

var (
	ErrInternal = newError(KindInternal, http.StatusInternalServerError, "UNKNOWN",
		"Unknown server error", "Something went wrong. Please try again later.")

	ErrEmailAlreadyTaken = newError(KindEmailAlreadyTaken, http.StatusConflict, "AUTH_001",
		"Email is already registered.", "An account with this email already exists.")
	ErrUsernameAlreadyTaken = newError(KindUsernameAlreadyTaken, http.StatusConflict, "AUTH_002",
		"Username is already taken.", "This username is already in use.")
	ErrInvalidCredentials = newError(KindInvalidCredentials, http.StatusUnauthorized, "AUTH_003",
		"Invalid email or password.", "The login information you provided is incorrect.")
	ErrInvalidCurrentPassword = newError(KindInvalidCurrentPassword, http.StatusBadRequest, "AUTH_004",
		"Current password does not match.", "Your current password is incorrect.")
	ErrSamePassword = newError(KindSamePassword, http.StatusBadRequest, "AUTH_005",
		"New password equals the current password.", "Your new password must be different from the current one.")
	ErrEmailNotVerified = newError(KindEmailNotVerified, http.StatusForbidden, "AUTH_006",
		"Email has not been verified.", "Please verify your email before continuing.")
	ErrEmailAlreadyVerified = newError(KindEmailAlreadyVerified, http.StatusBadRequest, "AUTH_007",
		"Email is already verified.", "Your email has already been verified.")
	ErrAccountAlreadyConnectedWithProvider = newError(KindAccountAlreadyConnectedWithProvider, http.StatusBadRequest, "AUTH_008",
		"Account is connected with an external provider.", "This account signs in with a social provider and has no password.")

	ErrInvalidToken = newError(KindInvalidToken, http.StatusUnauthorized, "JWT_001",
		"Invalid or expired token.", "Your session has expired. Please log in again.")
	ErrInvalidRefreshToken = newError(KindInvalidRefreshToken, http.StatusUnauthorized, "JWT_002",
		"Invalid or expired refresh token.", "Your session has expired. Please log in again.")

	ErrUserNotFound = newError(KindUserNotFound, http.StatusNotFound, "USER_001",
		"User not found.", "We couldn't find a user with that information.")
	ErrNoUpdatesProvided = newError(KindNoUpdatesProvided, http.StatusBadRequest, "USER_002",
		"No updates provided.", "Nothing to update.")

	ErrOtpNotFound = newError(KindOtpNotFound, http.StatusNotFound, "OTP_001",
		"OTP not found.", "The code you entered is not valid.")
	ErrInvalidOtp = newError(KindInvalidOtp, http.StatusBadRequest, "OTP_002",
		"OTP does not belong to this user.", "The code you entered is not valid.")
	ErrOtpExpired = newError(KindOtpExpired, http.StatusBadRequest, "OTP_003",
		"OTP has expired.", "The code has expired. Please request a new one.")
	ErrOtpAlreadyUsed = newError(KindOtpAlreadyUsed, http.StatusBadRequest, "OTP_004",
		"OTP has already been used.", "This code has already been used.")
	ErrOtpSendFailed = newError(KindOtpSendFailed, http.StatusInternalServerError, "OTP_005",
		"Failed to send OTP.", "We couldn't send the verification code. Please try again.")
)

// As extracts the *AppError in err's chain. Anything that is not an AppError
// is reported as ErrInternal wrapping the original error.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal.Wrap(err)
}
