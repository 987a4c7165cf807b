package errors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	autherror "github.com/AnthoniusHendriyanto/account-auth/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_IsMatchesKind(t *testing.T) {
	withExtra := autherror.ErrEmailNotVerified.WithExtra(map[string]any{"otpRedirect": true})
	wrapped := fmt.Errorf("login: %w", withExtra)

	assert.True(t, errors.Is(wrapped, autherror.ErrEmailNotVerified))
	assert.False(t, errors.Is(wrapped, autherror.ErrInvalidCredentials))
}

func TestAppError_WithExtraDoesNotMutateSentinel(t *testing.T) {
	e := autherror.ErrEmailAlreadyTaken.WithExtra(map[string]any{"email": "a@x.com"})

	assert.Equal(t, "a@x.com", e.Extra["email"])
	assert.Nil(t, autherror.ErrEmailAlreadyTaken.Extra)
}

func TestAppError_WrapKeepsCause(t *testing.T) {
	cause := errors.New("smtp down")
	e := autherror.ErrOtpSendFailed.Wrap(cause)

	assert.ErrorIs(t, e, cause)
	assert.ErrorIs(t, e, autherror.ErrOtpSendFailed)
	assert.Contains(t, e.Error(), "smtp down")
	assert.Nil(t, autherror.ErrOtpSendFailed.Err)
}

func TestAs(t *testing.T) {
	t.Run("app error is returned as is", func(t *testing.T) {
		got := autherror.As(fmt.Errorf("wrap: %w", autherror.ErrUserNotFound))
		assert.Equal(t, autherror.KindUserNotFound, got.Kind)
		assert.Equal(t, http.StatusNotFound, got.Status)
		assert.Equal(t, "USER_001", got.Code)
	})

	t.Run("unknown error becomes internal", func(t *testing.T) {
		got := autherror.As(errors.New("boom"))
		require.NotNil(t, got)
		assert.Equal(t, autherror.KindInternal, got.Kind)
		assert.Equal(t, http.StatusInternalServerError, got.Status)
		assert.NotContains(t, got.UserMessage, "boom")
	})
}
