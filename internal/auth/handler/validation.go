package handler

import (
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/dto"
	"github.com/gofiber/fiber/v2"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores anything longer
	minUsernameLen = 3
	maxUsernameLen = 30
	defaultOTPLen  = 6
)

var errInvalidBody = fiber.NewError(fiber.StatusBadRequest, "invalid request body")

func validationError(msg string) error {
	return fiber.NewError(fiber.StatusBadRequest, msg)
}

// validateEmail trims and lowercases the address in place.
func validateEmail(email *string) error {
	*email = strings.ToLower(strings.TrimSpace(*email))
	if *email == "" {
		return validationError("email is required")
	}
	addr, err := mail.ParseAddress(*email)
	if err != nil || addr.Address != *email {
		return validationError("email is invalid")
	}
	return nil
}

func validatePassword(field, password string) error {
	switch {
	case password == "":
		return validationError(field + " is required")
	case utf8.RuneCountInString(password) < minPasswordLen:
		return validationError(field + " must be at least 8 characters")
	case len(password) > maxPasswordLen:
		return validationError(field + " must be at most 72 bytes")
	}
	return nil
}

func validateRegister(input *dto.RegisterInput) error {
	if err := validateUsername(&input.Username); err != nil {
		return err
	}
	if err := validateEmail(&input.Email); err != nil {
		return err
	}
	return validatePassword("password", input.Password)
}

func validateLogin(input *dto.LoginInput) error {
	if err := validateEmail(&input.Email); err != nil {
		return err
	}
	if input.Password == "" {
		return validationError("password is required")
	}
	return nil
}

func validateOTP(input *dto.ValidateOTPInput, length int) error {
	if err := validateEmail(&input.Email); err != nil {
		return err
	}
	input.Pin = strings.TrimSpace(input.Pin)
	invalid := validationError("pin must be " + strconv.Itoa(length) + " digits")
	if len(input.Pin) != length {
		return invalid
	}
	for _, r := range input.Pin {
		if r < '0' || r > '9' {
			return invalid
		}
	}
	return nil
}

func validateUsername(username *string) error {
	*username = strings.TrimSpace(*username)
	n := utf8.RuneCountInString(*username)
	if n < minUsernameLen || n > maxUsernameLen {
		return validationError("username must be between 3 and 30 characters")
	}
	return nil
}

func validateUpdateUser(input *dto.UpdateUserInput) error {
	if input.Email != nil {
		if err := validateEmail(input.Email); err != nil {
			return err
		}
	}
	if input.Username != nil {
		return validateUsername(input.Username)
	}
	return nil
}
