package handler

import (
	"errors"
	"strconv"

	autherror "github.com/AnthoniusHendriyanto/account-auth/internal/errors"
	"github.com/AnthoniusHendriyanto/account-auth/internal/logging"
	"github.com/gofiber/fiber/v2"
)

const codeValidation = "VALIDATION_ERROR"

// ErrorHandler renders every error a handler returns as
// {success:false, errorCode, message, userMessage} plus the error's extra
// fields. Errors outside the taxonomy become a generic 500.
func ErrorHandler(log logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code := codeValidation
			if fe.Code != fiber.StatusBadRequest {
				code = "HTTP_" + strconv.Itoa(fe.Code)
			}
			return c.Status(fe.Code).JSON(fiber.Map{
				"success":     false,
				"errorCode":   code,
				"message":     fe.Message,
				"userMessage": fe.Message,
			})
		}

		appErr := autherror.As(err)
		if appErr.Status >= fiber.StatusInternalServerError {
			log.Error(c.UserContext(), "request failed",
				"method", c.Method(), "path", c.Path(), "error", err)
		}

		body := fiber.Map{
			"success":     false,
			"errorCode":   appErr.Code,
			"message":     appErr.Message,
			"userMessage": appErr.UserMessage,
		}
		for k, v := range appErr.Extra {
			body[k] = v
		}
		return c.Status(appErr.Status).JSON(body)
	}
}
