package handler

import (
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App, h *AuthHandler) {
	auth := app.Group("/api/v1/auth")

	auth.Post("/login", h.Login)
	auth.Post("/register", h.Register)
	auth.Post("/refresh", h.Refresh)
	auth.Post("/send-otp", h.SendOtp)
	auth.Post("/resend-otp", h.ResendOtp)
	auth.Put("/validate-otp", h.ValidateOtp)
	auth.Post("/reset-password", h.SendPasswordEmail)
	auth.Put("/update-password", h.RequireResetOrAuth, h.UpdatePassword)
	auth.Put("/change-password", h.RequireAuth, h.ChangePassword)
	auth.Post("/logout", h.RequireAuth, h.Logout)
	auth.Get("/me", h.RequireAuth, h.Me)
	auth.Put("/update", h.RequireAuth, h.UpdateUser)
	auth.Delete("/delete", h.RequireAuth, h.DeleteUser)
	auth.Get("/providers", h.Providers)

	// must come after the fixed GET routes
	auth.Get("/:provider", h.OAuthStart)
	auth.Get("/:provider/callback", h.OAuthCallback)
}
