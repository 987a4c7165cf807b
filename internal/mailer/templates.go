package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	SubjectOTP           = "Your OTP code"
	SubjectResetPassword = "Reset Password Link"
)

type OTPData struct {
	AppName          string
	Code             string
	Purpose          string
	ExpiresInMinutes int
}

type ResetPasswordData struct {
	AppName          string
	Username         string
	Link             string
	ExpiresInMinutes int
}

func RenderOTP(data OTPData) (string, error) {
	return render("otp.html", struct {
		OTPData
		Year int
	}{data, time.Now().Year()})
}

func RenderResetPassword(data ResetPasswordData) (string, error) {
	return render("reset-password.html", struct {
		ResetPasswordData
		Year int
	}{data, time.Now().Year()})
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}
