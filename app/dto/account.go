package dto

import (
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is the most bcrypt will hash.
	MaxPasswordBytes = 72
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidEmail       = errors.New("email must be a valid email address")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
)

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CredentialsFromEchoContext binds and normalizes a request from Echo.
func CredentialsFromEchoContext(ctx echo.Context) (CredentialsRequest, error) {
	var req CredentialsRequest
	if err := ctx.Bind(&req); err != nil {
		return CredentialsRequest{}, err
	}
	req.normalize()
	return req, nil
}

// ValidateRegister checks a new account's email and password policy.
func (r *CredentialsRequest) ValidateRegister() error {
	if err := r.ValidateLogin(); err != nil {
		return err
	}
	addr, err := mail.ParseAddress(r.Email)
	if err != nil || addr.Address != r.Email {
		return ErrInvalidEmail
	}
	if utf8.RuneCountInString(r.Password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(r.Password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// ValidateLogin only requires both fields; wrong values are a credentials error.
func (r *CredentialsRequest) ValidateLogin() error {
	if r.Email == "" || r.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// normalize trims the email; passwords are taken verbatim.
func (r *CredentialsRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
}
