package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-autonomax/app/dto"
	"github.com/vibast-solutions/ms-go-autonomax/app/middleware"
	"github.com/vibast-solutions/ms-go-autonomax/app/service"
)

type Accounts interface {
	Register(ctx context.Context, email string, password string) (string, error)
	Login(ctx context.Context, email string, password string) (string, error)
}

type AuthController struct {
	accounts Accounts
	logger   logrus.FieldLogger
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func NewAuthController(accounts Accounts, logger logrus.FieldLogger) *AuthController {
	return &AuthController{accounts: accounts, logger: logger}
}

// Register creates an account and answers with its first access token.
func (c *AuthController) Register(ctx echo.Context) error {
	req, err := dto.CredentialsFromEchoContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := req.ValidateRegister(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	token, err := c.accounts.Register(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			return ctx.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		c.logger.WithError(err).Error("register failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to register"})
	}
	return ctx.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (c *AuthController) Login(ctx echo.Context) error {
	req, err := dto.CredentialsFromEchoContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := req.ValidateLogin(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	token, err := c.accounts.Login(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
		}
		c.logger.WithError(err).Error("login failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to login"})
	}
	return ctx.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Me echoes the authenticated email.
func (c *AuthController) Me(ctx echo.Context) error {
	email, ok := middleware.UserEmail(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"email": email})
}
