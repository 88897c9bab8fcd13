package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/vibast-solutions/ms-go-autonomax/app/middleware"
	"github.com/vibast-solutions/ms-go-autonomax/app/service"
)

type fakeAccounts struct {
	err error
}

func (f fakeAccounts) Register(_ context.Context, email string, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token-for-" + email, nil
}

func (f fakeAccounts) Login(_ context.Context, email string, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token-for-" + email, nil
}

func (f fakeAccounts) Authenticate(token string) (string, error) {
	if token == "token-for-a@b.com" {
		return "a@b.com", nil
	}
	return "", service.ErrInvalidCredentials
}

func postJSON(path string, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthControllerRegister(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{name: "success", body: `{"email":"a@b.com","password":"changeme123"}`, code: http.StatusOK},
		{name: "duplicate", body: `{"email":"a@b.com","password":"changeme123"}`, err: service.ErrEmailTaken, code: http.StatusConflict},
		{name: "short password", body: `{"email":"a@b.com","password":"short"}`, code: http.StatusBadRequest},
		{name: "invalid email", body: `{"email":"nope","password":"changeme123"}`, code: http.StatusBadRequest},
		{name: "password over bcrypt limit", body: `{"email":"a@b.com","password":"` + strings.Repeat("p", 73) + `"}`, code: http.StatusBadRequest},
		{name: "malformed", body: `{`, code: http.StatusBadRequest},
		{name: "store failure", body: `{"email":"a@b.com","password":"changeme123"}`, err: errors.New("db down"), code: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger, _ := test.NewNullLogger()
			ctx, rec := postJSON("/api/auth/register", tc.body)
			if err := NewAuthController(fakeAccounts{err: tc.err}, logger).Register(ctx); err != nil {
				t.Fatalf("Register: %v", err)
			}
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
			if tc.code == http.StatusOK {
				var resp tokenResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if resp.AccessToken != "token-for-a@b.com" || resp.TokenType != "bearer" {
					t.Fatalf("unexpected response: %+v", resp)
				}
			}
		})
	}
}

func TestAuthControllerLogin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		err  error
		code int
		msg  string
	}{
		{name: "success", body: `{"email":"a@b.com","password":"whatever"}`, code: http.StatusOK},
		{name: "bad credentials", body: `{"email":"a@b.com","password":"whatever"}`, err: service.ErrInvalidCredentials, code: http.StatusUnauthorized, msg: "invalid credentials"},
		{name: "missing password", body: `{"email":"a@b.com"}`, code: http.StatusBadRequest},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger, _ := test.NewNullLogger()
			ctx, rec := postJSON("/api/auth/login", tc.body)
			if err := NewAuthController(fakeAccounts{err: tc.err}, logger).Login(ctx); err != nil {
				t.Fatalf("Login: %v", err)
			}
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
			if tc.msg != "" {
				var resp map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if resp["error"] != tc.msg {
					t.Fatalf("expected %q, got %q", tc.msg, resp["error"])
				}
			}
		})
	}
}

func TestAuthControllerMe(t *testing.T) {
	t.Parallel()

	logger, _ := test.NewNullLogger()
	ctrl := NewAuthController(fakeAccounts{}, logger)
	handler := middleware.NewEchoBearerMiddleware(fakeAccounts{}).RequireUser(ctrl.Me)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer token-for-a@b.com")
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Me: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["email"] != "a@b.com" {
		t.Fatalf("unexpected response: %v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec = httptest.NewRecorder()
	if err := ctrl.Me(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Me: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without middleware, got %d", rec.Code)
	}
}
