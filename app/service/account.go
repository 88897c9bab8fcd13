package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-autonomax/app/auth"
	"github.com/vibast-solutions/ms-go-autonomax/app/preparer"
	"github.com/vibast-solutions/ms-go-autonomax/app/provider"
	"github.com/vibast-solutions/ms-go-autonomax/app/repository"
)

const welcomeTimeout = 10 * time.Second

type AccountService struct {
	users    *repository.UserRepository
	tokens   *auth.TokenIssuer
	preparer preparer.EmailPreparer
	provider provider.EmailProvider
	logger   logrus.FieldLogger
}

// NewAccountService builds the account service. preparer and provider deliver
// the welcome email.
func NewAccountService(users *repository.UserRepository, tokens *auth.TokenIssuer, preparer preparer.EmailPreparer, provider provider.EmailProvider, logger logrus.FieldLogger) *AccountService {
	return &AccountService{users: users, tokens: tokens, preparer: preparer, provider: provider, logger: logger}
}

// Register creates the account and returns an access token for it.
func (s *AccountService) Register(ctx context.Context, email string, password string) (string, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.Create(ctx, email, hash); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(email)
	if err != nil {
		return "", err
	}

	s.sendWelcome(ctx, email)
	return token, nil
}

// Login checks credentials and returns a fresh access token.
func (s *AccountService) Login(ctx context.Context, email string, password string) (string, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("find user: %w", err)
	}

	ok, err := auth.VerifyPassword(password, u.PasswordHash)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", u.ID).Warn("stored password hash is unreadable")
		return "", ErrInvalidCredentials
	}
	if !ok {
		return "", ErrInvalidCredentials
	}
	return s.tokens.Issue(u.Email)
}

// Authenticate resolves a bearer token to the account email.
func (s *AccountService) Authenticate(token string) (string, error) {
	email, err := s.tokens.Verify(token)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	return email, nil
}

func (s *AccountService) sendWelcome(ctx context.Context, email string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), welcomeTimeout)
	defer cancel()

	log := s.logger.WithField("recipient", email)
	raw, err := s.preparer.Prepare(ctx, email, "", "")
	if err != nil {
		log.WithError(err).Warn("prepare welcome email")
		return
	}
	if err := s.provider.SendRaw(ctx, email, raw); err != nil {
		log.WithError(err).Warn("send welcome email")
	}
}
