// Package service contains the business rules of the game backend.
//
// Handlers parse HTTP and call a service; services validate, enforce rules
// and call a repository interface. Services never see net/http, and never
// import a concrete store.
//
//	Handler (HTTP)  →  Service (rules)  →  Repository (storage)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/candle-clicker/internal/apperror"
	"github.com/sakif/candle-clicker/internal/auth"
	"github.com/sakif/candle-clicker/internal/metrics"
	"github.com/sakif/candle-clicker/internal/model"
	"github.com/sakif/candle-clicker/internal/repository"
)

// MaxPictureLength is the largest profile picture accepted, in characters of
// its base64 text.
const MaxPictureLength = 32768

// invalidCredentials covers both an unknown username and a wrong password.
const invalidCredentials = "invalid username or password"

// Credentials is the input of Register and Login.
type Credentials struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required"`
}

// PictureInput is the body of a profile picture upload.
type PictureInput struct {
	ImageBase64 string `json:"imageBase64" validate:"required,max=32768"`
}

type searchInput struct {
	Username string `json:"username" validate:"required"`
}

// AccountService handles registration, login, search and profiles.
type AccountService struct {
	repo      repository.AccountRepository
	passwords *auth.PasswordService
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(
	repo repository.AccountRepository,
	passwords *auth.PasswordService,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		repo:      repo,
		passwords: passwords,
		metrics:   m,
		logger:    logger,
	}
}

// Register creates an account and returns its id.
//
// The username is trimmed and must then be at least 3 characters. Uniqueness
// is exact: "alice" and "Alice" can both register. Only the bcrypt hash of
// the password is stored.
func (s *AccountService) Register(ctx context.Context, username, password string) (string, error) {
	in := Credentials{Username: strings.TrimSpace(username), Password: password}
	if err := validateStruct(in); err != nil {
		return "", err
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return "", apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return "", fmt.Errorf("registering %q: %w", in.Username, err)
	}

	account := &model.Account{Username: in.Username, PasswordHash: hash}
	if err := s.repo.Create(ctx, account); err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			s.logger.Error("failed to create account",
				slog.String("username", in.Username),
				slog.String("error", err.Error()),
			)
		}
		return "", err
	}

	s.metrics.AccountRegistered()
	s.logger.Info("account registered",
		slog.String("id", account.ID),
		slog.String("username", account.Username),
	)

	return account.ID, nil
}

// Login checks the credentials and returns the account id issued at
// registration. Any mismatch is apperror.ErrUnauthorized.
func (s *AccountService) Login(ctx context.Context, username, password string) (string, error) {
	in := Credentials{Username: strings.TrimSpace(username), Password: password}
	if in.Username == "" {
		return "", apperror.ValidationFailed("username", "username is required")
	}
	if in.Password == "" {
		return "", apperror.ValidationFailed("password", "password is required")
	}

	account, err := s.repo.GetByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.metrics.LoginAttempt(false)
			return "", apperror.Unauthorized(invalidCredentials)
		}
		return "", fmt.Errorf("logging in %q: %w", in.Username, err)
	}

	if err := s.passwords.Verify(account.PasswordHash, in.Password); err != nil {
		if !errors.Is(err, auth.ErrMismatch) {
			return "", fmt.Errorf("logging in %q: %w", in.Username, err)
		}
		s.metrics.LoginAttempt(false)
		s.logger.Info("login rejected", slog.String("username", in.Username))
		return "", apperror.Unauthorized(invalidCredentials)
	}

	s.metrics.LoginAttempt(true)
	return account.ID, nil
}

// Search returns up to repository.DefaultSearchLimit accounts whose username
// starts with prefix, ignoring case.
func (s *AccountService) Search(ctx context.Context, prefix string) ([]model.AccountSummary, error) {
	if err := validateStruct(searchInput{Username: prefix}); err != nil {
		return nil, err
	}

	users, err := s.repo.SearchByUsernamePrefix(ctx, prefix, repository.DefaultSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching accounts: %w", err)
	}
	return users, nil
}

// Profile returns the public view of an account.
// Returns apperror.ErrNotFound if it does not exist.
func (s *AccountService) Profile(ctx context.Context, accountID string) (*model.Profile, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, apperror.ValidationFailed("userId", "user id is required")
	}
	return s.repo.GetProfile(ctx, accountID)
}

// SetProfilePicture stores image as the account's picture. An id with no
// account behind it is accepted and changes nothing.
func (s *AccountService) SetProfilePicture(ctx context.Context, accountID string, in PictureInput) error {
	if err := validateStruct(in); err != nil {
		return err
	}

	if err := s.repo.SetProfilePicture(ctx, accountID, in.ImageBase64); err != nil {
		return fmt.Errorf("updating profile picture: %w", err)
	}

	s.logger.Info("profile picture updated",
		slog.String("id", accountID),
		slog.Int("length", len(in.ImageBase64)),
	)
	return nil
}
