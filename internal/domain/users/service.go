package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/Togather-Foundation/listsync/internal/domain/errs"
	"github.com/Togather-Foundation/listsync/internal/sanitize"
	"github.com/Togather-Foundation/listsync/internal/validation"
)

// BcryptCost is the cost factor for bcrypt password hashing
const BcryptCost = 12

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = BcryptCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Generate(userID int64, email string) (string, error)
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is returned by Register and Login.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Service handles user registration, login and management.
type Service struct {
	repo   Repository
	hasher Hasher
	tokens TokenIssuer
	logger zerolog.Logger
}

func NewService(repo Repository, hasher Hasher, tokens TokenIssuer, logger zerolog.Logger) *Service {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &Service{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		logger: logger.With().Str("component", "users").Logger(),
	}
}

// Register creates an account and returns a session token for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Name = sanitize.Text(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u, err := s.repo.Create(ctx, CreateParams{Name: in.Name, Email: in.Email, PasswordHash: hash})
	if err != nil {
		if errs.KindOf(err) == errs.KindConflict {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Generate(u.ID, u.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.Info().Int64("user_id", u.ID).Msg("user registered")
	return &Session{Token: token, User: *u}, nil
}

// Login verifies credentials and returns a session token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	u, err := s.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, &errs.Error{Kind: errs.KindNotFound, Entity: "User", Message: "User not found, try register!"}
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := s.hasher.Compare(u.PasswordHash, in.Password); err != nil {
		s.logger.Debug().Int64("user_id", u.ID).Msg("password mismatch")
		return nil, errs.Unauthenticated("Password does not match")
	}

	token, err := s.tokens.Generate(u.ID, u.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{Token: token, User: *u}, nil
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Delete removes a user and the lists they own. Their activity records are
// kept.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", id).Msg("user deleted")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
