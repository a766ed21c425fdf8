// Package auth provides the portal's demo accounts, registration and
// in-memory login sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fmuoria/cv-grader/internal/forms"
	"github.com/fmuoria/cv-grader/internal/models"
	"github.com/fmuoria/cv-grader/internal/repository"
)

// Demo accounts available without registration
const (
	DemoAdminEmail = "admin@cvgrader.com"
	DemoUserEmail  = "user@cvgrader.com"
	DemoPassword   = "password"
)

var (
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidSession     = errors.New("invalid or expired session")
)

// Session is a signed-in user
type Session struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Service checks credentials and tracks sessions
type Service struct {
	repo *repository.Repository
	cost int

	demo map[string]models.User

	mu       sync.RWMutex
	sessions map[string]Session
}

// NewService creates a service hashing passwords with the given bcrypt
// cost. A cost outside bcrypt's range falls back to bcrypt.DefaultCost.
func NewService(repo *repository.Repository, cost int) (*Service, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	s := &Service{
		repo:     repo,
		cost:     cost,
		demo:     make(map[string]models.User),
		sessions: make(map[string]Session),
	}

	hash, err := s.hash(DemoPassword)
	if err != nil {
		return nil, err
	}
	s.demo[DemoAdminEmail] = models.User{Email: DemoAdminEmail, Name: "Admin", PasswordHash: hash, IsAdmin: true}
	s.demo[DemoUserEmail] = models.User{Email: DemoUserEmail, Name: "Demo User", PasswordHash: hash}

	return s, nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a candidate account
func (s *Service) Register(ctx context.Context, req forms.RegisterRequest) (models.User, error) {
	if err := req.Validate(); err != nil {
		return models.User{}, err
	}
	if req.Password != req.ConfirmPassword {
		return models.User{}, ErrPasswordMismatch
	}

	email := normalizeEmail(req.Email)
	if _, ok := s.demo[email]; ok {
		return models.User{}, ErrEmailExists
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.repo.CreateUser(ctx, models.User{
		Email:        email,
		Name:         req.Name,
		PasswordHash: hash,
	})
	if errors.Is(err, repository.ErrAlreadyExists) {
		return models.User{}, ErrEmailExists
	}
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Login checks the credentials and opens a session
func (s *Service) Login(ctx context.Context, req forms.LoginRequest) (Session, error) {
	if err := req.Validate(); err != nil {
		return Session{}, err
	}

	user, err := s.lookup(ctx, req.Email)
	if err != nil {
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return Session{}, ErrInvalidCredentials
	}

	sess := Session{
		Token:     uuid.NewString(),
		User:      user,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()

	return sess, nil
}

func (s *Service) lookup(ctx context.Context, email string) (models.User, error) {
	email = normalizeEmail(email)
	if u, ok := s.demo[email]; ok {
		return u, nil
	}

	u, err := s.repo.GetUser(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	return u, err
}

// Logout ends a session; unknown tokens are ignored
func (s *Service) Logout(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Resolve returns the session for token
func (s *Service) Resolve(token string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok || token == "" {
		return Session{}, ErrInvalidSession
	}
	return sess, nil
}
