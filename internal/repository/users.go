package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/fmuoria/cv-grader/internal/models"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetUser returns the registered user with email (case-insensitive)
func (r *Repository) GetUser(ctx context.Context, email string) (models.User, error) {
	var users []models.User
	if err := r.load(ctx, KeyUsers, &users); err != nil {
		return models.User{}, err
	}

	email = normalizeEmail(email)
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("user %s: %w", email, ErrNotFound)
}

// CreateUser stores a new user. The email must not be registered yet.
func (r *Repository) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var users []models.User
	if err := r.load(ctx, KeyUsers, &users); err != nil {
		return models.User{}, err
	}

	user.Email = normalizeEmail(user.Email)
	for _, u := range users {
		if u.Email == user.Email {
			return models.User{}, fmt.Errorf("user %s: %w", user.Email, ErrAlreadyExists)
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.now().UTC()
	}

	users = append(users, user)
	if err := r.save(ctx, KeyUsers, users); err != nil {
		return models.User{}, fmt.Errorf("failed to save users: %w", err)
	}
	return user, nil
}
