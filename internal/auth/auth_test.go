package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fmuoria/cv-grader/internal/forms"
	"github.com/fmuoria/cv-grader/internal/repository"
	"github.com/fmuoria/cv-grader/internal/storage"
)

func newService(t *testing.T) (*Service, *repository.Repository) {
	t.Helper()
	repo := repository.New(storage.NewMemoryStore())
	s, err := NewService(repo, bcrypt.MinCost)
	require.NoError(t, err)
	return s, repo
}

func TestLogin_DemoAccounts(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	tests := []struct {
		email   string
		isAdmin bool
	}{
		{DemoAdminEmail, true},
		{"  USER@cvgrader.com ", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			sess, err := s.Login(ctx, forms.LoginRequest{Email: tt.email, Password: DemoPassword})
			require.NoError(t, err)
			assert.NotEmpty(t, sess.Token)
			assert.Equal(t, tt.isAdmin, sess.User.IsAdmin)

			got, err := s.Resolve(sess.Token)
			require.NoError(t, err)
			assert.Equal(t, sess.User.Email, got.User.Email)
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	_, err := s.Login(ctx, forms.LoginRequest{Email: DemoAdminEmail, Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login(ctx, forms.LoginRequest{Email: "nobody@example.com", Password: "password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login(ctx, forms.LoginRequest{Email: "not-an-email", Password: "password"})
	var verr *forms.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	s, repo := newService(t)

	user, err := s.Register(ctx, forms.RegisterRequest{
		Name:            "Jane",
		Email:           "Jane@Example.com",
		Password:        "s3cret",
		ConfirmPassword: "s3cret",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.False(t, user.IsAdmin)
	assert.NotEqual(t, "s3cret", user.PasswordHash)

	stored, err := repo.GetUser(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.PasswordHash, stored.PasswordHash)

	sess, err := s.Login(ctx, forms.LoginRequest{Email: "jane@example.com", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "Jane", sess.User.Name)
}

func TestRegister_Errors(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	_, err := s.Register(ctx, forms.RegisterRequest{Name: "Jane", Email: "jane@example.com", Password: "a", ConfirmPassword: "b"})
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	_, err = s.Register(ctx, forms.RegisterRequest{Name: "Admin", Email: DemoAdminEmail, Password: "a", ConfirmPassword: "a"})
	assert.ErrorIs(t, err, ErrEmailExists)

	req := forms.RegisterRequest{Name: "Jane", Email: "jane@example.com", Password: "a", ConfirmPassword: "a"}
	_, err = s.Register(ctx, req)
	require.NoError(t, err)
	_, err = s.Register(ctx, req)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestLogoutAndResolve(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	_, err := s.Resolve("")
	assert.ErrorIs(t, err, ErrInvalidSession)

	sess, err := s.Login(ctx, forms.LoginRequest{Email: DemoUserEmail, Password: DemoPassword})
	require.NoError(t, err)

	s.Logout(sess.Token)
	s.Logout("unknown")

	_, err = s.Resolve(sess.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}
