package api

import (
	"net/http"
	"time"

	"github.com/fmuoria/cv-grader/internal/auth"
	"github.com/fmuoria/cv-grader/internal/forms"
	"github.com/fmuoria/cv-grader/internal/models"
)

// userView is a user without the password hash
type userView struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

func newUserView(u models.User) userView {
	return userView{Email: u.Email, Name: u.Name, IsAdmin: u.IsAdmin, CreatedAt: u.CreatedAt}
}

type loginResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req forms.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}

	user, err := s.auth.Register(r.Context(), req)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.logger.Info("user registered", "email", user.Email)
	s.respondJSON(w, http.StatusCreated, newUserView(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req forms.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}

	sess, err := s.auth.Login(r.Context(), req)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, loginResponse{Token: sess.Token, User: newUserView(sess.User)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(bearerToken(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(r)
	if !ok {
		s.respondErr(w, r, auth.ErrInvalidSession)
		return
	}
	s.respondJSON(w, http.StatusOK, newUserView(sess.User))
}
