package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/fmuoria/cv-grader/internal/auth"
)

type sessionKey struct{}

func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// session returns the caller's session, if the request carries a valid token
func (s *Server) session(r *http.Request) (auth.Session, bool) {
	if sess, ok := r.Context().Value(sessionKey{}).(auth.Session); ok {
		return sess, true
	}
	sess, err := s.auth.Resolve(bearerToken(r))
	return sess, err == nil
}

// requireAuth rejects requests without a valid session
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.auth.Resolve(bearerToken(r))
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	}
}

// requireAdmin rejects requests not made by an admin
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := s.session(r)
		if !sess.User.IsAdmin {
			s.respondErr(w, r, errForbidden)
			return
		}
		next(w, r)
	})
}
