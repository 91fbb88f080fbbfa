package server

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"community/internal/auth"
	"community/internal/models"
)

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(in.Username) == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		s.writeError(w, r, &models.ValidationError{Problems: []string{"username, email and password are required"}})
		return
	}
	if s.issuer == nil {
		s.writeError(w, r, auth.ErrServiceUnavailable)
		return
	}
	user, err := models.CreateUser(r.Context(), s.DB, in.Username, in.Email, in.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("user signed up", zap.String("user", user.ID))
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		s.writeError(w, r, &models.ValidationError{Problems: []string{"email and password are required"}})
		return
	}
	if s.issuer == nil {
		s.writeError(w, r, auth.ErrServiceUnavailable)
		return
	}
	user, err := models.Authenticate(r.Context(), s.DB, in.Email, in.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}
