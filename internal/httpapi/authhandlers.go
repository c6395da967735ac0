package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"badgetrack/internal/auth"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	err := s.auth.Register(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrManagerLimit):
		respondError(w, http.StatusForbidden, "maximum number of managers reached")
	case errors.Is(err, auth.ErrUsernameTaken):
		respondError(w, http.StatusConflict, "username already exists")
	case err != nil:
		s.logger.Errorf("Failed to register manager: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to register")
	default:
		respondJSON(w, http.StatusCreated, map[string]string{
			"message": "manager registered, contact admin to activate the account",
		})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrInactive):
		respondError(w, http.StatusForbidden, "account is not active")
	case err != nil:
		s.logger.Errorf("Failed to log in manager: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to log in")
	default:
		respondJSON(w, http.StatusOK, map[string]string{
			"access_token": token,
			"token_type":   "bearer",
		})
	}
}
