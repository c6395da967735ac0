package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"badgetrack/internal/models"
	"badgetrack/internal/store"
)

const maxNameLength = 255

type createUserRequest struct {
	Barcode   string `json:"barcode"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.logger.Errorf("Failed to list users: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	barcode := mux.Vars(r)["barcode"]
	if !validBarcode(barcode) {
		respondError(w, http.StatusBadRequest, "barcode must be 13 digits")
		return
	}

	user, err := s.store.GetUser(r.Context(), barcode)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Errorf("Failed to get user: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !validBarcode(req.Barcode) {
		respondError(w, http.StatusBadRequest, "barcode must be 13 digits")
		return
	}
	if req.FirstName == "" || req.LastName == "" {
		respondError(w, http.StatusBadRequest, "first_name and last_name are required")
		return
	}
	if len(req.FirstName) > maxNameLength || len(req.LastName) > maxNameLength {
		respondError(w, http.StatusBadRequest, "names must be at most 255 characters")
		return
	}

	err := s.store.CreateUser(r.Context(), models.User{
		Barcode:   req.Barcode,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if errors.Is(err, store.ErrDuplicate) {
		respondError(w, http.StatusConflict, "user with this barcode already exists")
		return
	}
	if err != nil {
		s.logger.Errorf("Failed to create user: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"message": "user created"})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	barcode := mux.Vars(r)["barcode"]

	err := s.store.DeleteUser(r.Context(), barcode)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Errorf("Failed to delete user: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func (s *Server) handleNewEAN(w http.ResponseWriter, r *http.Request) {
	code, err := s.store.FreeBarcode(r.Context())
	if errors.Is(err, store.ErrNoFreeBarcode) {
		respondError(w, http.StatusInternalServerError, "could not find a free barcode")
		return
	}
	if err != nil {
		s.logger.Errorf("Failed to allocate barcode: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to allocate barcode")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"new_ean": code})
}
