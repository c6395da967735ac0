// Package httpapi exposes the CRUD surface over HTTP: users, logs, barcode
// allocation, manager auth, and the websocket subscription endpoint. Handlers
// validate and translate; all state lives in the store.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"badgetrack/internal/auth"
	"badgetrack/internal/models"
	"badgetrack/internal/store"
)

// Store is the persistence surface the handlers need.
type Store interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, barcode string) (models.User, error)
	CreateUser(ctx context.Context, u models.User) error
	DeleteUser(ctx context.Context, barcode string) error

	ListLogs(ctx context.Context, f store.LogFilter) ([]models.LogEntry, error)
	GetLog(ctx context.Context, id int64) (models.LogEntry, error)
	CreateLog(ctx context.Context, barcode, direction string, eventTime *time.Time) (int64, error)
	DeleteLog(ctx context.Context, id int64) error

	FreeBarcode(ctx context.Context) (string, error)
}

// Server wires the handlers into a router.
type Server struct {
	store       Store
	auth        *auth.Service
	wsHandler   http.Handler
	allowOrigin string
	logger      *logrus.Logger
}

func NewServer(st Store, authSvc *auth.Service, wsHandler http.Handler, allowOrigin string, logger *logrus.Logger) *Server {
	return &Server{
		store:       st,
		auth:        authSvc,
		wsHandler:   wsHandler,
		allowOrigin: allowOrigin,
		logger:      logger,
	}
}

// Router builds the route table. Destructive routes sit behind the manager
// auth middleware.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.cors)

	// Fixed paths before the {barcode} wildcard.
	r.HandleFunc("/users/newean", s.handleNewEAN).Methods(http.MethodGet)

	r.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	r.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)
	r.HandleFunc("/users/{barcode}", s.handleGetUser).Methods(http.MethodGet)
	r.Handle("/users/{barcode}",
		s.auth.Middleware(http.HandlerFunc(s.handleDeleteUser))).Methods(http.MethodDelete)

	r.HandleFunc("/logs", s.handleListLogs).Methods(http.MethodGet)
	r.HandleFunc("/logs", s.handleCreateLog).Methods(http.MethodPost)
	r.HandleFunc("/logs/{id:[0-9]+}", s.handleGetLog).Methods(http.MethodGet)
	r.Handle("/logs/{id:[0-9]+}",
		s.auth.Middleware(http.HandlerFunc(s.handleDeleteLog))).Methods(http.MethodDelete)

	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	if s.wsHandler != nil {
		r.Handle("/ws/logs", s.wsHandler).Methods(http.MethodGet)
	}

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	return r
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
