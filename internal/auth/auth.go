// Package auth implements manager accounts: bcrypt password storage, HS256
// bearer tokens, and the middleware that gates destructive operations.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"badgetrack/internal/models"
	"badgetrack/internal/store"
)

var (
	// ErrManagerLimit means the maximum number of manager accounts exists.
	ErrManagerLimit = errors.New("maximum number of managers reached")
	// ErrUsernameTaken means the username is already registered.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidCredentials covers unknown username and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactive means the account exists but has not been activated.
	ErrInactive = errors.New("account is not active")
)

// ManagerStore is the slice of the store the auth service needs.
type ManagerStore interface {
	CountManagers(ctx context.Context) (int, error)
	GetManagerByUsername(ctx context.Context, username string) (models.Manager, error)
	CreateManager(ctx context.Context, username, passwordHash string) error
}

// Claims carried in issued tokens.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service issues and verifies manager credentials.
type Service struct {
	store       ManagerStore
	secret      []byte
	ttl         time.Duration
	maxManagers int
	logger      *logrus.Logger
}

func NewService(managers ManagerStore, secret string, ttl time.Duration, maxManagers int, logger *logrus.Logger) *Service {
	return &Service{
		store:       managers,
		secret:      []byte(secret),
		ttl:         ttl,
		maxManagers: maxManagers,
		logger:      logger,
	}
}

// Register creates a new manager account, inactive until approved out of
// band.
func (s *Service) Register(ctx context.Context, username, password string) error {
	count, err := s.store.CountManagers(ctx)
	if err != nil {
		return fmt.Errorf("failed to count managers: %w", err)
	}
	if count >= s.maxManagers {
		return ErrManagerLimit
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.store.CreateManager(ctx, username, hash); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to create manager: %w", err)
	}

	s.logger.Infof("Manager %q registered (inactive)", username)
	return nil
}

// Login verifies the credentials and returns a bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	manager, err := s.store.GetManagerByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up manager: %w", err)
	}

	if !VerifyPassword(password, manager.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	if !manager.Active {
		return "", ErrInactive
	}

	return s.CreateToken(manager.ID, manager.Username)
}

// CreateToken issues an HS256 token for the manager.
func (s *Service) CreateToken(managerID int64, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", managerID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token string and returns its claims.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Middleware rejects requests without a valid manager bearer token.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			unauthorized(w, "authorization header missing")
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "bearer") {
			unauthorized(w, "invalid authorization header format")
			return
		}

		if _, err := s.ParseToken(token); err != nil {
			unauthorized(w, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// HashPassword returns the bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
