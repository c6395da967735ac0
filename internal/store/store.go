// Package store wraps the shared Postgres pool behind the queries the rest
// of the service needs. Connections are acquired per operation and released
// immediately; the change-notification listener holds its own dedicated
// connection outside this pool.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"badgetrack/internal/ean"
	"badgetrack/internal/models"
)

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate means a unique constraint was violated.
	ErrDuplicate = errors.New("already exists")
	// ErrUnknownBarcode means a log entry referenced a barcode with no user.
	ErrUnknownBarcode = errors.New("no user for barcode")
	// ErrNoFreeBarcode means barcode allocation exhausted its attempts.
	ErrNoFreeBarcode = errors.New("could not find a free barcode")
)

const uniqueViolation = "23505"

// lastInboundSQL computes the derived view: for every barcode whose most
// recent log rows include at least one CHECKIN, the latest CHECKIN joined to
// the user's identity, most recent first. CHECKOUT rows never appear in the
// result; the inner select is restricted to CHECKIN before picking the
// newest row per barcode, so a later CHECKOUT does not mask the last CHECKIN.
const lastInboundSQL = `
SELECT u.barcode, u.first_name, u.last_name, l.event_time
FROM (SELECT DISTINCT ON (barcode) barcode, event_time
      FROM log
      WHERE direction = 'CHECKIN'
      ORDER BY barcode, event_time DESC) AS l
JOIN users u ON u.barcode = l.barcode
ORDER BY l.event_time DESC`

// Store runs all SQL against the shared pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

// New connects the shared pool and verifies the database is reachable.
func New(ctx context.Context, dsn string, logger *logrus.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Infof("Connected to Postgres at %s", pool.Config().ConnConfig.Host)
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ListUsers returns all users ordered by last name, then first name.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT barcode, first_name, last_name FROM users ORDER BY last_name, first_name")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.Barcode, &u.FirstName, &u.LastName); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// GetUser returns the user with the given barcode.
func (s *Store) GetUser(ctx context.Context, barcode string) (models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		"SELECT barcode, first_name, last_name FROM users WHERE barcode = $1",
		barcode).Scan(&u.Barcode, &u.FirstName, &u.LastName)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// CreateUser inserts a new user. Returns ErrDuplicate on barcode collision.
func (s *Store) CreateUser(ctx context.Context, u models.User) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO users (barcode, first_name, last_name) VALUES ($1, $2, $3)",
		u.Barcode, u.FirstName, u.LastName)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// DeleteUser removes a user and all of their log rows.
func (s *Store) DeleteUser(ctx context.Context, barcode string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM log WHERE barcode = $1", barcode); err != nil {
		return fmt.Errorf("failed to delete logs: %w", err)
	}
	tag, err := tx.Exec(ctx, "DELETE FROM users WHERE barcode = $1", barcode)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// LogFilter narrows ListLogs. Zero values mean "no filter".
type LogFilter struct {
	Barcode string
	From    *time.Time
	To      *time.Time
}

// buildLogsQuery assembles the filtered log listing query with positional
// parameters.
func buildLogsQuery(f LogFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT id, barcode, event_time, direction FROM log WHERE 1=1")

	args := []any{}
	if f.Barcode != "" {
		args = append(args, f.Barcode)
		fmt.Fprintf(&sb, " AND barcode = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		fmt.Fprintf(&sb, " AND event_time >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		fmt.Fprintf(&sb, " AND event_time <= $%d", len(args))
	}
	sb.WriteString(" ORDER BY event_time DESC")
	return sb.String(), args
}

// ListLogs returns log entries matching the filter, newest first.
func (s *Store) ListLogs(ctx context.Context, f LogFilter) ([]models.LogEntry, error) {
	query, args := buildLogsQuery(f)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	logs := []models.LogEntry{}
	for rows.Next() {
		var l models.LogEntry
		if err := rows.Scan(&l.ID, &l.Barcode, &l.EventTime, &l.Direction); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating logs: %w", err)
	}
	return logs, nil
}

// GetLog returns one log entry by id.
func (s *Store) GetLog(ctx context.Context, id int64) (models.LogEntry, error) {
	var l models.LogEntry
	err := s.pool.QueryRow(ctx,
		"SELECT id, barcode, event_time, direction FROM log WHERE id = $1",
		id).Scan(&l.ID, &l.Barcode, &l.EventTime, &l.Direction)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.LogEntry{}, ErrNotFound
	}
	if err != nil {
		return models.LogEntry{}, fmt.Errorf("failed to query log: %w", err)
	}
	return l, nil
}

// CreateLog inserts a CHECKIN/CHECKOUT event and returns its id. eventTime
// nil means "now" (database default). Returns ErrUnknownBarcode if no user
// exists for the barcode.
func (s *Store) CreateLog(ctx context.Context, barcode, direction string, eventTime *time.Time) (int64, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE barcode = $1)", barcode).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return 0, ErrUnknownBarcode
	}

	var id int64
	if eventTime != nil {
		err = s.pool.QueryRow(ctx,
			"INSERT INTO log (barcode, direction, event_time) VALUES ($1, $2, $3) RETURNING id",
			barcode, direction, *eventTime).Scan(&id)
	} else {
		err = s.pool.QueryRow(ctx,
			"INSERT INTO log (barcode, direction) VALUES ($1, $2) RETURNING id",
			barcode, direction).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert log: %w", err)
	}
	return id, nil
}

// DeleteLog removes one log entry by id.
func (s *Store) DeleteLog(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM log WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LastInbound returns the derived "last known check-in per person" view.
func (s *Store) LastInbound(ctx context.Context) ([]models.DerivedRow, error) {
	rows, err := s.pool.Query(ctx, lastInboundSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query last inbound view: %w", err)
	}
	defer rows.Close()

	result := []models.DerivedRow{}
	for rows.Next() {
		var r models.DerivedRow
		if err := rows.Scan(&r.Barcode, &r.FirstName, &r.LastName, &r.EventTime); err != nil {
			return nil, fmt.Errorf("failed to scan derived row: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating derived rows: %w", err)
	}
	return result, nil
}

// FreeBarcode generates EAN-13 codes until one not present in users is
// found, giving up after ten attempts.
func (s *Store) FreeBarcode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code := ean.Generate()
		var exists bool
		err := s.pool.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM users WHERE barcode = $1)", code).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("failed to check barcode: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrNoFreeBarcode
}

// CountManagers returns the number of registered manager accounts.
func (s *Store) CountManagers(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM managers").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count managers: %w", err)
	}
	return count, nil
}

// GetManagerByUsername returns a manager account by username.
func (s *Store) GetManagerByUsername(ctx context.Context, username string) (models.Manager, error) {
	var m models.Manager
	err := s.pool.QueryRow(ctx,
		"SELECT id, username, password_hash, active FROM managers WHERE username = $1",
		username).Scan(&m.ID, &m.Username, &m.PasswordHash, &m.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Manager{}, ErrNotFound
	}
	if err != nil {
		return models.Manager{}, fmt.Errorf("failed to query manager: %w", err)
	}
	return m, nil
}

// CreateManager inserts a manager account, inactive until approved.
// Returns ErrDuplicate if the username is taken.
func (s *Store) CreateManager(ctx context.Context, username, passwordHash string) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO managers (username, password_hash, active) VALUES ($1, $2, FALSE)",
		username, passwordHash)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert manager: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
