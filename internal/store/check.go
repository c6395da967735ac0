package store

import (
	"context"
	"fmt"
	"strings"
)

// requiredTables must exist before the service can run; the schema is
// provisioned out of band.
var requiredTables = []string{"users", "log", "managers"}

// Check verifies the schema this service depends on is in place and that the
// change-notification trigger function is installed. Called once at startup
// so misconfiguration fails fast instead of surfacing as per-request errors.
func (s *Store) Check(ctx context.Context) error {
	rows, err := s.pool.Query(ctx,
		"SELECT tablename FROM pg_tables WHERE schemaname = 'public'")
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	present := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating tables: %w", err)
	}

	missing := []string{}
	for _, table := range requiredTables {
		if !present[table] {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required tables: %s", strings.Join(missing, ", "))
	}
	s.logger.Info("All required tables verified")

	var hasTrigger bool
	err = s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_trigger WHERE tgrelid = 'log'::regclass AND NOT tgisinternal)").Scan(&hasTrigger)
	if err != nil {
		return fmt.Errorf("failed to check notify trigger: %w", err)
	}
	if !hasTrigger {
		s.logger.Warn("No trigger installed on log table; change notifications will not fire")
	} else {
		s.logger.Info("Change-notification trigger verified")
	}

	return nil
}
