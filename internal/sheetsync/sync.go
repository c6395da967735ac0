// Package sheetsync recomputes the "last known check-in per person" view and
// mirrors it into the external spreadsheet. Every run is a full overwrite of
// the data region; nothing is diffed or patched, so concurrent runs commute
// and the last one to finish always leaves a complete, consistent snapshot.
package sheetsync

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"badgetrack/internal/models"
)

// Source provides the derived view, most recent first.
type Source interface {
	LastInbound(ctx context.Context) ([]models.DerivedRow, error)
}

// Gateway is the external sheet: clear a range, write rows at an anchor.
type Gateway interface {
	ClearRange(ctx context.Context, rangeSpec string) error
	WriteRange(ctx context.Context, anchorCell string, rows [][]string) error
}

// Syncer performs one full query-format-replace cycle per run.
type Syncer struct {
	source     Source
	gateway    Gateway
	clearRange string
	anchorCell string
	location   *time.Location
	logger     *logrus.Logger
}

func New(source Source, gateway Gateway, clearRange, anchorCell string, location *time.Location, logger *logrus.Logger) *Syncer {
	return &Syncer{
		source:     source,
		gateway:    gateway,
		clearRange: clearRange,
		anchorCell: anchorCell,
		location:   location,
		logger:     logger,
	}
}

// RunOnce executes one sync run: query the derived view, format it, clear
// the sheet's data region and write the fresh rows. With zero rows the clear
// still happens but the write is skipped.
func (s *Syncer) RunOnce(ctx context.Context) error {
	derived, err := s.source.LastInbound(ctx)
	if err != nil {
		return fmt.Errorf("failed to query derived view: %w", err)
	}

	rows := make([][]string, len(derived))
	for i, r := range derived {
		rows[i] = s.formatRow(r)
	}

	if err := s.gateway.ClearRange(ctx, s.clearRange); err != nil {
		return fmt.Errorf("failed to clear sheet: %w", err)
	}

	if len(rows) == 0 {
		s.logger.Debug("Sync run wrote no rows (empty derived view)")
		return nil
	}

	if err := s.gateway.WriteRange(ctx, s.anchorCell, rows); err != nil {
		return fmt.Errorf("failed to write sheet: %w", err)
	}

	s.logger.Debugf("Sync run replaced sheet contents with %d rows", len(rows))
	return nil
}

func (s *Syncer) formatRow(r models.DerivedRow) []string {
	return []string{
		r.Barcode,
		r.FirstName,
		r.LastName,
		FormatEventTime(r.EventTime, s.location),
	}
}

// FormatEventTime renders a stored timestamp for the sheet as
// "HH:MM DD/MM/YYYY" in the display timezone. Zone-less database timestamps
// arrive from the driver as UTC instants, so converting the instant covers
// both timestamp and timestamptz columns.
func FormatEventTime(t time.Time, location *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(location).Format("15:04 02/01/2006")
}
