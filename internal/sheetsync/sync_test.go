package sheetsync

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badgetrack/internal/models"
)

type fakeSource struct {
	mu   sync.Mutex
	rows []models.DerivedRow
	err  error
}

func (s *fakeSource) LastInbound(ctx context.Context) ([]models.DerivedRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.DerivedRow(nil), s.rows...), nil
}

func (s *fakeSource) set(rows []models.DerivedRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
}

// sheetOp records one gateway call for assertion.
type sheetOp struct {
	kind   string // "clear" or "write"
	target string
	rows   [][]string
}

type fakeGateway struct {
	mu       sync.Mutex
	ops      []sheetOp
	clearErr error
	writeErr error
}

func (g *fakeGateway) ClearRange(ctx context.Context, rangeSpec string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.clearErr != nil {
		return g.clearErr
	}
	g.ops = append(g.ops, sheetOp{kind: "clear", target: rangeSpec})
	return nil
}

func (g *fakeGateway) WriteRange(ctx context.Context, anchorCell string, rows [][]string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.writeErr != nil {
		return g.writeErr
	}
	copied := make([][]string, len(rows))
	for i, row := range rows {
		copied[i] = append([]string(nil), row...)
	}
	g.ops = append(g.ops, sheetOp{kind: "write", target: anchorCell, rows: copied})
	return nil
}

func (g *fakeGateway) snapshot() []sheetOp {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sheetOp(nil), g.ops...)
}

// lastWrite returns the rows of the most recent write op, or nil.
func (g *fakeGateway) lastWrite() [][]string {
	ops := g.snapshot()
	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i].kind == "write" {
			return ops[i].rows
		}
	}
	return nil
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func rome(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)
	return loc
}

func newSyncer(t *testing.T, source Source, gateway Gateway) *Syncer {
	t.Helper()
	return New(source, gateway, "A2:D", "A2", rome(t), newLogger())
}

func TestRunOnceReplacesSheet(t *testing.T) {
	source := &fakeSource{rows: []models.DerivedRow{
		{
			Barcode:   "4006381333931",
			FirstName: "Mario",
			LastName:  "Rossi",
			EventTime: time.Date(2024, 6, 10, 7, 30, 0, 0, time.UTC),
		},
	}}
	gateway := &fakeGateway{}

	require.NoError(t, newSyncer(t, source, gateway).RunOnce(context.Background()))

	ops := gateway.snapshot()
	require.Len(t, ops, 2)
	assert.Equal(t, "clear", ops[0].kind)
	assert.Equal(t, "A2:D", ops[0].target)
	assert.Equal(t, "write", ops[1].kind)
	assert.Equal(t, "A2", ops[1].target)
	// June is CEST, UTC+2.
	assert.Equal(t, [][]string{{"4006381333931", "Mario", "Rossi", "09:30 10/06/2024"}}, ops[1].rows)
}

func TestRunOnceZeroRowsClearsWithoutWriting(t *testing.T) {
	source := &fakeSource{}
	gateway := &fakeGateway{}

	require.NoError(t, newSyncer(t, source, gateway).RunOnce(context.Background()))

	ops := gateway.snapshot()
	require.Len(t, ops, 1)
	assert.Equal(t, "clear", ops[0].kind)
}

func TestRunOnceIdempotent(t *testing.T) {
	source := &fakeSource{rows: []models.DerivedRow{
		{Barcode: "9788838668821", FirstName: "Anna", LastName: "Bianchi",
			EventTime: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)},
	}}
	gateway := &fakeGateway{}
	syncer := newSyncer(t, source, gateway)

	require.NoError(t, syncer.RunOnce(context.Background()))
	require.NoError(t, syncer.RunOnce(context.Background()))

	ops := gateway.snapshot()
	require.Len(t, ops, 4)
	assert.Equal(t, ops[0], ops[2])
	assert.Equal(t, ops[1], ops[3])
}

func TestRunOnceQueryFailureSkipsSheet(t *testing.T) {
	source := &fakeSource{err: errors.New("db down")}
	gateway := &fakeGateway{}

	err := newSyncer(t, source, gateway).RunOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, gateway.snapshot())
}

func TestRunOnceWriteFailureSurfaces(t *testing.T) {
	source := &fakeSource{rows: []models.DerivedRow{
		{Barcode: "4006381333931", FirstName: "Mario", LastName: "Rossi",
			EventTime: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)},
	}}
	gateway := &fakeGateway{writeErr: errors.New("quota exceeded")}

	err := newSyncer(t, source, gateway).RunOnce(context.Background())
	require.Error(t, err)
}

func TestFormatEventTimeNaiveUTCWinter(t *testing.T) {
	// Stored value 2024-01-15 10:00:00 with no zone is treated as UTC;
	// Rome is UTC+1 in January.
	got := FormatEventTime(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), rome(t))
	assert.Equal(t, "11:00 15/01/2024", got)
}

func TestFormatEventTimeZero(t *testing.T) {
	assert.Equal(t, "", FormatEventTime(time.Time{}, rome(t)))
}
