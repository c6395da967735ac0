// Package sheets wraps the Google Sheets API behind the two primitives the
// sync pipeline needs: clear a range, write rows at an anchor cell. Calls
// block; they must only run on sync workers, never the dispatcher goroutine.
package sheets

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Gateway is a thin client for one worksheet of one spreadsheet.
type Gateway struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string
	logger        *logrus.Logger
}

// NewGateway authorizes against the Sheets API with a service-account
// credentials file.
func NewGateway(ctx context.Context, credentialsFile, spreadsheetID, worksheet string, logger *logrus.Logger) (*Gateway, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	logger.Infof("Sheets gateway ready for spreadsheet %s worksheet %q", spreadsheetID, worksheet)

	return &Gateway{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
		logger:        logger,
	}, nil
}

// ClearRange wipes the given A1-notation range on the worksheet.
func (g *Gateway) ClearRange(ctx context.Context, rangeSpec string) error {
	full := fmt.Sprintf("%s!%s", g.worksheet, rangeSpec)
	_, err := g.svc.Spreadsheets.Values.
		Clear(g.spreadsheetID, full, &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear range %s: %w", full, err)
	}
	return nil
}

// WriteRange writes rows with the given anchor cell as top-left, raw values.
func (g *Gateway) WriteRange(ctx context.Context, anchorCell string, rows [][]string) error {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}

	full := fmt.Sprintf("%s!%s", g.worksheet, anchorCell)
	_, err := g.svc.Spreadsheets.Values.
		Update(g.spreadsheetID, full, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write %d rows at %s: %w", len(rows), full, err)
	}
	return nil
}
