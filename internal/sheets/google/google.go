package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"despesas/internal/core"
	ports "despesas/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is the tab schedules are written to.
const DefaultSheetName = "Cronograma"

// Ensure interface conformance
var _ ports.ScheduleExporter = (*Client)(nil)

// Options configure a Sheets client. One of CredentialsJSON or
// CredentialsFile is required.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Client writes schedule rows to one tab of a spreadsheet. Column A holds
// the expense id and is used to find the rows to replace.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// mu serializes read-modify-write cycles on the tab.
	mu      sync.Mutex
	sheetID *int64
}

// NewFromOptions creates a client authenticated with a service account.
func NewFromOptions(ctx context.Context, opts Options) (*Client, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, id, opts.SheetName), nil
}

// New wraps an existing service.
func New(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(opts.CredentialsJSON)
	case strings.TrimSpace(opts.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", opts.CredentialsFile)
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ExportSchedule removes the rows already exported for e and appends its
// current schedule.
func (c *Client) ExportSchedule(ctx context.Context, e core.Expense) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if e.ID <= 0 {
		return fmt.Errorf("export schedule: invalid expense id %d", e.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return err
	}
	if err := c.deleteRuns(ctx, matchingRuns(ids, e.ID)); err != nil {
		return err
	}

	rows := ports.RowsFor(e)
	values := make([][]any, 0, len(rows)+1)
	if len(ids) == 0 {
		values = append(values, ports.Header)
	}
	for _, r := range rows {
		values = append(values, r.Values())
	}

	rng := fmt.Sprintf("%s!A1", c.sheetName)
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append schedule rows to %s: %w", c.sheetName, err)
	}

	slog.InfoContext(ctx, "Exported schedule to Google Sheets",
		"expense_id", e.ID,
		"version", e.Version,
		"rows", len(rows))
	return nil
}

// DeleteSchedule removes every row exported for expenseID.
func (c *Client) DeleteSchedule(ctx context.Context, expenseID int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return err
	}
	runs := matchingRuns(ids, expenseID)
	if err := c.deleteRuns(ctx, runs); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Deleted schedule from Google Sheets",
		"expense_id", expenseID,
		"rows", rowsIn(runs))
	return nil
}

func (c *Client) readIDColumn(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return firstColumn(resp.Values), nil
}

func (c *Client) deleteRuns(ctx context.Context, runs []rowRun) error {
	if len(runs) == 0 {
		return nil
	}
	sheetID, err := c.resolveSheetID(ctx)
	if err != nil {
		return err
	}

	// Bottom-up so earlier deletions do not shift later ranges.
	reqs := make([]*gsheet.Request, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		reqs = append(reqs, &gsheet.Request{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(runs[i].start),
					EndIndex:        int64(runs[i].end),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		})
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete rows from %s: %w", c.sheetName, err)
	}
	return nil
}

func (c *Client) resolveSheetID(ctx context.Context) (int64, error) {
	if c.sheetID != nil {
		return *c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			id := sh.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName)
}
