package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

var ErrTabNotFound = errors.New("sheet tab not found")

const (
	newTabRows    = 1000
	newTabColumns = 5
)

// Spreadsheet is the subset of a spreadsheet document the report jobs use.
// Rows are 1-based, matching A1 notation.
type Spreadsheet interface {
	EnsureTab(ctx context.Context, title string, header []string) (created bool, err error)
	ReadTab(ctx context.Context, title string) ([][]string, error)
	UpdateRow(ctx context.Context, title string, row int, values []interface{}) error
	AppendRows(ctx context.Context, title string, rows [][]interface{}) error
	LeftAlign(ctx context.Context, title string, columns int) error
}

// Client talks to one spreadsheet through the Sheets v4 API.
type Client struct {
	svc           *gsheets.Service
	spreadsheetID string
	sheetIDs      map[string]int64
}

// NewClient authenticates with a service-account key file. Extra options are
// appended after the credentials, so tests can point the client elsewhere.
func NewClient(ctx context.Context, credentialsFile, spreadsheetID string, opts ...option.ClientOption) (*Client, error) {
	all := []option.ClientOption{
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	}
	all = append(all, opts...)
	return newClient(ctx, spreadsheetID, all...)
}

func newClient(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Client, error) {
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func (c *Client) loadSheetIDs(ctx context.Context) error {
	doc, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet %s: %w", c.spreadsheetID, err)
	}

	c.sheetIDs = make(map[string]int64, len(doc.Sheets))
	for _, s := range doc.Sheets {
		if s.Properties != nil {
			c.sheetIDs[s.Properties.Title] = s.Properties.SheetId
		}
	}
	return nil
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	if c.sheetIDs == nil {
		if err := c.loadSheetIDs(ctx); err != nil {
			return 0, err
		}
	}
	id, ok := c.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrTabNotFound, title)
	}
	return id, nil
}

// EnsureTab creates the tab with a header row when it does not exist.
func (c *Client) EnsureTab(ctx context.Context, title string, header []string) (bool, error) {
	if _, err := c.sheetID(ctx, title); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrTabNotFound) {
		return false, err
	}

	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{
				Properties: &gsheets.SheetProperties{
					Title: title,
					GridProperties: &gsheets.GridProperties{
						RowCount:    newTabRows,
						ColumnCount: newTabColumns,
					},
				},
			},
		}},
	}
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("add tab %s: %w", title, err)
	}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		c.sheetIDs[title] = resp.Replies[0].AddSheet.Properties.SheetId
	} else {
		c.sheetIDs = nil
	}

	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := c.AppendRows(ctx, title, [][]interface{}{row}); err != nil {
		return true, fmt.Errorf("write header to %s: %w", title, err)
	}
	return true, nil
}

// ReadTab returns every populated row of the tab as displayed strings.
func (c *Client) ReadTab(ctx context.Context, title string) ([][]string, error) {
	if _, err := c.sheetID(ctx, title); err != nil {
		return nil, err
	}

	vr, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, tabRange(title, "")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read tab %s: %w", title, err)
	}

	rows := make([][]string, len(vr.Values))
	for i, raw := range vr.Values {
		rows[i] = make([]string, len(raw))
		for j, cell := range raw {
			rows[i][j] = fmt.Sprint(cell)
		}
	}
	return rows, nil
}

func (c *Client) UpdateRow(ctx context.Context, title string, row int, values []interface{}) error {
	if row < 1 {
		return fmt.Errorf("update %s: row %d out of range", title, row)
	}
	vr := &gsheets.ValueRange{Values: [][]interface{}{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, tabRange(title, fmt.Sprintf("A%d", row)), vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s row %d: %w", title, row, err)
	}
	return nil
}

func (c *Client) AppendRows(ctx context.Context, title string, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	vr := &gsheets.ValueRange{Values: rows}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, tabRange(title, "A1"), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %d rows to %s: %w", len(rows), title, err)
	}
	return nil
}

// LeftAlign left-aligns the first columns of the tab across all rows.
func (c *Client) LeftAlign(ctx context.Context, title string, columns int) error {
	id, err := c.sheetID(ctx, title)
	if err != nil {
		return err
	}

	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			RepeatCell: &gsheets.RepeatCellRequest{
				Range: &gsheets.GridRange{
					SheetId:          id,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(columns),
				},
				Cell: &gsheets.CellData{
					UserEnteredFormat: &gsheets.CellFormat{HorizontalAlignment: "LEFT"},
				},
				Fields: "userEnteredFormat.horizontalAlignment",
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("format %s: %w", title, err)
	}
	return nil
}

// tabRange builds an A1 range, quoting the title so names like "2025-03"
// are not read as formulas.
func tabRange(title, cells string) string {
	quoted := "'" + strings.ReplaceAll(title, "'", "''") + "'"
	if cells == "" {
		return quoted
	}
	return quoted + "!" + cells
}
