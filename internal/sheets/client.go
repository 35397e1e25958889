// Package sheets reads spreadsheet data through the Google Sheets API
// using a service account.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

var (
	// ErrPermissionDenied is returned when the spreadsheet has not been
	// shared with the service account.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrWorksheetNotFound is returned when a named worksheet does not
	// resolve.
	ErrWorksheetNotFound = errors.New("worksheet not found")
)

// Config holds connection settings for the Sheets client.
type Config struct {
	CredentialsJSON []byte
	RetryAttempts   int
	RetryBaseDelay  time.Duration
}

// Client wraps the Sheets API with retry and error mapping.
type Client struct {
	svc    *sheetsapi.Service
	email  string
	config Config
	logger *slog.Logger
}

// NewClient authenticates with the service account credentials and
// returns a read-only Sheets client.
func NewClient(ctx context.Context, config Config, logger *slog.Logger) (*Client, error) {
	if len(config.CredentialsJSON) == 0 {
		return nil, errors.New("missing service account credentials")
	}

	jwt, err := google.JWTConfigFromJSON(config.CredentialsJSON, sheetsapi.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}

	svc, err := sheetsapi.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = time.Second
	}

	logger.Info("Authenticated with Google Sheets", slog.String("service_account", jwt.Email))

	return &Client{
		svc:    svc,
		email:  jwt.Email,
		config: config,
		logger: logger,
	}, nil
}

// ServiceAccountEmail returns the identity spreadsheets must be shared
// with.
func (c *Client) ServiceAccountEmail() string {
	return c.email
}

// Fetch downloads all values of one worksheet as a string grid. The
// first worksheet is used when worksheet is empty. Rate limits and
// transient unavailability are retried with exponential backoff;
// permission errors fail immediately and name the service account that
// needs access.
func (c *Client) Fetch(ctx context.Context, ref, worksheet string) ([][]string, error) {
	id, err := ExtractSpreadsheetID(ref)
	if err != nil {
		return nil, err
	}

	delay := c.config.RetryBaseDelay
	var lastErr error

	for attempt := 1; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 1 {
			c.logger.Warn("Retrying sheet fetch",
				slog.String("spreadsheet_id", id),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		grid, err := c.fetchOnce(ctx, id, worksheet)
		if err == nil {
			c.logger.Info("Fetched spreadsheet values",
				slog.String("spreadsheet_id", id),
				slog.Int("rows", len(grid)),
			)
			return grid, nil
		}

		lastErr = err
		if !retryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("fetch spreadsheet %s: %w", id, lastErr)
}

// Worksheets lists the worksheet titles of a spreadsheet in sheet
// order.
func (c *Client) Worksheets(ctx context.Context, ref string) ([]string, error) {
	id, err := ExtractSpreadsheetID(ref)
	if err != nil {
		return nil, err
	}

	resp, err := c.svc.Spreadsheets.Get(id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, c.wrapAPIError(err, "")
	}

	titles := make([]string, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}
	return titles, nil
}

func (c *Client) fetchOnce(ctx context.Context, id, worksheet string) ([][]string, error) {
	title := worksheet
	if title == "" {
		titles, err := c.Worksheets(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(titles) == 0 {
			return nil, fmt.Errorf("%w: spreadsheet has no worksheets", ErrWorksheetNotFound)
		}
		title = titles[0]
	}

	resp, err := c.svc.Spreadsheets.Values.Get(id, quoteTitle(title)).Context(ctx).Do()
	if err != nil {
		return nil, c.wrapAPIError(err, worksheet)
	}
	return toGrid(resp.Values), nil
}

// wrapAPIError maps Sheets API failures onto package errors. 403s name
// the service account email so callers can surface the sharing fix.
func (c *Client) wrapAPIError(err error, worksheet string) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch {
	case gerr.Code == 403 || strings.Contains(gerr.Message, "PERMISSION_DENIED"):
		return fmt.Errorf("%w: share the sheet with %s", ErrPermissionDenied, c.email)
	case gerr.Code == 400 && worksheet != "":
		return fmt.Errorf("%w: %s", ErrWorksheetNotFound, worksheet)
	default:
		return err
	}
}

func retryable(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == 429 || gerr.Code == 503
}

// quoteTitle wraps a worksheet title in single quotes so titles with
// spaces form a valid A1 range.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func toGrid(values [][]interface{}) [][]string {
	grid := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			switch cell := v.(type) {
			case string:
				cells[j] = cell
			case nil:
			default:
				cells[j] = fmt.Sprint(cell)
			}
		}
		grid[i] = cells
	}
	return grid
}
