package sheets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/logger"
)

const (
	spreadsheetMimeQuery = "mimeType='application/vnd.google-apps.spreadsheet' and trashed=false"
	spreadsheetsCacheKey = "spreadsheets"
	tabsCacheKeyPrefix   = "tabs:"
)

// GoogleService lists and appends through the Google Drive and Sheets APIs.
type GoogleService struct {
	drive    *drive.Service
	sheets   *gsheets.Service
	cache    *cache.Cache
	pageSize int64
	timeout  time.Duration
}

var _ Service = (*GoogleService)(nil)

// NewGoogleService builds a service on top of an authorized HTTP client.
func NewGoogleService(ctx context.Context, httpClient *http.Client, settings *conf.SheetsSettings) (*GoogleService, error) {
	if httpClient == nil {
		return nil, errors.Newf("sheets: http client is required").
			Component("sheets").
			Category(errors.CategoryValidation).
			Build()
	}
	if settings == nil {
		settings = &conf.DefaultSettings().Sheets
	}

	driveOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	sheetsOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if settings.Endpoint != "" {
		driveOpts = append(driveOpts, option.WithEndpoint(settings.Endpoint+"/drive/v3/"))
		sheetsOpts = append(sheetsOpts, option.WithEndpoint(settings.Endpoint+"/"))
	}

	driveSvc, err := drive.NewService(ctx, driveOpts...)
	if err != nil {
		return nil, errors.New(err).
			Component("sheets").
			Category(errors.CategoryIntegration).
			Context("operation", "drive_client").
			Build()
	}
	sheetsSvc, err := gsheets.NewService(ctx, sheetsOpts...)
	if err != nil {
		return nil, errors.New(err).
			Component("sheets").
			Category(errors.CategoryIntegration).
			Context("operation", "sheets_client").
			Build()
	}

	ttl := settings.ListCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	pageSize := settings.ListPageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	return &GoogleService{
		drive:    driveSvc,
		sheets:   sheetsSvc,
		cache:    cache.New(ttl, 2*ttl),
		pageSize: pageSize,
		timeout:  settings.RequestTimeout,
	}, nil
}

// ListSpreadsheets returns the most recently modified spreadsheets visible to the user.
func (g *GoogleService) ListSpreadsheets(ctx context.Context) ([]Spreadsheet, error) {
	if cached, ok := g.cache.Get(spreadsheetsCacheKey); ok {
		return cached.([]Spreadsheet), nil
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := g.drive.Files.List().
		PageSize(g.pageSize).
		Fields("files(id, name)").
		Q(spreadsheetMimeQuery).
		OrderBy("modifiedTime desc").
		Context(ctx).
		Do()
	if err != nil {
		return nil, remoteError(err, "list_spreadsheets", "", "", time.Since(start))
	}

	out := make([]Spreadsheet, 0, len(resp.Files))
	for _, f := range resp.Files {
		out = append(out, Spreadsheet{ID: f.Id, Name: f.Name})
	}
	g.cache.SetDefault(spreadsheetsCacheKey, out)
	return out, nil
}

// ListTabs returns the tab titles of one spreadsheet in display order.
func (g *GoogleService) ListTabs(ctx context.Context, spreadsheetID string) ([]Tab, error) {
	key := tabsCacheKeyPrefix + spreadsheetID
	if cached, ok := g.cache.Get(key); ok {
		return cached.([]Tab), nil
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := g.sheets.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return nil, remoteError(err, "list_tabs", spreadsheetID, "", time.Since(start))
	}

	out := make([]Tab, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties == nil {
			continue
		}
		out = append(out, Tab{Title: s.Properties.Title})
	}
	g.cache.SetDefault(key, out)
	return out, nil
}

// AppendRows appends rows with USER_ENTERED semantics, inserting new rows.
func (g *GoogleService) AppendRows(ctx context.Context, spreadsheetID, tabRange string, rows [][]string) error {
	values := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, c := range row {
			cells[j] = c
		}
		values[i] = cells
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	_, err := g.sheets.Spreadsheets.Values.Append(spreadsheetID, tabRange, &gsheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return remoteError(err, "append_rows", spreadsheetID, tabRange, time.Since(start))
	}

	GetLogger().Debug("rows appended",
		logger.Int("rows", len(rows)),
		logger.String("range", tabRange),
		logger.Duration("duration", time.Since(start)))
	return nil
}

// InvalidateCache drops cached listings, used on sign-out and explicit refresh.
func (g *GoogleService) InvalidateCache() {
	g.cache.Flush()
}

func (g *GoogleService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

// IsUnauthorized reports whether err carries an HTTP 401 from the remote service.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized
}

func remoteError(err error, operation, spreadsheetID, tabRange string, elapsed time.Duration) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		return errors.New(fmt.Errorf("%w: %w", ErrUnauthorized, err)).
			Component("sheets").
			Category(errors.CategoryAuth).
			Context("operation", operation).
			Context("status", gerr.Code).
			Build()
	}

	category := errors.CategorySheetsRemote
	if errors.Is(err, context.DeadlineExceeded) {
		category = errors.CategoryTimeout
	} else if errors.Is(err, context.Canceled) {
		category = errors.CategoryCancellation
	}

	b := errors.New(err).
		Component("sheets").
		Category(category).
		Context("operation", operation).
		Timing(operation, elapsed)
	if spreadsheetID != "" {
		b = b.SheetContext(spreadsheetID, tabRange)
	}
	if gerr != nil {
		b = b.Context("status", gerr.Code)
	}
	return b.Build()
}
