package session

import (
	"context"
	"net/http"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/AMEND09/ID-Scanner/internal/auth"
	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/httpclient"
	"github.com/AMEND09/ID-Scanner/internal/kvstore"
	"github.com/AMEND09/ID-Scanner/internal/records"
	"github.com/AMEND09/ID-Scanner/internal/scan"
	"github.com/AMEND09/ID-Scanner/internal/scanner"
	"github.com/AMEND09/ID-Scanner/internal/sheets"
)

var driveFilesURL = regexp.MustCompile(`/drive/v3/files`)

type stubService struct {
	mu          sync.Mutex
	tabs        []sheets.Tab
	tabsErr     error
	appended    [][]string
	invalidated bool
}

func (s *stubService) ListSpreadsheets(context.Context) ([]sheets.Spreadsheet, error) {
	return []sheets.Spreadsheet{{ID: "sheet-1", Name: "Attendance"}}, nil
}

func (s *stubService) ListTabs(context.Context, string) ([]sheets.Tab, error) {
	return s.tabs, s.tabsErr
}

func (s *stubService) AppendRows(_ context.Context, _, _ string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, rows...)
	return nil
}

func (s *stubService) InvalidateCache() { s.invalidated = true }

type fixture struct {
	kv        *kvstore.MemoryStore
	transport *httpmock.MockTransport
	svc       *stubService
	manager   *Manager
}

func newFixture(t *testing.T, probeStatus int) *fixture {
	t.Helper()

	f := &fixture{
		kv:        kvstore.NewMemoryStore(),
		transport: httpmock.NewMockTransport(),
		svc:       &stubService{},
	}
	f.transport.RegisterRegexpResponder(http.MethodGet, driveFilesURL,
		httpmock.NewStringResponder(probeStatus, `{"files":[]}`))
	f.transport.RegisterResponder(http.MethodPost, auth.DefaultRevokeURL,
		httpmock.NewStringResponder(http.StatusOK, `{}`))

	settings := conf.DefaultSettings().Auth
	provider := auth.NewProvider(httpclient.New(&httpclient.Config{Base: f.transport}), &settings, "")

	f.manager = NewManager(Config{
		KV:   f.kv,
		Auth: provider,
		NewService: func(context.Context, *auth.Credential) (sheets.Service, error) {
			return f.svc, nil
		},
		Records: records.New(f.kv),
	})
	return f
}

func TestSignInStoresTokenAndOpensSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusOK)
	s, err := f.manager.SignIn(t.Context(), " ya29.token ")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "ya29.token", s.Credential().Token())

	stored, ok, err := f.kv.Get(t.Context(), kvstore.KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ya29.token", stored)

	current, ok := f.manager.Current()
	require.True(t, ok)
	assert.Same(t, s, current)
}

func TestSignInWithRejectedTokenClearsIt(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusUnauthorized)
	_, err := f.manager.SignIn(t.Context(), "ya29.bad")
	require.ErrorIs(t, err, auth.ErrTokenInvalid)

	_, ok, err := f.kv.Get(t.Context(), kvstore.KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok = f.manager.Current()
	assert.False(t, ok)
}

func TestResumeRestoresTarget(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusOK)
	ctx := t.Context()

	_, err := f.manager.Resume(ctx)
	require.ErrorIs(t, err, ErrNotSignedIn)

	require.NoError(t, f.kv.Set(ctx, kvstore.KeyAccessToken, "ya29.saved"))
	require.NoError(t, f.kv.Set(ctx, kvstore.KeySelectedSheetID, "sheet-1"))
	require.NoError(t, f.kv.Set(ctx, kvstore.KeySelectedSheetName, "Attendance"))
	require.NoError(t, f.kv.Set(ctx, kvstore.KeySelectedSheetTab, "Period 2"))

	_, err = f.manager.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, sheets.Target{SpreadsheetID: "sheet-1", SpreadsheetName: "Attendance", TabName: "Period 2"}, f.manager.Target())
}

func TestSelectSpreadsheetAutoSelectsSingleTab(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusOK)
	ctx := t.Context()
	_, err := f.manager.SignIn(ctx, "ya29.token")
	require.NoError(t, err)

	f.svc.tabs = []sheets.Tab{{Title: "Roster"}}
	target, tabs, err := f.manager.SelectSpreadsheet(ctx, "sheet-1", "Attendance")
	require.NoError(t, err)
	assert.Len(t, tabs, 1)
	assert.Equal(t, "Roster", target.TabName)

	tab, _, err := f.kv.Get(ctx, kvstore.KeySelectedSheetTab)
	require.NoError(t, err)
	assert.Equal(t, "Roster", tab)
}

func TestSelectSpreadsheetClearsTabWhenSeveral(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusOK)
	ctx := t.Context()
	_, err := f.manager.SignIn(ctx, "ya29.token")
	require.NoError(t, err)

	f.svc.tabs = []sheets.Tab{{Title: "Roster"}}
	_, _, err = f.manager.SelectSpreadsheet(ctx, "sheet-1", "Attendance")
	require.NoError(t, err)

	f.svc.tabs = []sheets.Tab{{Title: "A"}, {Title: "B"}}
	target, tabs, err := f.manager.SelectSpreadsheet(ctx, "sheet-2", "Clubs")
	require.NoError(t, err)
	assert.Len(t, tabs, 2)
	assert.Empty(t, target.TabName)

	_, ok, err := f.kv.Get(ctx, kvstore.KeySelectedSheetTab)
	require.NoError(t, err)
	assert.False(t, ok)

	target, err = f.manager.SelectTab(ctx, " B ")
	require.NoError(t, err)
	assert.Equal(t, "B", target.TabName)

	_, err = f.manager.SelectTab(ctx, "")
	require.ErrorIs(t, err, ErrEmptyTab)
}

func TestSelectSpreadsheetTabsUnavailable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusOK)
	ctx := t.Context()
	_, err := f.manager.SignIn(ctx, "ya29.token")
	require.NoError(t, err)

	f.svc.tabsErr = errors.NewStd("forbidden")
	target, _, err := f.manager.SelectSpreadsheet(ctx, "sheet-1", "Attendance")
	require.ErrorIs(t, err, ErrTabsUnavailable)
	assert.Equal(t, "sheet-1", target.SpreadsheetID, "the spreadsheet stays selected")

	target, err = f.manager.SelectTab(ctx, "Manual")
	require.NoError(t, err)
	assert.Equal(t, "Manual", target.TabName)
}

func TestOperationsRequireSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusOK)
	ctx := t.Context()

	_, err := f.manager.ListSpreadsheets(ctx)
	require.ErrorIs(t, err, ErrNotSignedIn)
	_, _, err = f.manager.SelectSpreadsheet(ctx, "sheet-1", "x")
	require.ErrorIs(t, err, ErrNotSignedIn)
	_, err = f.manager.StartScanner(ctx)
	require.ErrorIs(t, err, ErrNotSignedIn)
	_, err = f.manager.Resync(ctx, "")
	require.ErrorIs(t, err, ErrNotSignedIn)
	require.ErrorIs(t, f.manager.SignOut(ctx), ErrNotSignedIn)
}

func TestScannerLifecycleAndSignOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, http.StatusOK)
	ctx := t.Context()
	_, err := f.manager.SignIn(ctx, "ya29.token")
	require.NoError(t, err)

	_, err = f.manager.StartScanner(ctx)
	require.ErrorIs(t, err, sheets.ErrNoTargetSelected)

	_, _, err = f.manager.SelectSpreadsheet(ctx, "sheet-1", "Attendance")
	require.NoError(t, err)

	pipeline, err := f.manager.StartScanner(ctx)
	require.NoError(t, err)
	assert.True(t, pipeline.Running())
	assert.Equal(t, sheets.DefaultTab, f.manager.Target().TabName, "scanning always has a tab")

	require.NoError(t, pipeline.SubmitManual("123456789"))

	require.NoError(t, f.manager.SignOut(ctx))
	assert.False(t, pipeline.Running())
	assert.True(t, f.svc.invalidated)
	assert.Equal(t, sheets.Target{}, f.manager.Target())
	assert.Equal(t, 2, f.transport.GetTotalCallCount(), "probe and revoke")

	f.svc.mu.Lock()
	assert.Len(t, f.svc.appended, 1, "in-flight writes finish before sign-out completes")
	f.svc.mu.Unlock()

	for _, key := range []string{kvstore.KeyAccessToken, kvstore.KeySelectedSheetID, kvstore.KeySelectedSheetName, kvstore.KeySelectedSheetTab} {
		_, ok, err := f.kv.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
}

func TestResyncThroughSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusOK)
	ctx := t.Context()
	_, err := f.manager.SignIn(ctx, "ya29.token")
	require.NoError(t, err)
	_, _, err = f.manager.SelectSpreadsheet(ctx, "sheet-1", "Attendance")
	require.NoError(t, err)

	_, err = f.manager.Resync(ctx, "")
	require.ErrorIs(t, err, sheets.ErrEmptyBatch)

	w, err := f.manager.Writer()
	require.NoError(t, err)
	_, err = w.AppendSingle(ctx, scannerlessPayload(), time.Now())
	require.NoError(t, err)

	n, err := f.manager.Resync(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCustomPipelineFactory(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, http.StatusOK)
	var built int
	f.manager.newPipeline = func(w scanner.Writer) *scanner.Pipeline {
		built++
		return scanner.New(scanner.Config{DedupWindow: time.Second}, w)
	}

	ctx := t.Context()
	_, err := f.manager.SignIn(ctx, "ya29.token")
	require.NoError(t, err)
	_, err = f.manager.SelectTab(ctx, "x")
	require.ErrorIs(t, err, sheets.ErrNoTargetSelected)
	_, _, err = f.manager.SelectSpreadsheet(ctx, "sheet-1", "Attendance")
	require.NoError(t, err)

	_, err = f.manager.StartScanner(ctx)
	require.NoError(t, err)
	f.manager.StopScanner()
	_, err = f.manager.StartScanner(ctx)
	require.NoError(t, err)
	f.manager.StopScanner()

	assert.Equal(t, 1, built, "the pipeline is reused within a session")
}

func scannerlessPayload() scan.Payload {
	return scan.Numeric{ID: "123456789"}
}
