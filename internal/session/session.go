// Package session holds the signed-in user's state: the credential, the spreadsheet
// service, the selected target and the running scanner. A Session is created on sign-in and
// torn down on sign-out; nothing about it lives in package globals.
package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AMEND09/ID-Scanner/internal/auth"
	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/kvstore"
	"github.com/AMEND09/ID-Scanner/internal/logger"
	"github.com/AMEND09/ID-Scanner/internal/records"
	"github.com/AMEND09/ID-Scanner/internal/scanner"
	"github.com/AMEND09/ID-Scanner/internal/sheets"
)

var (
	ErrNotSignedIn     = errors.NewStd("not signed in")
	ErrTabsUnavailable = errors.NewStd("unable to read sheet tabs, enter the tab name manually")
	ErrEmptyTab        = errors.NewStd("tab name is required")
)

// GetLogger returns the session module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("session")
}

// ServiceFactory builds the spreadsheet service for a credential.
type ServiceFactory func(ctx context.Context, cred *auth.Credential) (sheets.Service, error)

// PipelineFactory builds a stopped scanner pipeline writing through w.
type PipelineFactory func(w scanner.Writer) *scanner.Pipeline

// Session is one signed-in user.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`

	cred    *auth.Credential
	svc     sheets.Service
	expired atomic.Bool
}

// Credential returns the session's bearer credential.
func (s *Session) Credential() *auth.Credential { return s.cred }

// Service returns the spreadsheet service bound to the credential.
func (s *Session) Service() sheets.Service { return s.svc }

// Expired reports whether a remote call rejected the token after sign-in.
func (s *Session) Expired() bool { return s.expired.Load() }

// Config wires a Manager.
type Config struct {
	KV            kvstore.Store
	Auth          *auth.Provider
	NewService    ServiceFactory
	Records       *records.Store
	NewPipeline   PipelineFactory
	Notifier      sheets.Notifier
	WriterOptions []sheets.WriterOption
	DefaultTab    string
}

// Manager creates and tears down sessions and owns the current target.
type Manager struct {
	kv          kvstore.Store
	auth        *auth.Provider
	newService  ServiceFactory
	records     *records.Store
	newPipeline PipelineFactory
	notifier    sheets.Notifier
	writerOpts  []sheets.WriterOption
	defaultTab  string
	now         func() time.Time
	log         logger.Logger

	mu       sync.RWMutex
	current  *Session
	target   sheets.Target
	writer   *sheets.Writer
	pipeline *scanner.Pipeline
}

var _ sheets.TargetProvider = (*Manager)(nil)

// NewManager returns a manager without a session.
func NewManager(cfg Config) *Manager {
	tab := cfg.DefaultTab
	if tab == "" {
		tab = sheets.DefaultTab
	}
	newPipeline := cfg.NewPipeline
	if newPipeline == nil {
		newPipeline = func(w scanner.Writer) *scanner.Pipeline {
			return scanner.New(scanner.Config{}, w)
		}
	}
	return &Manager{
		kv:          cfg.KV,
		auth:        cfg.Auth,
		newService:  cfg.NewService,
		records:     cfg.Records,
		newPipeline: newPipeline,
		notifier:    cfg.Notifier,
		writerOpts:  cfg.WriterOptions,
		defaultTab:  tab,
		now:         time.Now,
		log:         GetLogger(),
	}
}

// SignIn stores token, probes it and opens a session. A rejected token is removed again.
func (m *Manager) SignIn(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	cred, err := m.auth.Credential(token)
	if err != nil {
		return nil, err
	}
	if err := m.kv.Set(ctx, kvstore.KeyAccessToken, token); err != nil {
		return nil, err
	}
	return m.open(ctx, cred)
}

// Resume opens a session from the stored token.
func (m *Manager) Resume(ctx context.Context) (*Session, error) {
	if s, ok := m.Current(); ok {
		return s, nil
	}

	token, ok, err := m.kv.Get(ctx, kvstore.KeyAccessToken)
	if err != nil {
		return nil, err
	}
	if !ok || token == "" {
		return nil, ErrNotSignedIn
	}
	cred, err := m.auth.Credential(token)
	if err != nil {
		return nil, err
	}
	return m.open(ctx, cred)
}

func (m *Manager) open(ctx context.Context, cred *auth.Credential) (*Session, error) {
	if err := cred.Probe(ctx); err != nil {
		if errors.Is(err, auth.ErrTokenInvalid) {
			m.log.Info("stored token rejected, sign-in required")
			if rerr := m.kv.Remove(ctx, kvstore.KeyAccessToken); rerr != nil {
				m.log.Warn("failed to remove rejected token", logger.Error(rerr))
			}
		}
		return nil, err
	}

	svc, err := m.newService(ctx, cred)
	if err != nil {
		return nil, err
	}

	target, err := m.loadTarget(ctx)
	if err != nil {
		m.log.Warn("failed to restore selected spreadsheet", logger.Error(err))
	}

	s := &Session{ID: uuid.NewString(), StartedAt: m.now(), cred: cred, svc: svc}

	m.mu.Lock()
	old := m.pipeline
	m.current = s
	m.target = target
	m.writer = sheets.NewWriter(svc, m, m.records, append(m.writerOptions(), sheets.WithNotifier(&expiryNotifier{next: m.notifier, session: s}))...)
	m.pipeline = nil
	m.mu.Unlock()

	if old != nil {
		old.Stop()
	}

	m.log.Info("session opened",
		logger.String("session_id", s.ID),
		logger.Bool("target_selected", target.Selected()))
	return s, nil
}

func (m *Manager) writerOptions() []sheets.WriterOption {
	return append([]sheets.WriterOption{sheets.WithDefaultTab(m.defaultTab)}, m.writerOpts...)
}

// SignOut stops the scanner, revokes the token and clears everything the session stored.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	s, pipeline := m.current, m.pipeline
	m.current, m.writer, m.pipeline = nil, nil, nil
	m.target = sheets.Target{}
	m.mu.Unlock()

	if s == nil {
		return ErrNotSignedIn
	}

	if pipeline != nil {
		pipeline.Stop()
	}

	if err := s.cred.Revoke(ctx); err != nil {
		m.log.Warn("token revoke failed, clearing local session anyway", logger.Error(err))
	}
	if c, ok := s.svc.(interface{ InvalidateCache() }); ok {
		c.InvalidateCache()
	}

	var errs []error
	for _, key := range []string{
		kvstore.KeyAccessToken,
		kvstore.KeySelectedSheetID,
		kvstore.KeySelectedSheetName,
		kvstore.KeySelectedSheetTab,
	} {
		if err := m.kv.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}

	m.log.Info("session closed", logger.String("session_id", s.ID))
	m.success("Signed out successfully")
	return errors.Join(errs...)
}

// Current returns the open session.
func (m *Manager) Current() (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.current != nil
}

// Target returns the selected write destination.
func (m *Manager) Target() sheets.Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.target
}

// Writer returns the session's sheet writer.
func (m *Manager) Writer() (*sheets.Writer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, ErrNotSignedIn
	}
	return m.writer, nil
}

// ListSpreadsheets lists the user's spreadsheets.
func (m *Manager) ListSpreadsheets(ctx context.Context) ([]sheets.Spreadsheet, error) {
	s, err := m.session()
	if err != nil {
		return nil, err
	}
	list, err := s.svc.ListSpreadsheets(ctx)
	if err != nil {
		m.checkExpired(s, err)
		return nil, err
	}
	return list, nil
}

// ListTabs lists the tabs of a spreadsheet.
func (m *Manager) ListTabs(ctx context.Context, spreadsheetID string) ([]sheets.Tab, error) {
	s, err := m.session()
	if err != nil {
		return nil, err
	}
	tabs, err := s.svc.ListTabs(ctx, spreadsheetID)
	if err != nil {
		m.checkExpired(s, err)
		return nil, err
	}
	return tabs, nil
}

// SelectSpreadsheet selects a spreadsheet, clears the tab and resolves it: a spreadsheet
// with a single tab selects that tab. When tabs cannot be listed the spreadsheet stays
// selected and ErrTabsUnavailable asks the caller for a tab name.
func (m *Manager) SelectSpreadsheet(ctx context.Context, id, name string) (sheets.Target, []sheets.Tab, error) {
	s, err := m.session()
	if err != nil {
		return sheets.Target{}, nil, err
	}
	if id == "" {
		return sheets.Target{}, nil, errors.New(sheets.ErrNoTargetSelected).
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}

	target := sheets.Target{SpreadsheetID: id, SpreadsheetName: name}
	m.setTarget(target)
	if err := m.persistTarget(ctx, target); err != nil {
		return target, nil, err
	}

	tabs, err := s.svc.ListTabs(ctx, id)
	if err != nil {
		if m.checkExpired(s, err) {
			return target, nil, err
		}
		m.failure("Unable to read sheet tabs (permissions or network). Please enter tab name manually.", err)
		return target, nil, errors.New(errors.Join(ErrTabsUnavailable, err)).
			Component("session").
			Category(errors.CategorySheetsRemote).
			SheetContext(id, "").
			Build()
	}

	if len(tabs) == 1 {
		target, err = m.SelectTab(ctx, tabs[0].Title)
		return target, tabs, err
	}
	if len(tabs) == 0 {
		m.success("Selected: " + displayName(target))
	}
	return target, tabs, nil
}

// SelectTab sets the tab of the selected spreadsheet.
func (m *Manager) SelectTab(ctx context.Context, tab string) (sheets.Target, error) {
	tab = strings.TrimSpace(tab)
	if tab == "" {
		return m.Target(), errors.New(ErrEmptyTab).
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}

	m.mu.Lock()
	if !m.target.Selected() {
		m.mu.Unlock()
		return sheets.Target{}, sheets.ErrNoTargetSelected
	}
	m.target.TabName = tab
	target := m.target
	m.mu.Unlock()

	if err := m.kv.Set(ctx, kvstore.KeySelectedSheetTab, tab); err != nil {
		return target, err
	}
	m.success("Selected: " + displayName(target))
	return target, nil
}

// StartScanner starts the scanning pipeline for the selected target. A missing tab falls
// back to the default tab.
func (m *Manager) StartScanner(ctx context.Context) (*scanner.Pipeline, error) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return nil, ErrNotSignedIn
	}
	if !m.target.Selected() {
		m.mu.Unlock()
		return nil, sheets.ErrNoTargetSelected
	}
	fillTab := m.target.TabName == ""
	if fillTab {
		m.target.TabName = m.defaultTab
	}
	if m.pipeline == nil {
		m.pipeline = m.newPipeline(m.writer)
	}
	pipeline := m.pipeline
	m.mu.Unlock()

	if fillTab {
		if err := m.kv.Set(ctx, kvstore.KeySelectedSheetTab, m.defaultTab); err != nil {
			m.log.Warn("failed to persist default tab", logger.Error(err))
		}
	}

	if err := pipeline.Start(ctx); err != nil {
		if errors.IsCategory(err, errors.CategoryCamera) {
			m.failure("Camera access denied. Please enable camera permissions.", err)
		}
		return nil, err
	}
	return pipeline, nil
}

// StopScanner stops a running scanner.
func (m *Manager) StopScanner() {
	m.mu.RLock()
	pipeline := m.pipeline
	m.mu.RUnlock()
	if pipeline != nil {
		pipeline.Stop()
	}
}

// Pipeline returns the session's scanner pipeline, if one was created.
func (m *Manager) Pipeline() (*scanner.Pipeline, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pipeline, m.pipeline != nil
}

// Resync re-sends the whole history to the selected target.
func (m *Manager) Resync(ctx context.Context, tabOverride string) (int, error) {
	s, err := m.session()
	if err != nil {
		return 0, err
	}
	w, err := m.Writer()
	if err != nil {
		return 0, err
	}
	n, err := w.AppendBatch(ctx, tabOverride)
	if err != nil {
		m.checkExpired(s, err)
	}
	return n, err
}

func (m *Manager) session() (*Session, error) {
	s, ok := m.Current()
	if !ok {
		return nil, ErrNotSignedIn
	}
	return s, nil
}

// checkExpired flags the session when err says the token was rejected.
func (m *Manager) checkExpired(s *Session, err error) bool {
	if !sheets.IsUnauthorized(err) {
		return false
	}
	if !s.expired.Swap(true) {
		m.log.Warn("access token rejected, sign in again", logger.String("session_id", s.ID))
	}
	return true
}

func (m *Manager) setTarget(t sheets.Target) {
	m.mu.Lock()
	m.target = t
	m.mu.Unlock()
}

func (m *Manager) loadTarget(ctx context.Context) (sheets.Target, error) {
	var t sheets.Target
	for key, dst := range map[string]*string{
		kvstore.KeySelectedSheetID:   &t.SpreadsheetID,
		kvstore.KeySelectedSheetName: &t.SpreadsheetName,
		kvstore.KeySelectedSheetTab:  &t.TabName,
	} {
		v, _, err := m.kv.Get(ctx, key)
		if err != nil {
			return sheets.Target{}, err
		}
		*dst = v
	}
	return t, nil
}

func (m *Manager) persistTarget(ctx context.Context, t sheets.Target) error {
	if err := m.kv.Set(ctx, kvstore.KeySelectedSheetID, t.SpreadsheetID); err != nil {
		return err
	}
	if err := m.kv.Set(ctx, kvstore.KeySelectedSheetName, t.SpreadsheetName); err != nil {
		return err
	}
	return m.kv.Remove(ctx, kvstore.KeySelectedSheetTab)
}

func (m *Manager) success(msg string) {
	if m.notifier != nil {
		m.notifier.Success(msg)
	}
}

func (m *Manager) failure(msg string, err error) {
	if m.notifier != nil {
		m.notifier.Failure(msg, err)
	}
}

func displayName(t sheets.Target) string {
	if t.TabName == "" {
		return t.SpreadsheetName
	}
	return t.SpreadsheetName + " / " + t.TabName
}

// expiryNotifier flags the session when an asynchronous write was rejected for auth.
type expiryNotifier struct {
	next    sheets.Notifier
	session *Session
}

func (n *expiryNotifier) Success(msg string) {
	if n.next != nil {
		n.next.Success(msg)
	}
}

func (n *expiryNotifier) Failure(msg string, err error) {
	if sheets.IsUnauthorized(err) && !n.session.expired.Swap(true) {
		GetLogger().Warn("access token rejected during write, sign in again", logger.String("session_id", n.session.ID))
	}
	if n.next != nil {
		n.next.Failure(msg, err)
	}
}
