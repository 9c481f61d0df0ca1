package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/session"
	"github.com/AMEND09/ID-Scanner/internal/sheets"
)

// SessionResponse describes the signed-in state.
type SessionResponse struct {
	SignedIn  bool          `json:"signedIn"`
	ID        string        `json:"id,omitempty"`
	StartedAt *time.Time    `json:"startedAt,omitempty"`
	Expired   bool          `json:"expired"`
	Target    sheets.Target `json:"target"`
}

// SignInRequest carries an OAuth access token obtained by the client.
type SignInRequest struct {
	Token string `json:"token"`
}

// SelectSpreadsheetRequest names the spreadsheet being selected.
type SelectSpreadsheetRequest struct {
	Name string `json:"name"`
}

// SelectSpreadsheetResponse lists the tabs of the selected spreadsheet.
type SelectSpreadsheetResponse struct {
	Target sheets.Target `json:"target"`
	Tabs   []sheets.Tab  `json:"tabs"`
	// ManualTab asks the client for a tab name because tabs could not be listed.
	ManualTab bool   `json:"manualTab"`
	Message   string `json:"message,omitempty"`
}

// SelectTabRequest names the tab to write to.
type SelectTabRequest struct {
	Tab string `json:"tab"`
}

func (s *Server) sessionResponse() SessionResponse {
	resp := SessionResponse{Target: s.app.Sessions.Target()}
	if cur, ok := s.app.Sessions.Current(); ok {
		startedAt := cur.StartedAt
		resp.SignedIn = true
		resp.ID = cur.ID
		resp.StartedAt = &startedAt
		resp.Expired = cur.Expired()
	}
	return resp
}

func (s *Server) getSession(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sessionResponse())
}

func (s *Server) signIn(c echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, badRequest("invalid request body"))
	}
	if strings.TrimSpace(req.Token) == "" {
		return s.fail(c, badRequest("token is required"))
	}
	if _, err := s.app.Sessions.SignIn(c.Request().Context(), req.Token); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, s.sessionResponse())
}

func (s *Server) signOut(c echo.Context) error {
	err := s.app.Sessions.SignOut(c.Request().Context())
	if err != nil && !errors.Is(err, session.ErrNotSignedIn) {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listSpreadsheets(c echo.Context) error {
	list, err := s.app.Sessions.ListSpreadsheets(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	if list == nil {
		list = []sheets.Spreadsheet{}
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) listTabs(c echo.Context) error {
	tabs, err := s.app.Sessions.ListTabs(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	if tabs == nil {
		tabs = []sheets.Tab{}
	}
	return c.JSON(http.StatusOK, tabs)
}

func (s *Server) selectSpreadsheet(c echo.Context) error {
	var req SelectSpreadsheetRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, badRequest("invalid request body"))
	}

	target, tabs, err := s.app.Sessions.SelectSpreadsheet(c.Request().Context(), c.Param("id"), req.Name)
	switch {
	case errors.Is(err, session.ErrTabsUnavailable):
		_, message := classify(err)
		return c.JSON(http.StatusOK, SelectSpreadsheetResponse{
			Target:    target,
			Tabs:      []sheets.Tab{},
			ManualTab: true,
			Message:   message,
		})
	case err != nil:
		return s.fail(c, err)
	}
	if tabs == nil {
		tabs = []sheets.Tab{}
	}
	return c.JSON(http.StatusOK, SelectSpreadsheetResponse{Target: target, Tabs: tabs})
}

func (s *Server) getTarget(c echo.Context) error {
	return c.JSON(http.StatusOK, s.app.Sessions.Target())
}

func (s *Server) selectTab(c echo.Context) error {
	var req SelectTabRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, badRequest("invalid request body"))
	}
	target, err := s.app.Sessions.SelectTab(c.Request().Context(), req.Tab)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, target)
}
