package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/AMEND09/ID-Scanner/internal/export"
	"github.com/AMEND09/ID-Scanner/internal/records"
)

// RecordsResponse is one page of the history.
type RecordsResponse struct {
	Records  []records.Record `json:"records"`
	Total    int              `json:"total"`
	Pending  int              `json:"pending"`
	Capacity int              `json:"capacity"`
}

// ResyncRequest optionally overrides the target tab.
type ResyncRequest struct {
	Tab string `json:"tab"`
}

// ResyncResponse reports how many rows were re-sent.
type ResyncResponse struct {
	Count int `json:"count"`
}

func (s *Server) listRecords(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return s.fail(c, badRequest("limit must be a non-negative integer"))
		}
		limit = n
	}

	list := s.app.Records.List(limit)
	if list == nil {
		list = []records.Record{}
	}
	return c.JSON(http.StatusOK, RecordsResponse{
		Records:  list,
		Total:    s.app.Records.Len(),
		Pending:  s.app.Records.Pending(),
		Capacity: s.app.Records.Capacity(),
	})
}

func (s *Server) resync(c echo.Context) error {
	var req ResyncRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return s.fail(c, badRequest("invalid request body"))
		}
	}
	n, err := s.app.Sessions.Resync(c.Request().Context(), req.Tab)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, ResyncResponse{Count: n})
}

func (s *Server) exportRecords(c echo.Context) error {
	format, err := export.ParseFormat(c.Param("format"))
	if err != nil {
		return s.fail(c, err)
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, s.app.Records.Snapshot(), s.app.Settings.Location()); err != nil {
		s.app.Notifications.Failure("No scans to export", err)
		return s.fail(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="`+export.Filename(format, time.Now())+`"`)
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}
