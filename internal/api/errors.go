package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	mw "github.com/AMEND09/ID-Scanner/internal/api/middleware"
	"github.com/AMEND09/ID-Scanner/internal/auth"
	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/export"
	"github.com/AMEND09/ID-Scanner/internal/logger"
	"github.com/AMEND09/ID-Scanner/internal/privacy"
	"github.com/AMEND09/ID-Scanner/internal/scan"
	"github.com/AMEND09/ID-Scanner/internal/scanner"
	"github.com/AMEND09/ID-Scanner/internal/session"
	"github.com/AMEND09/ID-Scanner/internal/sheets"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = privacy.ScrubMessage(err.Error())
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
}

// HandleError logs err and writes an ErrorResponse with code.
func (s *Server) HandleError(c echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)
	if id := mw.GetRequestID(c); id != "" {
		resp.CorrelationID = id
	}
	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("path", c.Path()),
		logger.Int("status", code),
		logger.String("message", message),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		s.log.Error("API error", fields...)
	} else {
		s.log.Debug("API error", fields...)
	}
	return c.JSON(code, resp)
}

// fail maps err to a status code and message.
func (s *Server) fail(c echo.Context, err error) error {
	code, message := classify(err)
	return s.HandleError(c, err, message, code)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNotSignedIn):
		return http.StatusUnauthorized, "Sign in required"
	case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, sheets.ErrUnauthorized),
		errors.IsCategory(err, errors.CategoryAuth):
		return http.StatusUnauthorized, "Access token rejected, please sign in again"
	case errors.Is(err, sheets.ErrNoTargetSelected):
		return http.StatusConflict, "No Google Sheet selected. Please sign in and choose a sheet."
	case errors.Is(err, session.ErrTabsUnavailable):
		return http.StatusBadGateway, "Unable to read sheet tabs (permissions or network). Please enter tab name manually."
	case errors.Is(err, scanner.ErrAlreadyRunning):
		return http.StatusConflict, "Scanner is already running"
	case errors.Is(err, scan.ErrNoPrompt), errors.Is(err, scan.ErrPromptBusy):
		return http.StatusConflict, err.Error()
	case errors.Is(err, export.ErrEmptyExport), errors.Is(err, sheets.ErrEmptyBatch):
		return http.StatusNotFound, "No scans to export"
	case errors.Is(err, export.ErrUnknownFormat):
		return http.StatusBadRequest, "Unknown export format"
	case errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest, "Invalid request"
	case errors.IsCategory(err, errors.CategoryCamera):
		return http.StatusServiceUnavailable, "Camera access denied. Please enable camera permissions."
	case errors.IsCategory(err, errors.CategorySheetsRemote), errors.IsCategory(err, errors.CategoryNetwork),
		errors.IsCategory(err, errors.CategoryTimeout):
		return http.StatusBadGateway, "Spreadsheet service unavailable"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// httpErrorHandler renders echo errors (404, 405, body limit) in the API error shape.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		_ = s.HandleError(c, nil, msg, he.Code)
		return
	}
	_ = s.fail(c, err)
}

func badRequest(message string) error {
	return errors.New(errors.NewStd(message)).
		Component("api").
		Category(errors.CategoryValidation).
		Build()
}
