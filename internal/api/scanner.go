package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/scan"
	"github.com/AMEND09/ID-Scanner/internal/scanner"
)

// ScannerStatus reports the pipeline and prompt state.
type ScannerStatus struct {
	Running     bool   `json:"running"`
	PromptState string `json:"promptState"`
	PendingID   string `json:"pendingId,omitempty"`
}

// ScanRequest carries one linear decode.
type ScanRequest struct {
	Text string `json:"text"`
}

// ScanResponse tells whether the decode was queued.
type ScanResponse struct {
	Accepted bool `json:"accepted"`
}

// FrameResponse returns the sequence number of a stored frame.
type FrameResponse struct {
	Seq uint64 `json:"seq"`
}

// CameraErrorRequest reports that the client could not open its camera.
type CameraErrorRequest struct {
	Reason string `json:"reason"`
}

// PromptRequest completes a pending prompt.
type PromptRequest struct {
	FullName string `json:"fullName"`
	Grade    string `json:"grade"`
}

// PromptResponse is the prompt state and, after a submit, the written label.
type PromptResponse struct {
	State     string `json:"state"`
	PendingID string `json:"pendingId,omitempty"`
	Label     string `json:"label,omitempty"`
}

// ManualRequest carries a typed ID.
type ManualRequest struct {
	ID string `json:"id"`
}

var errScannerNotStarted = errors.NewStd("scanner is not started")

func (s *Server) pipeline() (*scanner.Pipeline, error) {
	p, ok := s.app.Sessions.Pipeline()
	if !ok {
		return nil, errors.New(errScannerNotStarted).
			Component("api").
			Category(errors.CategoryState).
			Build()
	}
	return p, nil
}

func (s *Server) status() ScannerStatus {
	st := ScannerStatus{PromptState: scan.PromptIdle.String()}
	if p, ok := s.app.Sessions.Pipeline(); ok {
		st.Running = p.Running()
		st.PromptState = p.PromptState().String()
		st.PendingID, _ = p.PendingPrompt()
	}
	return st
}

func (s *Server) scannerStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.status())
}

func (s *Server) startScanner(c echo.Context) error {
	// Scanning outlives this request.
	if _, err := s.app.Sessions.StartScanner(s.baseCtx); err != nil &&
		!errors.Is(err, scanner.ErrAlreadyRunning) {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, s.status())
}

func (s *Server) stopScanner(c echo.Context) error {
	s.app.Sessions.StopScanner()
	return c.JSON(http.StatusOK, s.status())
}

func (s *Server) deliverScan(c echo.Context) error {
	if !s.app.Settings.Scanner.Linear {
		return s.HandleError(c, nil, "Linear scanning is disabled", http.StatusForbidden)
	}
	var req ScanRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, badRequest("invalid request body"))
	}
	p, err := s.pipeline()
	if err != nil {
		return s.HandleError(c, err, "Scanner is not running", http.StatusConflict)
	}
	return c.JSON(http.StatusOK, ScanResponse{Accepted: p.Deliver(req.Text)})
}

func (s *Server) putFrame(c echo.Context) error {
	seq, err := s.app.Frames.PutEncoded(c.Request().Body)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, FrameResponse{Seq: seq})
}

// cameraError ends a running scan: a camera that cannot be opened is fatal to the session.
func (s *Server) cameraError(c echo.Context) error {
	var req CameraErrorRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, badRequest("invalid request body"))
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "camera unavailable"
	}
	err := s.app.Frames.ReportFailure(reason)
	s.app.Sessions.StopScanner()
	s.app.Notifications.Failure("Camera access denied. Please enable camera permissions.", err)
	return c.JSON(http.StatusOK, s.status())
}

func (s *Server) getPrompt(c echo.Context) error {
	st := s.status()
	return c.JSON(http.StatusOK, PromptResponse{State: st.PromptState, PendingID: st.PendingID})
}

func (s *Server) submitPrompt(c echo.Context) error {
	var req PromptRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, badRequest("invalid request body"))
	}
	p, err := s.pipeline()
	if err != nil {
		return s.HandleError(c, err, scan.ErrNoPrompt.Error(), http.StatusConflict)
	}
	payload, err := p.SubmitPrompt(req.FullName, req.Grade)
	if err != nil {
		if errors.Is(err, scan.ErrNameRequired) {
			return s.HandleError(c, err, "Full name is required", http.StatusBadRequest)
		}
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, PromptResponse{
		State: p.PromptState().String(),
		Label: payload.Label(),
	})
}

func (s *Server) cancelPrompt(c echo.Context) error {
	p, err := s.pipeline()
	if err != nil {
		return s.HandleError(c, err, scan.ErrNoPrompt.Error(), http.StatusConflict)
	}
	if err := p.CancelPrompt(); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// manualEntry goes through the running pipeline when there is one and writes directly
// otherwise.
func (s *Server) manualEntry(c echo.Context) error {
	var req ManualRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, badRequest("invalid request body"))
	}

	if p, ok := s.app.Sessions.Pipeline(); ok {
		if err := p.SubmitManual(req.ID); err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusAccepted, ScanResponse{Accepted: true})
	}

	id := strings.TrimSpace(req.ID)
	if !scan.IsNumericID(id) {
		return s.fail(c, errors.New(scanner.ErrInvalidManualID).
			Component("api").
			Category(errors.CategoryValidation).
			Build())
	}
	w, err := s.app.Sessions.Writer()
	if err != nil {
		return s.fail(c, err)
	}
	rec, err := w.AppendSingle(c.Request().Context(), scan.Numeric{ID: id}, time.Now())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) liveRead(c echo.Context) error {
	if p, ok := s.app.Sessions.Pipeline(); ok {
		if lr, ok := p.LiveRead(); ok {
			return c.JSON(http.StatusOK, lr)
		}
	}
	return c.NoContent(http.StatusNoContent)
}
