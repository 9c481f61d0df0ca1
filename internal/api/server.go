// Package api serves the ID scanner over HTTP with echo.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/AMEND09/ID-Scanner/internal/api/middleware"
	"github.com/AMEND09/ID-Scanner/internal/app"
	"github.com/AMEND09/ID-Scanner/internal/buildinfo"
	"github.com/AMEND09/ID-Scanner/internal/logger"
)

const (
	// BasePath prefixes every route.
	BasePath = "/api/v1"

	bodyLimit       = "10M"
	readTimeout     = 30 * time.Second
	writeTimeout    = 60 * time.Second
	idleTimeout     = 120 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Server is the HTTP API of the ID scanner.
type Server struct {
	echo      *echo.Echo
	app       *app.App
	build     *buildinfo.Context
	baseCtx   context.Context
	startTime time.Time
	log       logger.Logger
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithBuildInfo sets the version reported by the health endpoint.
func WithBuildInfo(b *buildinfo.Context) ServerOption {
	return func(s *Server) { s.build = b }
}

// GetLogger returns the api module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// New creates the server. ctx outlives requests and bounds scanners started over HTTP.
func New(ctx context.Context, a *app.App, opts ...ServerOption) *Server {
	s := &Server{
		app:       a,
		baseCtx:   ctx,
		startTime: time.Now(),
		log:       GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = readTimeout
	s.echo.Server.WriteTimeout = writeTimeout
	s.echo.Server.IdleTimeout = idleTimeout
	s.echo.HTTPErrorHandler = s.httpErrorHandler

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.RequestID())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log, mw.SkipPaths(BasePath+"/health", BasePath+"/frames")))
	s.echo.Use(echomw.BodyLimit(bodyLimit))
	s.echo.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}))
}

func (s *Server) setupRoutes() {
	g := s.echo.Group(BasePath)

	g.GET("/health", s.health)

	g.GET("/session", s.getSession)
	g.POST("/session", s.signIn)
	g.DELETE("/session", s.signOut)

	g.GET("/spreadsheets", s.listSpreadsheets)
	g.GET("/spreadsheets/:id/tabs", s.listTabs)
	g.POST("/spreadsheets/:id/select", s.selectSpreadsheet)
	g.GET("/target", s.getTarget)
	g.PUT("/target/tab", s.selectTab)

	g.GET("/scanner", s.scannerStatus)
	g.POST("/scanner/start", s.startScanner)
	g.POST("/scanner/stop", s.stopScanner)
	g.POST("/scans", s.deliverScan)
	g.POST("/frames", s.putFrame)
	g.POST("/camera/error", s.cameraError)

	g.GET("/prompt", s.getPrompt)
	g.POST("/prompt", s.submitPrompt)
	g.DELETE("/prompt", s.cancelPrompt)
	g.POST("/manual", s.manualEntry)
	g.GET("/live", s.liveRead)

	g.GET("/records", s.listRecords)
	g.POST("/records/resync", s.resync)
	g.GET("/records/export/:format", s.exportRecords)

	g.GET("/notifications", s.listNotifications)
	g.GET("/notifications/stream", s.streamNotifications)

	g.GET("/metrics", echo.WrapHandler(s.app.Metrics.Handler()))
}

// ServeHTTP lets the server be used as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.echo.Listener = ln
	s.log.Info("HTTP server starting", logger.String("address", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start("")
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.log.Info("stopping HTTP server")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) health(c echo.Context) error {
	uptime := time.Since(s.startTime)
	_, signedIn := s.app.Sessions.Current()
	running := false
	if p, ok := s.app.Sessions.Pipeline(); ok {
		running = p.Running()
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        s.build.GetVersion(),
		"build_date":     s.build.GetBuildDate(),
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"signed_in":      signedIn,
		"scanning":       running,
		"records":        s.app.Records.Len(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}
