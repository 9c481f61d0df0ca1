package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const heartbeatInterval = 30 * time.Second

func (s *Server) listNotifications(c echo.Context) error {
	return c.JSON(http.StatusOK, s.app.Notifications.Recent())
}

// streamNotifications sends new notifications as server-sent events until the client leaves.
func (s *Server) streamNotifications(c echo.Context) error {
	ch, unsubscribe := s.app.Notifications.Subscribe()
	defer unsubscribe()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.baseCtx.Done():
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(res, ": heartbeat\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case n, ok := <-ch:
			if !ok {
				return nil
			}
			data, err := json.Marshal(n)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(res, "event: notification\ndata: %s\n\n", data); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
