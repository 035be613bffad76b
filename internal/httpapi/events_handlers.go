package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"jobmail-engine/internal/events"
)

type EventsHandler struct {
	Hub *events.Hub
	Log zerolog.Logger
}

// ServeSSE streams events. ?types=a,b limits the stream to those event
// types; the initial ping is always sent.
func (h EventsHandler) ServeSSE(c echo.Context) error {
	var types []string
	for _, t := range strings.Split(c.QueryParam("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := h.Hub.Subscribe(types...)
	defer func() {
		h.Hub.Unsubscribe(sub)
		if n := sub.Dropped(); n > 0 {
			h.Log.Warn().Int64("dropped", n).Str("request_id", RequestIDFrom(c)).Msg("slow sse client missed events")
		}
	}()

	fmt.Fprintf(w, "event: message\ndata: %s\n\n", events.MakeEvent(RequestIDFrom(c), events.Ping, nil))
	w.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C:
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			w.Flush()
		}
	}
}
