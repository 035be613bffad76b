package httpapi

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"jobmail-engine/internal/config"
	"jobmail-engine/internal/events"
)

// RunHandler starts pipeline runs in the background. Only one run at a time;
// a second POST gets 409.
type RunHandler struct {
	CfgVal  *atomic.Value // config.Config
	Hub     *events.Hub
	Run     RunFunc
	BaseCtx context.Context
	Log     zerolog.Logger

	mu     sync.Mutex
	status RunStatus
	wg     sync.WaitGroup
}

func (h *RunHandler) Status(c echo.Context) error {
	h.mu.Lock()
	st := h.status
	h.mu.Unlock()
	return c.JSON(http.StatusOK, st)
}

func (h *RunHandler) Start(c echo.Context) error {
	if h.Run == nil {
		return WriteError(c, http.StatusServiceUnavailable, "unavailable", "pipeline runs are not configured")
	}

	h.mu.Lock()
	if h.status.Running {
		h.mu.Unlock()
		return WriteError(c, http.StatusConflict, "already_running", "a run is already in progress")
	}
	h.status.Running = true
	h.status.LastRunAt = time.Now().Format(time.RFC3339)
	h.mu.Unlock()

	runID := uuid.NewString()
	cfg := h.CfgVal.Load().(config.Config)
	base := h.BaseCtx
	if base == nil {
		base = context.Background()
	}

	h.publish(runID, events.RunStarted, nil)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		err := h.Run(base, cfg)

		h.mu.Lock()
		defer h.mu.Unlock()
		h.status.Running = false
		h.status.Runs++
		if err != nil {
			h.status.LastError = err.Error()
			h.Log.Error().Err(err).Str("run_id", runID).Msg("run failed")
			h.publish(runID, events.RunFailed, map[string]string{"error": err.Error()})
			return
		}
		h.status.LastError = ""
		h.status.LastOkAt = time.Now().Format(time.RFC3339)
	}()

	return c.JSON(http.StatusAccepted, map[string]any{"ok": true, "run_id": runID})
}

// Wait blocks until the background run, if any, finishes.
func (h *RunHandler) Wait() { h.wg.Wait() }

func (h *RunHandler) publish(runID, typ string, data any) {
	if h.Hub != nil {
		h.Hub.Emit(runID, typ, data)
	}
}
