package httpapi

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"sync/atomic"

	"github.com/labstack/echo/v4"

	"jobmail-engine/internal/config"
)

type ConfigHandler struct {
	CfgVal      *atomic.Value // stores config.Config
	UserCfgPath string
	LoadCfg     func() (config.Config, error)
}

func (h ConfigHandler) Get(c echo.Context) error {
	abs, _ := filepath.Abs(h.UserCfgPath)
	m, err := yamlToJSONKeys(h.CfgVal.Load().(config.Config))
	if err != nil {
		return WriteError(c, http.StatusInternalServerError, "internal_error", err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"path": abs, "config": m})
}

// Put replaces the whole config. The body is YAML-shaped JSON: the same keys
// as config.yml.
func (h ConfigHandler) Put(c echo.Context) error {
	cur := h.CfgVal.Load().(config.Config)
	raw, err := yamlToJSONKeys(cur)
	if err != nil {
		return WriteError(c, http.StatusInternalServerError, "internal_error", err.Error())
	}

	var body map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_json", "invalid JSON: "+err.Error())
	}
	incoming, err := mergeConfig(raw, body)
	if err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_config", err.Error())
	}

	normalized, vr := config.NormalizeAndValidate(incoming)
	if !vr.OK() {
		// Structured errors so the UI can show them
		return c.JSON(http.StatusBadRequest, vr)
	}
	if err := config.SaveAtomic(h.UserCfgPath, normalized); err != nil {
		return WriteError(c, http.StatusBadRequest, "save_failed", err.Error())
	}

	saved, err := h.LoadCfg()
	if err != nil {
		return WriteError(c, http.StatusInternalServerError, "reload_failed", "saved but reload failed: "+err.Error())
	}
	h.CfgVal.Store(saved)
	m, err := yamlToJSONKeys(saved)
	if err != nil {
		return WriteError(c, http.StatusInternalServerError, "internal_error", err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"config": m, "warnings": vr.Warnings})
}

func (h ConfigHandler) Validate(c echo.Context) error {
	_, vr := config.NormalizeAndValidate(h.CfgVal.Load().(config.Config))
	return c.JSON(http.StatusOK, vr)
}
