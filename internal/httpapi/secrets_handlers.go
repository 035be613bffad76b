package httpapi

import (
	"net/http"
	"sync/atomic"

	"github.com/labstack/echo/v4"

	"jobmail-engine/internal/config"
	"jobmail-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setSecretReq struct {
	Value string `json:"value"`
}

func (h SecretsHandler) Set(c echo.Context) error {
	kind, err := secrets.ParseKind(c.Param("kind"))
	if err != nil {
		return WriteError(c, http.StatusNotFound, "not_found", err.Error())
	}
	var req setSecretReq
	if err := c.Bind(&req); err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_json", "invalid json")
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.Set(kind, cfg, req.Value); err != nil {
		return WriteError(c, http.StatusBadRequest, "store_failed", "failed to store secret: "+err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h SecretsHandler) Delete(c echo.Context) error {
	kind, err := secrets.ParseKind(c.Param("kind"))
	if err != nil {
		return WriteError(c, http.StatusNotFound, "not_found", err.Error())
	}
	if err := secrets.Delete(kind, h.CfgVal.Load().(config.Config)); err != nil {
		return WriteError(c, http.StatusInternalServerError, "delete_failed", err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
