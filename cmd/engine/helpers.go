package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"

	"jobmail-engine/internal/httpapi"
)

const shutdownTokenHeader = "X-Shutdown-Token"

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// shutdownHandler lets a local client stop the server. It answers first and
// then calls stop, which cancels the serve context.
func shutdownHandler(token string, stop context.CancelFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Local-only guard. RemoteAddr, not X-Forwarded-For.
		host, _, err := net.SplitHostPort(c.Request().RemoteAddr)
		if err != nil {
			host = c.Request().RemoteAddr
		}
		if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
			return httpapi.WriteError(c, http.StatusForbidden, "forbidden", "shutdown is only allowed from localhost")
		}

		got := c.Request().Header.Get(shutdownTokenHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return httpapi.WriteError(c, http.StatusUnauthorized, "unauthorized", "bad shutdown token")
		}

		err = c.String(http.StatusOK, "shutting down\n")
		go stop()
		return err
	}
}
