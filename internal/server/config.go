package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/easeaico/eve/internal/types"
)

// GetConfig returns the runtime configuration with secrets masked.
// GET /v1/config
func (h *Handler) GetConfig(c echo.Context) error {
	cfg, err := h.runtime.Current(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, maskSecrets(cfg))
}

// UpdateConfig applies a partial update.
// PATCH /v1/config
func (h *Handler) UpdateConfig(c echo.Context) error {
	var patch types.RuntimeConfigPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "", "invalid request body")
	}
	cfg, err := h.runtime.Update(c.Request().Context(), patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, maskSecrets(cfg))
}

// ReloadConfig drops the cached snapshot and reads the stored configuration.
// POST /v1/config/reload
func (h *Handler) ReloadConfig(c echo.Context) error {
	cfg, err := h.runtime.Reload(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, maskSecrets(cfg))
}

func maskSecrets(cfg types.RuntimeConfig) types.RuntimeConfig {
	cfg.OpenAIAPIKey = MaskSecret(cfg.OpenAIAPIKey)
	cfg.AnthropicAPIKey = MaskSecret(cfg.AnthropicAPIKey)
	return cfg
}

// MaskSecret keeps the last four characters of a secret.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
