package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListCharacters returns the active characters.
// GET /v1/characters
func (h *Handler) ListCharacters(c echo.Context) error {
	characters, err := h.store.Characters.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"characters": characters,
	})
}

// GetDefaultCharacter returns the character new conversations start with.
// GET /v1/characters/default
func (h *Handler) GetDefaultCharacter(c echo.Context) error {
	character, err := h.store.Characters.GetDefault(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, character)
}
