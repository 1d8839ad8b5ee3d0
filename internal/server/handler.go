// Package server exposes the turn pipeline, conversation history and runtime
// configuration over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/easeaico/eve/internal/generation"
	"github.com/easeaico/eve/internal/storage"
	"github.com/easeaico/eve/internal/types"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// TurnGenerator runs one conversational turn.
type TurnGenerator interface {
	GenerateTurn(ctx context.Context, conversationID int, userText string) (*generation.Result, error)
}

// RuntimeConfigService reads and updates the runtime configuration.
type RuntimeConfigService interface {
	Current(ctx context.Context) (types.RuntimeConfig, error)
	Reload(ctx context.Context) (types.RuntimeConfig, error)
	Update(ctx context.Context, patch types.RuntimeConfigPatch) (types.RuntimeConfig, error)
}

// Handler handles HTTP requests.
type Handler struct {
	turns   TurnGenerator
	store   *storage.Store
	runtime RuntimeConfigService
}

// NewHandler creates a new handler.
func NewHandler(turns TurnGenerator, store *storage.Store, runtime RuntimeConfigService) *Handler {
	return &Handler{
		turns:   turns,
		store:   store,
		runtime: runtime,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/conversations/:conversation_id/turns", h.CreateTurn)

	e.GET("/v1/characters", h.ListCharacters)
	e.GET("/v1/characters/default", h.GetDefaultCharacter)
	e.GET("/v1/characters/:character_id/conversations/:conversation_id/messages", h.GetConversationMessages)
	e.DELETE("/v1/characters/:character_id/conversations/:conversation_id", h.DeleteConversation)

	e.GET("/v1/config", h.GetConfig)
	e.PATCH("/v1/config", h.UpdateConfig)
	e.POST("/v1/config/reload", h.ReloadConfig)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	if err := h.store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"version": Version,
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}
