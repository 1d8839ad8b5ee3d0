package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/easeaico/eve/internal/types"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// CreateTurnRequest is the body of a turn request.
type CreateTurnRequest struct {
	Message string `json:"message"`
}

// CreateTurnResponse carries the stored assistant reply.
type CreateTurnResponse struct {
	TurnID           string            `json:"turn_id"`
	Message          types.Message     `json:"message"`
	GenerationTimeMS int64             `json:"generation_time_ms"`
	MemoryNote       *types.MemoryNote `json:"memory_note,omitempty"`
}

// CreateTurn answers a user message.
// POST /v1/conversations/:conversation_id/turns
func (h *Handler) CreateTurn(c echo.Context) error {
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return badRequest(c, "conversation_id", "conversation_id must be a positive integer")
	}

	var req CreateTurnRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "", "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return badRequest(c, "message", "message is required")
	}

	result, err := h.turns.GenerateTurn(c.Request().Context(), conversationID, req.Message)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, CreateTurnResponse{
		TurnID:           result.TurnID,
		Message:          result.Message,
		GenerationTimeMS: result.GenerationTime.Milliseconds(),
		MemoryNote:       result.MemoryNote,
	})
}

// GetConversationMessages returns a page of a conversation's history.
// GET /v1/characters/:character_id/conversations/:conversation_id/messages
func (h *Handler) GetConversationMessages(c echo.Context) error {
	ctx := c.Request().Context()
	characterID, ok := pathID(c, "character_id")
	if !ok {
		return badRequest(c, "character_id", "character_id must be a positive integer")
	}
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return badRequest(c, "conversation_id", "conversation_id must be a positive integer")
	}

	limit := defaultPageLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageLimit {
			return badRequest(c, "limit", "limit must be between 1 and 200")
		}
		limit = n
	}
	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return badRequest(c, "offset", "offset must be a non-negative integer")
		}
		offset = n
	}
	desc := false
	if raw := c.QueryParam("sort_desc"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "sort_desc", "sort_desc must be a boolean")
		}
		desc = b
	}

	if _, err := h.store.Conversations.GetForCharacter(ctx, characterID, conversationID); err != nil {
		return writeError(c, err)
	}
	page, err := h.store.Messages.Page(ctx, conversationID, limit, offset, desc)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// DeleteConversation removes a conversation with its messages and notes.
// DELETE /v1/characters/:character_id/conversations/:conversation_id
func (h *Handler) DeleteConversation(c echo.Context) error {
	ctx := c.Request().Context()
	characterID, ok := pathID(c, "character_id")
	if !ok {
		return badRequest(c, "character_id", "character_id must be a positive integer")
	}
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return badRequest(c, "conversation_id", "conversation_id must be a positive integer")
	}

	if _, err := h.store.Conversations.GetForCharacter(ctx, characterID, conversationID); err != nil {
		return writeError(c, err)
	}
	if err := h.store.Conversations.Delete(ctx, conversationID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func pathID(c echo.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
