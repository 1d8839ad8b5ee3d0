package generation

import (
	"errors"
	"log/slog"

	"github.com/easeaico/eve/internal/types"
)

// State is a step of the turn pipeline.
type State string

const (
	StateBuildingContext State = "BUILDING_CONTEXT"
	StateAwaitingModel   State = "AWAITING_MODEL"
	StateParsingResult   State = "PARSING_RESULT"
	StateValidating      State = "VALIDATING"
	StatePersisting      State = "PERSISTING"
	StateDone            State = "DONE"
	StateFailed          State = "FAILED"
)

type turn struct {
	id             string
	conversationID int
	state          State
}

func (t *turn) enter(s State) {
	t.state = s
	slog.Debug("turn state", "turn_id", t.id, "conversation_id", t.conversationID, "state", s)
}

// fail moves the turn to FAILED and returns err unchanged.
func (t *turn) fail(err error) error {
	from := t.state
	t.state = StateFailed
	attrs := []any{"turn_id", t.id, "conversation_id", t.conversationID, "from", from, "error", err.Error()}
	switch {
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrBusinessRule):
		slog.Info("turn failed", attrs...)
	default:
		slog.Error("turn failed", attrs...)
	}
	return err
}
