package types

import "errors"

// Error taxonomy shared across the generation core and its collaborators.
// Callers classify failures with errors.Is.
var (
	// ErrNotFound marks a referenced conversation, character or user that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState marks broken referential integrity, e.g. a conversation without a live character.
	ErrInvalidState = errors.New("invalid state")
	// ErrModelOutput marks model text that could not be parsed into a reply.
	ErrModelOutput = errors.New("malformed model output")
	// ErrUpstream marks an unexpected failure of the model or persistence collaborator.
	ErrUpstream = errors.New("upstream failure")
	// ErrConfig marks an invalid or unimplemented runtime mode.
	ErrConfig = errors.New("configuration error")
	// ErrBusinessRule marks input that violates a business rule, e.g. an empty model reply.
	ErrBusinessRule = errors.New("business rule violation")
)
