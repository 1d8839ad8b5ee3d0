package emotion

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptySet is returned when a set would contain no emotions.
var ErrEmptySet = errors.New("emotion set must not be empty")

// Set is an immutable, non-empty collection of registered emotions.
// The zero value is empty and only useful as a decode target.
type Set struct {
	members map[Emotion]struct{}
}

// NewSet builds a Set from labels, rejecting unknown labels and empty input.
// Duplicates are collapsed.
func NewSet(labels ...string) (Set, error) {
	members := make(map[Emotion]struct{}, len(labels))
	var unknown []string
	for _, label := range labels {
		e, err := Parse(label)
		if err != nil {
			unknown = append(unknown, label)
			continue
		}
		members[e] = struct{}{}
	}
	if len(unknown) > 0 {
		return Set{}, fmt.Errorf("unknown emotions: %s", strings.Join(unknown, ", "))
	}
	if len(members) == 0 {
		return Set{}, ErrEmptySet
	}
	return Set{members: members}, nil
}

// MustSet is NewSet that panics on error. Intended for fixtures and defaults.
func MustSet(labels ...string) Set {
	s, err := NewSet(labels...)
	if err != nil {
		panic(err)
	}
	return s
}

// DefaultSet is the repertoire assigned to characters that do not declare one.
func DefaultSet() Set {
	return MustSet(
		"neutral", "joyful", "curious", "protective", "irritated", "angry",
		"anxious", "embarrassed", "disappointed", "scared", "sarcastic",
		"affectionate", "playful", "smug", "vulnerable", "flustered",
		"tired", "confused",
	)
}

// Contains reports whether e is in the set.
func (s Set) Contains(e Emotion) bool {
	_, ok := s.members[e]
	return ok
}

// Len returns the number of emotions in the set.
func (s Set) Len() int {
	return len(s.members)
}

// Emotions returns the members in registry order.
func (s Set) Emotions() []Emotion {
	out := make([]Emotion, 0, len(s.members))
	for _, e := range registry {
		if _, ok := s.members[e]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Strings returns the member labels in registry order.
func (s Set) Strings() []string {
	emotions := s.Emotions()
	out := make([]string, len(emotions))
	for i, e := range emotions {
		out[i] = string(e)
	}
	return out
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return fmt.Errorf("emotion set must be a list of labels: %w", err)
	}
	parsed, err := NewSet(labels...)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalYAML encodes the set as a label list.
func (s Set) MarshalYAML() (any, error) {
	return s.Strings(), nil
}

// UnmarshalYAML decodes and validates a label list.
func (s *Set) UnmarshalYAML(unmarshal func(any) error) error {
	var labels []string
	if err := unmarshal(&labels); err != nil {
		return fmt.Errorf("emotion set must be a list of labels: %w", err)
	}
	parsed, err := NewSet(labels...)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
