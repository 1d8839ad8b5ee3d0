// Package emotion defines the closed emotion vocabulary shared by characters and messages.
package emotion

import (
	"fmt"
	"strings"
)

// Emotion is a label from the registry.
type Emotion string

const (
	Neutral    Emotion = "neutral"
	Content    Emotion = "content"
	Joyful     Emotion = "joyful"
	Curious    Emotion = "curious"
	Protective Emotion = "protective"
	Excited    Emotion = "excited"

	Irritated    Emotion = "irritated"
	Angry        Emotion = "angry"
	Anxious      Emotion = "anxious"
	Embarrassed  Emotion = "embarrassed"
	Disappointed Emotion = "disappointed"
	Scared       Emotion = "scared"

	Sarcastic    Emotion = "sarcastic"
	Affectionate Emotion = "affectionate"
	Playful      Emotion = "playful"
	Smug         Emotion = "smug"
	Vulnerable   Emotion = "vulnerable"
	Flustered    Emotion = "flustered"

	Tired    Emotion = "tired"
	Confused Emotion = "confused"
)

// registry keeps the canonical order used when listing emotions in prompts.
var registry = []Emotion{
	Neutral, Content, Joyful, Curious, Protective, Excited,
	Irritated, Angry, Anxious, Embarrassed, Disappointed, Scared,
	Sarcastic, Affectionate, Playful, Smug, Vulnerable, Flustered,
	Tired, Confused,
}

var position = func() map[Emotion]int {
	m := make(map[Emotion]int, len(registry))
	for i, e := range registry {
		m[e] = i
	}
	return m
}()

// All returns every registered emotion in canonical order.
func All() []Emotion {
	out := make([]Emotion, len(registry))
	copy(out, registry)
	return out
}

// IsValid reports whether label is a registered emotion. Matching is exact.
func IsValid(label string) bool {
	_, ok := position[Emotion(label)]
	return ok
}

// Parse normalizes casing and whitespace and returns the registered emotion.
func Parse(label string) (Emotion, error) {
	e := Emotion(strings.ToLower(strings.TrimSpace(label)))
	if _, ok := position[e]; !ok {
		return "", fmt.Errorf("unknown emotion %q", label)
	}
	return e, nil
}

// ParseOrNeutral returns the registered emotion or Neutral when label is absent or unknown.
func ParseOrNeutral(label string) Emotion {
	e, err := Parse(label)
	if err != nil {
		return Neutral
	}
	return e
}

func (e Emotion) String() string {
	return string(e)
}
