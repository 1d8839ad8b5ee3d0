package emotion

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrIntensityOutOfRange is returned by Qualify for intensities outside [0,1].
var ErrIntensityOutOfRange = errors.New("emotion intensity out of range")

const (
	slightlyBelow  = 0.3
	bareBelow      = 0.6
	veryBelow      = 0.8
	prefixSlightly = "slightly_"
	prefixVery     = "very_"
	prefixExtreme  = "extremely_"
)

// Qualify prefixes label with its intensity bucket:
// [0,0.3) slightly_, [0.3,0.6) bare, [0.6,0.8) very_, [0.8,1] extremely_.
// An empty label is treated as Neutral. Intensities outside [0,1] are rejected, not clamped.
func Qualify(label string, intensity float64) (string, error) {
	if math.IsNaN(intensity) || intensity < 0 || intensity > 1 {
		return "", fmt.Errorf("%w: %v", ErrIntensityOutOfRange, intensity)
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = string(Neutral)
	}

	switch {
	case intensity < slightlyBelow:
		return prefixSlightly + label, nil
	case intensity < bareBelow:
		return label, nil
	case intensity < veryBelow:
		return prefixVery + label, nil
	default:
		return prefixExtreme + label, nil
	}
}
