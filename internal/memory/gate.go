// Package memory decides which model-suggested notes become long-term memories.
package memory

import (
	"log/slog"
	"strings"
	"sync/atomic"
)

// DefaultSignificanceBar is the importance a note must strictly exceed to be kept.
const DefaultSignificanceBar = 0.85

// Decision is the outcome of the significance gate.
type Decision int

const (
	Discard Decision = iota
	Keep
)

func (d Decision) String() string {
	if d == Keep {
		return "keep"
	}
	return "discard"
}

// Decide applies the default bar: Keep iff content is present and importance > 0.85.
func Decide(content *string, importance float64) Decision {
	return decide(content, importance, DefaultSignificanceBar)
}

func decide(content *string, importance, bar float64) Decision {
	if content == nil || strings.TrimSpace(*content) == "" {
		return Discard
	}
	if importance > bar {
		return Keep
	}
	return Discard
}

// Gate is a configurable significance gate that keeps track of notes the
// model suggested but the bar rejected.
type Gate struct {
	bar       float64
	discarded atomic.Int64
}

// NewGate returns a gate using bar, or DefaultSignificanceBar when bar is outside (0,1).
func NewGate(bar float64) *Gate {
	if bar <= 0 || bar >= 1 {
		bar = DefaultSignificanceBar
	}
	return &Gate{bar: bar}
}

// Bar returns the configured significance bar.
func (g *Gate) Bar() float64 {
	return g.bar
}

// Decide evaluates one candidate note.
func (g *Gate) Decide(content *string, importance float64) Decision {
	d := decide(content, importance, g.bar)
	if d == Discard && content != nil && strings.TrimSpace(*content) != "" {
		g.discarded.Add(1)
		slog.Debug("memory note below significance bar", "importance", importance, "bar", g.bar, "content_len", len(*content))
	}
	return d
}

// Discarded returns how many non-empty suggestions were rejected so far.
func (g *Gate) Discarded() int64 {
	return g.discarded.Load()
}
