package types

import (
	"errors"
	"testing"

	"github.com/easeaico/eve/internal/emotion"
)

func TestNewCharacterDefaults(t *testing.T) {
	c, err := NewCharacter(Character{Name: "Aiko"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DefaultEmotion != emotion.Neutral {
		t.Fatalf("expected neutral default emotion, got %q", c.DefaultEmotion)
	}
	if !c.EnabledEmotions.Contains(c.DefaultEmotion) {
		t.Fatalf("default emotion must be enabled")
	}
	if c.EmoticonsFrequency != EmoticonsRarely || c.MemoryRetentionPreference != MemoryShortTerm {
		t.Fatalf("unexpected behavioral defaults: %+v", c)
	}
}

func TestNewCharacterRejectsDefaultOutsideEnabledSet(t *testing.T) {
	_, err := NewCharacter(Character{
		Name:            "Aiko",
		EnabledEmotions: emotion.MustSet("joyful", "playful"),
		DefaultEmotion:  emotion.Neutral,
	})
	if !errors.Is(err, ErrBusinessRule) {
		t.Fatalf("expected ErrBusinessRule, got %v", err)
	}
}

func TestCharacterValidateFrequencyBounds(t *testing.T) {
	c, err := NewCharacter(Character{Name: "Aiko"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	c.AskQuestionsFrequency = 1.2
	if err := c.Validate(); !errors.Is(err, ErrBusinessRule) {
		t.Fatalf("expected ErrBusinessRule for frequency 1.2, got %v", err)
	}
}

func TestCharacterValidateEmptySet(t *testing.T) {
	c := Character{Name: "Aiko", DefaultEmotion: emotion.Neutral, EmoticonsFrequency: EmoticonsNever, MemoryRetentionPreference: MemoryLongTerm}
	if err := c.Validate(); !errors.Is(err, ErrBusinessRule) {
		t.Fatalf("expected empty enabled set to be rejected, got %v", err)
	}
}

func TestRuntimeConfigValidate(t *testing.T) {
	cfg := DefaultRuntimeConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must be valid, got %v", err)
	}

	mode := AIMode("cloud")
	bad := RuntimeConfigPatch{Mode: &mode}.Apply(cfg)
	err := bad.Validate()
	if !errors.Is(err, ErrConfig) || !errors.Is(err, ErrBusinessRule) {
		t.Fatalf("expected invalid mode to be a config and business-rule error, got %v", err)
	}

	threshold := 1.5
	bad = RuntimeConfigPatch{EmotionConfidenceThreshold: &threshold}.Apply(cfg)
	if err := bad.Validate(); !errors.Is(err, ErrBusinessRule) {
		t.Fatalf("expected threshold bound violation, got %v", err)
	}
}

func TestMessageQualifiedEmotion(t *testing.T) {
	m := Message{Emotion: emotion.Joyful, EmotionIntensity: 0.7}
	if got := m.QualifiedEmotion(); got != "very_joyful" {
		t.Fatalf("expected very_joyful, got %q", got)
	}
	m = Message{EmotionIntensity: 0.1}
	if got := m.QualifiedEmotion(); got != "slightly_neutral" {
		t.Fatalf("expected slightly_neutral for absent emotion, got %q", got)
	}
}
