package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/easeaico/eve/internal/emotion"
	"github.com/easeaico/eve/internal/types"
)

// defaultScore replaces missing or mistyped confidence, intensity and importance values.
const defaultScore = 0.5

// TurnReply is the structured reply the model is asked to produce.
type TurnReply struct {
	Response              string
	AIEmotion             string
	AIEmotionConfidence   float64
	AIEmotionIntensity    float64
	UserEmotion           string
	UserEmotionConfidence float64
	UserEmotionIntensity  float64
	// MemoryNote is nil when the model suggested nothing.
	MemoryNote           *string
	MemoryNoteImportance float64
}

// ParseTurnReply extracts the JSON object from raw model text and reads each
// field defensively. Only a missing object or a missing response text is an
// error; every other field falls back to a default.
func ParseTurnReply(raw string) (TurnReply, error) {
	clean := strings.TrimSpace(raw)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start < 0 || end <= start {
		return TurnReply{}, fmt.Errorf("%w: no JSON object in model output", types.ErrModelOutput)
	}
	clean = clean[start : end+1]
	if !gjson.Valid(clean) {
		return TurnReply{}, fmt.Errorf("%w: malformed JSON in model output", types.ErrModelOutput)
	}

	doc := gjson.Parse(clean)
	response := doc.Get("response")
	if response.Type != gjson.String || strings.TrimSpace(response.String()) == "" {
		return TurnReply{}, fmt.Errorf("%w: missing response text", types.ErrModelOutput)
	}

	reply := TurnReply{
		Response:              truncateRunes(strings.TrimSpace(response.String()), types.MaxMessageRunes),
		AIEmotion:             label(doc.Get("ai_emotion")),
		AIEmotionConfidence:   score(doc.Get("ai_emotion_confidence")),
		AIEmotionIntensity:    score(doc.Get("ai_emotion_intensity")),
		UserEmotion:           label(doc.Get("user_emotion")),
		UserEmotionConfidence: score(doc.Get("user_emotion_confidence")),
		UserEmotionIntensity:  score(doc.Get("user_emotion_intensity")),
		MemoryNoteImportance:  score(doc.Get("memory_note_importance")),
	}
	if note := doc.Get("memory_note"); note.Type == gjson.String {
		if text := strings.TrimSpace(note.String()); text != "" {
			text = truncateRunes(text, types.MaxMemoryNoteRunes)
			reply.MemoryNote = &text
		}
	}
	return reply, nil
}

func label(v gjson.Result) string {
	if v.Type != gjson.String {
		return string(emotion.Neutral)
	}
	text := strings.ToLower(strings.TrimSpace(v.String()))
	if text == "" {
		return string(emotion.Neutral)
	}
	return text
}

func score(v gjson.Result) float64 {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		if err != nil {
			return defaultScore
		}
		f = parsed
	default:
		return defaultScore
	}
	if math.IsNaN(f) {
		return defaultScore
	}
	return math.Min(1, math.Max(0, f))
}

func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}
