package generation

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/easeaico/eve/internal/emotion"
	"github.com/easeaico/eve/internal/types"
	"github.com/easeaico/eve/internal/utils"
)

// FallbackResponse replaces model output that could not be parsed.
const FallbackResponse = "I had trouble formatting my response correctly."

func fallbackReply() utils.TurnReply {
	return utils.TurnReply{
		Response:              FallbackResponse,
		AIEmotion:             string(emotion.Neutral),
		AIEmotionConfidence:   0,
		AIEmotionIntensity:    0.5,
		UserEmotion:           string(emotion.Neutral),
		UserEmotionConfidence: 0,
		UserEmotionIntensity:  0.5,
	}
}

// replySchema describes the JSON object requested from the model. The
// character's emotion field is limited to its enabled set.
func replySchema(character *types.Character) *jsonschema.Schema {
	score := func(desc string) *jsonschema.Schema {
		return &jsonschema.Schema{Type: "number", Description: desc}
	}
	return &jsonschema.Schema{
		Title: "turn_reply",
		Type:  "object",
		Properties: map[string]*jsonschema.Schema{
			"response": {Type: "string", Description: "in-character reply"},
			"ai_emotion": {
				Type: "string",
				Enum: labels(character.EnabledEmotions.Emotions()),
			},
			"ai_emotion_confidence": score("0.0-1.0"),
			"ai_emotion_intensity":  score("0.0-1.0"),
			"user_emotion": {
				Type: "string",
				Enum: labels(emotion.All()),
			},
			"user_emotion_confidence": score("0.0-1.0"),
			"user_emotion_intensity":  score("0.0-1.0"),
			"memory_note":             {Type: "string", Description: "optional long-term fact"},
			"memory_note_importance":  score("0.0-1.0"),
		},
		Required: []string{"response", "ai_emotion", "ai_emotion_confidence", "ai_emotion_intensity"},
	}
}

func labels(emotions []emotion.Emotion) []any {
	out := make([]any, len(emotions))
	for i, e := range emotions {
		out[i] = string(e)
	}
	return out
}

// resolveAIEmotion applies confidence gating, then membership gating.
func resolveAIEmotion(label string, confidence, threshold float64, character *types.Character) emotion.Emotion {
	e := emotion.Emotion(label)
	if confidence < threshold {
		e = emotion.Neutral
	}
	if !character.EnabledEmotions.Contains(e) {
		e = character.DefaultEmotion
	}
	return e
}
