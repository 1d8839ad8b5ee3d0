package utils

import (
	"strings"

	"google.golang.org/genai"
)

// ExtractContentText joins the visible text parts of content. Thought parts
// emitted by reasoning models are skipped.
func ExtractContentText(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// NormalizePromptText substitutes the {{char}} and {{user}} placeholders used
// in character fields and unescapes sequences left by JSON-encoded imports.
func NormalizePromptText(text string, charName, userName string) string {
	return strings.NewReplacer(
		"{{char}}", charName,
		"{{user}}", userName,
		"\\r\\n", "\n",
		"\r\n", "\n",
		"\\n", "\n",
		"\\\"", "\"",
	).Replace(text)
}
