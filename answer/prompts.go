package answer

import (
	"fmt"
	"strings"
)

// SystemPrompt frames the chat model as a team-history assistant.
const SystemPrompt = `You are an assistant that answers technical questions using the team's past Slack conversations.
Answer concisely and accurately. If the conversations do not contain the answer, say so.`

// FormatContext labels each chunk as "[chunk i]" (1-based) and joins them
// with blank lines.
func FormatContext(chunks []string) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("[chunk %d]\n%s", i+1, c)
	}
	return strings.Join(parts, "\n\n")
}

func buildPrompt(question string, chunks []string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", FormatContext(chunks), question)
}
