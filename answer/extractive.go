package answer

import (
	"slices"
	"strings"
)

// NoRelevantContent is returned by the extractive fallback when no line
// shares a word with the question.
const NoRelevantContent = "No relevant content was found in past conversations."

const (
	extractiveHeader = "No language model is available, so here are the most relevant messages from past conversations:\n\n"
	extractiveFooter = "\n\nConfigure a chat backend for a summarised answer."
)

type scoredLine struct {
	text  string
	score int
}

// Extract ranks the lines of context by how many distinct lowercased words
// they share with question and returns up to limit lines with positive
// overlap, highest first. Ties keep their original order.
func Extract(question, context string, limit int) []string {
	qwords := wordSet(question)
	var scored []scoredLine
	for _, line := range strings.Split(context, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		scored = append(scored, scoredLine{text: line, score: overlap(wordSet(line), qwords)})
	}

	slices.SortStableFunc(scored, func(a, b scoredLine) int {
		return b.score - a.score
	})

	var lines []string
	for _, s := range scored {
		if s.score <= 0 || len(lines) == limit {
			break
		}
		lines = append(lines, s.text)
	}
	return lines
}

// Extractive builds the fallback answer from the top lines of context.
func Extractive(question, context string, limit int) string {
	lines := Extract(question, context, limit)
	if len(lines) == 0 {
		return NoRelevantContent
	}
	return extractiveHeader + strings.Join(lines, "\n") + extractiveFooter
}
