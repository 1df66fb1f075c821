package service

import "strings"

// Questions are the guided journaling prompts answered in AI mode.
var Questions = []string{
	"How am I feeling right now?",
	"What was the best part of my day?",
	"What obstacles did I face, and how did I respond (or how might I respond next time)?",
	"List three things I’m grateful for today, and why.",
	"What did I learn today—about myself, others, or the world?",
	"How did I take care of my needs (physical, mental, social) today?",
	"Who made a positive impact on my day (even in a small way)?",
	"What frustrated or stressed me today, and what helped me cope?",
	"What surprised me or felt unexpected, and how did it affect me?",
	"What’s one intention or hope I have for tomorrow?",
}

const promptHeader = `You are my personal journaling assistant. Do NOT include any headings or commentary, only output the text.

1) Write a 2 sentence highlight in the user's voice.
2) Then compose a cohesive 300-350 word journal entry in their voice.

`

// RawBlock pairs each question with its answer, separated by blank lines.
// Answers beyond the question list are ignored.
func RawBlock(answers []string) string {
	var b strings.Builder
	for i, q := range Questions {
		if i >= len(answers) {
			break
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(q)
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(answers[i]))
	}
	return b.String()
}

// Prompt builds the generation prompt for a raw question/answer block.
func Prompt(raw string) string {
	return promptHeader + raw
}
