package quiz

import "fmt"

const promptTemplate = `You are a professional exam question generator for educational platforms.

Your task is to create exactly %d high-quality multiple-choice questions (MCQs) from the content provided below.

Follow these strict guidelines:
1. Each question must have exactly 4 options.
2. Only one option should be correct.
3. Questions should be aligned to %s difficulty.
4. The output must be strictly in this valid JSON array format:

[
  {
    "question": "Write the question here",
    "options": ["Option A", "Option B", "Option C", "Option D"],
    "correct": "The correct option as it appears in options"
  }
]

Do not include explanations, summaries, or any extra information outside this JSON structure.

---

Content:
%s
`

// BuildPrompt renders the generation prompt. The content is sanitized and
// always placed after the "Content:" delimiter, after every instruction.
func BuildPrompt(text string, s Settings) string {
	return fmt.Sprintf(promptTemplate, s.NumQuestions, s.Difficulty, SanitizeText(text))
}
