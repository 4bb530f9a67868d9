package quiz

import (
	"fmt"
	"strings"
)

// Question is the display model: the correct option is referenced by index.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// Transform maps each validated question's correct string to an option index,
// trying an exact match and then a case-insensitive one. A question whose
// answer matches neither is rejected rather than guessed.
func Transform(raw []RawQuestion) ([]Question, error) {
	out := make([]Question, 0, len(raw))
	var details []string
	for i, r := range raw {
		idx := correctIndex(r.Options, r.Correct)
		if idx < 0 {
			details = append(details, fmt.Sprintf("Question %d: Correct answer %q does not match any option", i+1, r.Correct))
			continue
		}
		opts := make([]string, len(r.Options))
		copy(opts, r.Options)
		out = append(out, Question{
			Question:      r.Question,
			Options:       opts,
			CorrectAnswer: idx,
			Explanation:   r.Explanation,
		})
	}
	if len(details) > 0 {
		return nil, invalidContentError(details, nil)
	}
	return out, nil
}

func correctIndex(options []string, correct string) int {
	for i, o := range options {
		if o == correct {
			return i
		}
	}
	for i, o := range options {
		if strings.EqualFold(o, correct) {
			return i
		}
	}
	return -1
}
