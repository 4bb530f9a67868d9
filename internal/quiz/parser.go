package quiz

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RawQuestion is a question exactly as the model produced it.
type RawQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Correct  string   `json:"correct"`

	// Explanation is optional; the prompt does not ask for one.
	Explanation string `json:"explanation,omitempty"`
}

// ExtractJSONArray returns the span from the first '[' to the last ']'.
// Prose containing brackets can defeat this; ParseResponse falls back to
// balancedArrays when the greedy span does not parse.
func ExtractJSONArray(content string) (string, bool) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < start {
		return "", false
	}
	return content[start : end+1], true
}

// balancedArrays yields every bracket-balanced span starting at a '[',
// skipping brackets inside JSON strings.
func balancedArrays(content string) []string {
	var out []string
	for i := 0; i < len(content); i++ {
		if content[i] != '[' {
			continue
		}
		if end := matchBracket(content, i); end > 0 {
			out = append(out, content[i:end+1])
		}
	}
	return out
}

func matchBracket(s string, start int) int {
	depth := 0
	inStr, esc := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ParseResponse extracts, decodes and validates the model's answer.
func ParseResponse(content string) ([]RawQuestion, error) {
	span, ok := ExtractJSONArray(content)
	if !ok {
		return nil, malformedError(MsgNoJSON, nil)
	}

	items, err := decodeArray(span)
	if err != nil {
		for _, cand := range balancedArrays(content) {
			if alt, altErr := decodeArray(cand); altErr == nil && looksLikeQuestions(alt) {
				items, err = alt, nil
				break
			}
		}
	}
	if err != nil {
		return nil, malformedError(MsgNoJSON, fmt.Errorf("decode quiz json: %w", err))
	}

	return ValidateQuestions(items)
}

func decodeArray(span string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(span), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// looksLikeQuestions rejects fallback candidates such as an options array
// nested inside a question or an empty [] in the surrounding prose.
func looksLikeQuestions(items []json.RawMessage) bool {
	if len(items) == 0 {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal(items[0], &obj) == nil
}

// ValidateQuestions checks every item and reports all defects at once.
func ValidateQuestions(items []json.RawMessage) ([]RawQuestion, error) {
	if len(items) == 0 {
		return nil, invalidContentError([]string{msgNoQuestions}, ErrNoQuestions)
	}

	var details []string
	out := make([]RawQuestion, 0, len(items))
	for i, item := range items {
		q, problems := validateOne(item)
		for _, p := range problems {
			details = append(details, fmt.Sprintf("Question %d: %s", i+1, p))
		}
		out = append(out, q)
	}
	if len(details) > 0 {
		return nil, invalidContentError(details, nil)
	}
	return out, nil
}

func validateOne(item json.RawMessage) (RawQuestion, []string) {
	var raw struct {
		Question    any `json:"question"`
		Options     any `json:"options"`
		Correct     any `json:"correct"`
		Explanation any `json:"explanation"`
	}
	if err := json.Unmarshal(item, &raw); err != nil {
		return RawQuestion{}, []string{"Missing or invalid question text", "Must have exactly 4 options", "Invalid or missing correct answer"}
	}

	var q RawQuestion
	var problems []string

	if s, ok := raw.Question.(string); ok && s != "" {
		q.Question = s
	} else {
		problems = append(problems, "Missing or invalid question text")
	}

	opts, optsOK := toStrings(raw.Options)
	if !optsOK || len(opts) != 4 {
		problems = append(problems, "Must have exactly 4 options")
	}
	q.Options = opts

	correct, _ := raw.Correct.(string)
	if correct == "" || !contains(opts, correct) {
		problems = append(problems, "Invalid or missing correct answer")
	}
	q.Correct = correct
	q.Explanation, _ = raw.Explanation.(string)

	if hasDuplicates(opts) {
		problems = append(problems, "Contains duplicate answer options")
	}
	return q, problems
}

// toStrings accepts only an array whose elements are all strings.
func toStrings(v any) ([]string, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func hasDuplicates(list []string) bool {
	seen := make(map[string]struct{}, len(list))
	for _, v := range list {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
