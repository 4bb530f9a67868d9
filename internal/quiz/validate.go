package quiz

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

const (
	MinQuestions = 1
	MaxQuestions = 20

	MinTextChars = 100
	MaxTextChars = 50000

	DefaultKeyPrefix = "gsk_"
)

// Settings are the user's quiz parameters.
type Settings struct {
	Difficulty   Difficulty `json:"difficulty"`
	NumQuestions int        `json:"num_questions"`
}

// ParseDifficulty accepts the canonical names case-insensitively.
func ParseDifficulty(s string) (Difficulty, bool) {
	for _, d := range []Difficulty{Easy, Medium, Hard} {
		if strings.EqualFold(strings.TrimSpace(s), string(d)) {
			return d, true
		}
	}
	return Difficulty(s), false
}

// ValidateSettings checks difficulty and question count.
func ValidateSettings(s Settings) error {
	var details []string
	switch s.Difficulty {
	case Easy, Medium, Hard:
	default:
		details = append(details, "Please select a valid difficulty level")
	}
	if s.NumQuestions < MinQuestions || s.NumQuestions > MaxQuestions {
		details = append(details, fmt.Sprintf("Number of questions must be between %d and %d", MinQuestions, MaxQuestions))
	}
	if len(details) > 0 {
		return settingsError(details)
	}
	return nil
}

// ValidateCredential checks the API key shape. An empty prefix disables the prefix check.
func ValidateCredential(key, prefix string) error {
	if key == "" {
		return configurationError([]string{"API key is required"})
	}
	var details []string
	if strings.TrimSpace(key) == "" {
		details = append(details, "API key cannot be empty")
	}
	if prefix != "" && !strings.HasPrefix(key, prefix) {
		details = append(details, "Invalid API key format")
	}
	if len(details) > 0 {
		return configurationError(details)
	}
	return nil
}

// ValidateText checks the extracted text length, counted in characters after trimming.
func ValidateText(text string) error {
	trimmed := strings.TrimSpace(text)
	n := utf8.RuneCountInString(trimmed)
	var details []string
	if n == 0 {
		details = append(details, "No readable text found in the PDF")
	}
	if n < MinTextChars {
		details = append(details, "PDF content is too short to generate meaningful questions")
	}
	if n > MaxTextChars {
		details = append(details, "PDF content is too long. Please use a shorter document.")
	}
	if len(details) > 0 {
		return contentError(details)
	}
	return nil
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// SanitizeText trims and removes angle brackets.
func SanitizeText(s string) string {
	return strings.NewReplacer("<", "", ">", "").Replace(strings.TrimSpace(s))
}

var (
	unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9.-]`)
	repeatedUnder  = regexp.MustCompile(`_{2,}`)
)

// SanitizeFilename keeps a display-safe file name of at most 100 bytes.
func SanitizeFilename(name string) string {
	if name == "" {
		return "untitled"
	}
	name = unsafeFilename.ReplaceAllString(name, "_")
	name = repeatedUnder.ReplaceAllString(name, "_")
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}
