package quiz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCredential(t *testing.T) {
	require.NoError(t, ValidateCredential("gsk_abc", "gsk_"))
	require.NoError(t, ValidateCredential("sk-anything", ""))

	err := ValidateCredential("", "gsk_")
	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.Equal(t, "API Configuration Error: API key is required", err.Error())

	err = ValidateCredential("sk-openai", "gsk_")
	assert.Equal(t, "API Configuration Error: Invalid API key format", err.Error())

	err = ValidateCredential("   ", "gsk_")
	assert.Equal(t, "API Configuration Error: API key cannot be empty, Invalid API key format", err.Error())
}

func TestValidateSettings(t *testing.T) {
	for _, d := range []Difficulty{Easy, Medium, Hard} {
		assert.NoError(t, ValidateSettings(Settings{Difficulty: d, NumQuestions: 1}))
		assert.NoError(t, ValidateSettings(Settings{Difficulty: d, NumQuestions: 20}))
	}

	err := ValidateSettings(Settings{Difficulty: "Expert", NumQuestions: 21})
	var qe *Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, KindValidation, qe.Kind)
	assert.Equal(t, []string{"Please select a valid difficulty level", "Number of questions must be between 1 and 20"}, qe.Details)
	assert.True(t, strings.HasPrefix(qe.Message, "Invalid Settings: "))

	assert.Error(t, ValidateSettings(Settings{Difficulty: Easy, NumQuestions: 0}))
	assert.Error(t, ValidateSettings(Settings{Difficulty: "easy", NumQuestions: 5}))
}

func TestParseDifficulty(t *testing.T) {
	d, ok := ParseDifficulty(" hard ")
	assert.True(t, ok)
	assert.Equal(t, Hard, d)
	_, ok = ParseDifficulty("nightmare")
	assert.False(t, ok)
}

func TestValidateText_Bounds(t *testing.T) {
	assert.NoError(t, ValidateText("  "+strings.Repeat("a", 100)+"\n"))
	assert.NoError(t, ValidateText(strings.Repeat("a", 50000)))
	// counted in characters, not bytes
	assert.NoError(t, ValidateText(strings.Repeat("ü", 100)))

	err := ValidateText(strings.Repeat("a", 99))
	assert.Equal(t, "Content Error: PDF content is too short to generate meaningful questions", err.Error())

	err = ValidateText(strings.Repeat("a", 50001))
	assert.Equal(t, "Content Error: PDF content is too long. Please use a shorter document.", err.Error())

	err = ValidateText(" \n\t ")
	var qe *Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, KindValidation, qe.Kind)
	assert.Contains(t, qe.Details, "No readable text found in the PDF")
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "script alert(1)/script", SanitizeText("  <script>alert(1)</script> "))
	assert.Equal(t, "", SanitizeText("<>"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "my_notes_ch.1_.pdf", SanitizeFilename("my notes (ch.1).pdf"))
	assert.Equal(t, "a_b.pdf", SanitizeFilename("a   b.pdf"))
	assert.Equal(t, "untitled", SanitizeFilename(""))
	assert.Len(t, SanitizeFilename(strings.Repeat("x", 300)), 100)
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 4, WordCount("  one two\nthree\tfour "))
}
