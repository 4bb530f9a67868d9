package quiz

import (
	"fmt"
	"math"
	"time"
)

const (
	DefaultPassPercent = 60
	DefaultTimeLimit   = 10 * time.Minute
)

// QuestionResult is one row of a result breakdown.
type QuestionResult struct {
	Question      string `json:"question"`
	YourAnswer    string `json:"yourAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
}

// Result is the outcome of a submitted attempt.
type Result struct {
	Correct    int              `json:"correct"`
	Total      int              `json:"total"`
	Score      string           `json:"score"`
	Percentage int              `json:"percentage"`
	Passed     bool             `json:"passed"`
	Message    string           `json:"message"`
	TimedOut   bool             `json:"timed_out"`
	Questions  []QuestionResult `json:"questions"`
}

// Scorer grades answers. Answers are option indexes; nil means unanswered.
type Scorer struct {
	PassPercent int
	TimeLimit   time.Duration
}

func NewScorer(passPercent int, limit time.Duration) Scorer {
	if passPercent <= 0 {
		passPercent = DefaultPassPercent
	}
	if limit <= 0 {
		limit = DefaultTimeLimit
	}
	return Scorer{PassPercent: passPercent, TimeLimit: limit}
}

// Deadline returns when an attempt started at startedAt runs out of time.
func (s Scorer) Deadline(startedAt time.Time) time.Time { return startedAt.Add(s.TimeLimit) }

// Score grades answers against questions. A submission after the deadline is
// still graded and flagged TimedOut; a zero startedAt disables the check.
func (s Scorer) Score(questions []Question, answers []*int, startedAt, submittedAt time.Time) Result {
	r := Result{Total: len(questions), Questions: make([]QuestionResult, 0, len(questions))}
	for i, q := range questions {
		var ans *int
		if i < len(answers) {
			ans = answers[i]
		}
		row := QuestionResult{Question: q.Question, YourAnswer: "Not answered"}
		if q.CorrectAnswer >= 0 && q.CorrectAnswer < len(q.Options) {
			row.CorrectAnswer = q.Options[q.CorrectAnswer]
		}
		if ans != nil && *ans >= 0 && *ans < len(q.Options) {
			row.YourAnswer = q.Options[*ans]
			row.IsCorrect = *ans == q.CorrectAnswer
		}
		if row.IsCorrect {
			r.Correct++
		}
		r.Questions = append(r.Questions, row)
	}

	if r.Total > 0 {
		r.Percentage = int(math.Round(float64(r.Correct) / float64(r.Total) * 100))
	}
	r.Score = fmt.Sprintf("%d/%d", r.Correct, r.Total)
	r.Passed = r.Percentage >= s.PassPercent
	r.Message = PerformanceMessage(r.Percentage)
	if !startedAt.IsZero() && submittedAt.After(s.Deadline(startedAt)) {
		r.TimedOut = true
	}
	return r
}

// PerformanceMessage returns the banner for a percentage.
func PerformanceMessage(percentage int) string {
	switch {
	case percentage >= 90:
		return "Outstanding!"
	case percentage >= 80:
		return "Excellent work!"
	case percentage >= 70:
		return "Good job!"
	case percentage >= 60:
		return "Well done!"
	default:
		return "Keep practicing!"
	}
}
