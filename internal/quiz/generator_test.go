package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/local/pdfquiz/internal/ai"
	"github.com/local/pdfquiz/internal/limiter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sourceText = strings.Repeat("Photosynthesis is the process by which green plants convert light into chemical energy. ", 4)

type provider struct {
	srv    *httptest.Server
	calls  atomic.Int32
	status int
	reply  string
	delay  time.Duration
	last   map[string]any
}

func newProvider(t *testing.T) *provider {
	t.Helper()
	p := &provider{status: http.StatusOK}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.calls.Add(1)
		_ = json.NewDecoder(r.Body).Decode(&p.last)
		if p.delay > 0 {
			select {
			case <-time.After(p.delay):
			case <-r.Context().Done():
				return
			}
		}
		if p.status != http.StatusOK {
			w.WriteHeader(p.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"error"}}`))
			return
		}
		body, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": p.reply}}},
		})
		_, _ = w.Write(body)
	}))
	t.Cleanup(p.srv.Close)
	return p
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newGen(p *provider, key string, lim *limiter.SlidingWindow, timeout time.Duration) *Generator {
	client := ai.NewOpenAIClient(ai.OpenAIOptions{BaseURL: p.srv.URL, APIKey: func() string { return key }})
	return NewGenerator(client, lim, GeneratorOptions{
		APIKey:    func() string { return key },
		KeyPrefix: DefaultKeyPrefix,
		Timeout:   timeout,
	})
}

func quizReply(t *testing.T, n int) string {
	qs := make([]map[string]any, n)
	for i := range qs {
		qs[i] = question("Q?", "B", "A", "B", "C", "D")
	}
	return "Here you go:\n" + mustJSON(t, qs)
}

func TestGenerate_HappyPath(t *testing.T) {
	p := newProvider(t)
	p.reply = quizReply(t, 3)
	g := newGen(p, "gsk_valid", limiter.New(limiter.Options{}), 0)

	qs, err := g.Generate(context.Background(), sourceText, Settings{Difficulty: Medium, NumQuestions: 3})
	require.NoError(t, err)
	assert.Len(t, qs, 3)

	assert.Equal(t, DefaultModel, p.last["model"])
	assert.InDelta(t, 0.7, p.last["temperature"], 0.0001)
	assert.Equal(t, float64(4000), p.last["max_tokens"])
	msgs := p.last["messages"].([]any)
	require.Len(t, msgs, 1)
	content := msgs[0].(map[string]any)["content"].(string)
	assert.Contains(t, content, "aligned to Medium difficulty")
}

func TestGenerate_PreflightOrderAndNoNetwork(t *testing.T) {
	p := newProvider(t)
	lim := limiter.New(limiter.Options{MaxRequests: 1})

	// bad key beats bad settings and bad text
	_, err := newGen(p, "", lim, 0).Generate(context.Background(), "short", Settings{Difficulty: "x"})
	assert.Equal(t, KindConfiguration, KindOf(err))

	// bad settings beat bad text
	_, err = newGen(p, "gsk_ok", lim, 0).Generate(context.Background(), "short", Settings{Difficulty: "x", NumQuestions: 5})
	assert.Equal(t, KindValidation, KindOf(err))
	assert.True(t, strings.HasPrefix(err.Error(), "Invalid Settings: "))

	_, err = newGen(p, "gsk_ok", lim, 0).Generate(context.Background(), "short", Settings{Difficulty: Easy, NumQuestions: 5})
	assert.True(t, strings.HasPrefix(err.Error(), "Content Error: "))

	assert.Equal(t, int32(0), p.calls.Load())
	assert.Equal(t, 0, lim.Pending(), "failed preflight must not consume budget")
}

func TestGenerate_LocalRateLimit(t *testing.T) {
	p := newProvider(t)
	p.reply = quizReply(t, 1)
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	lim := limiter.New(limiter.Options{MaxRequests: 5, Window: time.Minute, Now: clk.now})
	g := newGen(p, "gsk_ok", lim, 0)
	s := Settings{Difficulty: Easy, NumQuestions: 1}

	for i := 0; i < 5; i++ {
		_, err := g.Generate(context.Background(), sourceText, s)
		require.NoError(t, err)
		clk.t = clk.t.Add(time.Second)
	}

	clk.t = clk.t.Add(500 * time.Millisecond)
	_, err := g.Generate(context.Background(), sourceText, s)
	var qe *Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, KindRateLimitExceeded, qe.Kind)
	assert.Equal(t, 54500*time.Millisecond, qe.RetryAfter)
	assert.Equal(t, "Rate limit exceeded. Please wait 55 seconds before trying again.", qe.Message)
	assert.Equal(t, int32(5), p.calls.Load())
}

func TestGenerate_FailedCallStillCountsAgainstBudget(t *testing.T) {
	p := newProvider(t)
	p.status = http.StatusInternalServerError
	lim := limiter.New(limiter.Options{MaxRequests: 2})
	g := newGen(p, "gsk_ok", lim, 0)

	_, err := g.Generate(context.Background(), sourceText, Settings{Difficulty: Easy, NumQuestions: 1})
	assert.Equal(t, KindProviderUnavailable, KindOf(err))
	assert.Equal(t, 1, lim.Pending())
}

func TestGenerate_ProviderStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
		msg    string
	}{
		{http.StatusTooManyRequests, KindProviderRateLimited, MsgProviderRateLimited},
		{http.StatusUnauthorized, KindInvalidCredential, MsgInvalidCredential},
		{http.StatusInternalServerError, KindProviderUnavailable, MsgProviderUnavailable},
		{http.StatusServiceUnavailable, KindProviderUnavailable, MsgProviderUnavailable},
	}
	for _, tc := range cases {
		p := newProvider(t)
		p.status = tc.status
		_, err := newGen(p, "gsk_ok", nil, 0).Generate(context.Background(), sourceText, Settings{Difficulty: Hard, NumQuestions: 2})
		var qe *Error
		require.ErrorAs(t, err, &qe, "status %d", tc.status)
		assert.Equal(t, tc.kind, qe.Kind, "status %d", tc.status)
		assert.Equal(t, tc.msg, qe.Message)
		assert.Equal(t, int32(1), p.calls.Load(), "no retries")
	}
}

func TestGenerate_OtherStatusIsUnknown(t *testing.T) {
	p := newProvider(t)
	p.status = http.StatusBadRequest
	_, err := newGen(p, "gsk_ok", nil, 0).Generate(context.Background(), sourceText, Settings{Difficulty: Hard, NumQuestions: 2})
	var qe *Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, KindUnknown, qe.Kind)
	assert.True(t, strings.HasPrefix(qe.Message, "Quiz generation failed: "))
}

func TestGenerate_Timeout(t *testing.T) {
	p := newProvider(t)
	p.delay = 2 * time.Second
	_, err := newGen(p, "gsk_ok", nil, 50*time.Millisecond).Generate(context.Background(), sourceText, Settings{Difficulty: Easy, NumQuestions: 1})
	var qe *Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, KindTimeout, qe.Kind)
	assert.Equal(t, MsgTimeout, qe.Message)
}

func TestGenerate_MalformedResponses(t *testing.T) {
	cases := map[string]string{
		"empty content": "",
		"no array":      "I cannot do that.",
		"broken json":   `[{"question": "x", "options": [}]`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			p := newProvider(t)
			p.reply = reply
			_, err := newGen(p, "gsk_ok", nil, 0).Generate(context.Background(), sourceText, Settings{Difficulty: Easy, NumQuestions: 1})
			assert.Equal(t, KindMalformedResponse, KindOf(err))
		})
	}
}

func TestGenerate_InvalidQuizContent(t *testing.T) {
	p := newProvider(t)
	p.reply = mustJSON(t, []map[string]any{question("Q", "E", "A", "B", "C", "D")})
	_, err := newGen(p, "gsk_ok", nil, 0).Generate(context.Background(), sourceText, Settings{Difficulty: Easy, NumQuestions: 1})
	var qe *Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, KindInvalidQuizContent, qe.Kind)
	assert.Equal(t, "Generated Quiz Error: Question 1: Invalid or missing correct answer", qe.Message)
}

func TestClassifyProviderError(t *testing.T) {
	assert.Nil(t, classifyProviderError(nil))
	assert.Equal(t, KindTimeout, classifyProviderError(context.Canceled).Kind)
	assert.Equal(t, KindMalformedResponse, classifyProviderError(ai.ErrNoContent).Kind)
	assert.Equal(t, KindUnknown, classifyProviderError(errors.New("dial tcp: connection refused")).Kind)

	pre := &Error{Kind: KindValidation, Message: "m"}
	assert.Same(t, pre, classifyProviderError(pre))
}

func TestCheckRequest_CredentialBeforeSettings(t *testing.T) {
	p := newProvider(t)
	bad := Settings{Difficulty: "Expert", NumQuestions: 0}

	err := newGen(p, "", nil, 0).CheckRequest(bad)
	assert.Equal(t, KindConfiguration, KindOf(err))

	err = newGen(p, "sk-wrong", nil, 0).CheckRequest(Settings{Difficulty: Easy, NumQuestions: 5})
	assert.Equal(t, KindConfiguration, KindOf(err))

	err = newGen(p, "gsk_valid", nil, 0).CheckRequest(bad)
	assert.Equal(t, KindValidation, KindOf(err))

	assert.NoError(t, newGen(p, "gsk_valid", nil, 0).CheckRequest(Settings{Difficulty: Hard, NumQuestions: 20}))
	assert.Zero(t, p.calls.Load())
}

func TestGenerate_ExplicitZeroTemperatureIsKept(t *testing.T) {
	p := newProvider(t)
	p.reply = quizReply(t, 1)
	zero := float32(0)
	client := ai.NewOpenAIClient(ai.OpenAIOptions{BaseURL: p.srv.URL, APIKey: func() string { return "gsk_valid" }})
	g := NewGenerator(client, nil, GeneratorOptions{
		APIKey:      func() string { return "gsk_valid" },
		KeyPrefix:   DefaultKeyPrefix,
		Temperature: &zero,
	})

	_, err := g.Generate(context.Background(), sourceText, Settings{Difficulty: Easy, NumQuestions: 1})
	require.NoError(t, err)
	require.Contains(t, p.last, "temperature")
	assert.InDelta(t, 0, p.last["temperature"], 0.0001)
}
