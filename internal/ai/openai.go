package ai

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "strings"

    "github.com/rs/zerolog/log"
    openai "github.com/sashabaranov/go-openai"
)

const DefaultBaseURL = "https://api.groq.com/openai/v1"

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint.
// The credential is read on every call so a rotated key takes effect
// without rebuilding the client.
type OpenAIClient struct {
    name    string
    baseURL string
    apiKey  func() string
    http    *http.Client
}

type OpenAIOptions struct {
    Name       string // provider label used in logs, metrics and errors
    BaseURL    string
    APIKey     func() string
    HTTPClient *http.Client
}

func NewOpenAIClient(opts OpenAIOptions) *OpenAIClient {
    if opts.Name == "" { opts.Name = "groq" }
    if opts.BaseURL == "" { opts.BaseURL = DefaultBaseURL }
    if opts.APIKey == nil { opts.APIKey = func() string { return "" } }
    if opts.HTTPClient == nil { opts.HTTPClient = &http.Client{} }
    return &OpenAIClient{
        name:    opts.Name,
        baseURL: strings.TrimRight(opts.BaseURL, "/"),
        apiKey:  opts.APIKey,
        http:    opts.HTTPClient,
    }
}

func (c *OpenAIClient) Name() string { return c.name }

func (c *OpenAIClient) client() *openai.Client {
    cfg := openai.DefaultConfig(c.apiKey())
    cfg.BaseURL = c.baseURL
    cfg.HTTPClient = c.http
    return openai.NewClientWithConfig(cfg)
}

func (c *OpenAIClient) Do(ctx context.Context, req Request) (Response, error) {
    if req.Timeout > 0 {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, req.Timeout)
        defer cancel()
    }

    var messages []openai.ChatCompletionMessage
    if req.SystemPrompt != "" {
        messages = append(messages, openai.ChatCompletionMessage{
            Role:    openai.ChatMessageRoleSystem,
            Content: req.SystemPrompt,
        })
    }

    user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
    if req.ImageBase64 != "" {
        mime := req.ImageMIME
        if mime == "" { mime = "image/jpeg" }
        user.MultiContent = []openai.ChatMessagePart{
            {
                Type: openai.ChatMessagePartTypeImageURL,
                ImageURL: &openai.ChatMessageImageURL{
                    URL:    fmt.Sprintf("data:%s;base64,%s", mime, req.ImageBase64),
                    Detail: openai.ImageURLDetailAuto,
                },
            },
            {Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
        }
    } else {
        user.Content = req.Prompt
    }
    messages = append(messages, user)

    resp, err := c.client().CreateChatCompletion(ctx, openai.ChatCompletionRequest{
        Model:       req.Model,
        Messages:    messages,
        Temperature: wireTemperature(req.Temperature),
        MaxTokens:   req.MaxTokens,
    })
    if err != nil {
        return Response{}, c.normalize(err)
    }
    if len(resp.Choices) == 0 {
        return Response{}, fmt.Errorf("%s: no choices: %w", c.name, ErrNoContent)
    }
    text := resp.Choices[0].Message.Content
    if strings.TrimSpace(text) == "" {
        return Response{}, fmt.Errorf("%s: empty message: %w", c.name, ErrNoContent)
    }

    log.Debug().
        Str("provider", c.name).
        Str("model", req.Model).
        Int("tokens_in", resp.Usage.PromptTokens).
        Int("tokens_out", resp.Usage.CompletionTokens).
        Msg("chat completion done")

    return Response{
        Text:      text,
        TokensIn:  resp.Usage.PromptTokens,
        TokensOut: resp.Usage.CompletionTokens,
    }, nil
}

// go-openai omits a zero temperature from the request body, which leaves the
// provider default in force. Send the smallest value providers treat as greedy.
const greedyTemperature = 1e-8

func wireTemperature(t float32) float32 {
    if t <= 0 {
        return greedyTemperature
    }
    return t
}

// Ping lists models; used by the status endpoint to check reachability and credentials.
func (c *OpenAIClient) Ping(ctx context.Context) error {
    if _, err := c.client().ListModels(ctx); err != nil {
        return c.normalize(err)
    }
    return nil
}

// normalize maps go-openai errors onto HTTPError. Transport and context
// errors pass through unchanged so callers can test them with errors.Is.
func (c *OpenAIClient) normalize(err error) error {
    var apiErr *openai.APIError
    if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
        return &HTTPError{Provider: c.name, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
    }
    var reqErr *openai.RequestError
    if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
        msg := ""
        if reqErr.Err != nil { msg = reqErr.Err.Error() }
        return &HTTPError{Provider: c.name, StatusCode: reqErr.HTTPStatusCode, Message: msg}
    }
    return err
}
