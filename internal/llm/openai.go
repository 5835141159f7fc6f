package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/mattt/weather-mcp/adapter"
)

// Defaults for the GitHub Models endpoint.
const (
	DefaultBaseURL      = "https://models.inference.ai.azure.com"
	DefaultModel        = "gpt-4o"
	DefaultSystemPrompt = "You are a helpful assistant"
)

// OpenAI is a Completer backed by an OpenAI-compatible chat completions API.
type OpenAI struct {
	client       openai.Client
	model        string
	systemPrompt string
	temperature  float64
	maxTokens    int64
	topP         float64
	logger       *slog.Logger
}

type openAIConfig struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retries    int
}

// OpenAIOption configures an OpenAI completer
type OpenAIOption func(*OpenAI, *openAIConfig)

// WithBaseURL sets the chat completions endpoint
func WithBaseURL(baseURL string) OpenAIOption {
	return func(_ *OpenAI, c *openAIConfig) {
		c.baseURL = baseURL
	}
}

// WithAPIKey sets the bearer token sent to the endpoint
func WithAPIKey(key string) OpenAIOption {
	return func(_ *OpenAI, c *openAIConfig) {
		c.apiKey = key
	}
}

// WithHTTPClient sets the HTTP client used for requests
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(_ *OpenAI, c *openAIConfig) {
		c.httpClient = client
	}
}

// WithMaxRetries sets how many times a failed request is retried
func WithMaxRetries(n int) OpenAIOption {
	return func(_ *OpenAI, c *openAIConfig) {
		c.retries = n
	}
}

// WithModel sets the model name
func WithModel(model string) OpenAIOption {
	return func(o *OpenAI, _ *openAIConfig) {
		o.model = model
	}
}

// WithSystemPrompt replaces the default system message
func WithSystemPrompt(prompt string) OpenAIOption {
	return func(o *OpenAI, _ *openAIConfig) {
		o.systemPrompt = prompt
	}
}

// WithLogger sets the logger for the completer
func WithLogger(logger *slog.Logger) OpenAIOption {
	return func(o *OpenAI, _ *openAIConfig) {
		o.logger = logger
	}
}

// NewOpenAI creates a completer. An API key is required.
func NewOpenAI(opts ...OpenAIOption) (*OpenAI, error) {
	o := &OpenAI{
		model:        DefaultModel,
		systemPrompt: DefaultSystemPrompt,
		temperature:  1.0,
		maxTokens:    1000,
		topP:         1.0,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	cfg := &openAIConfig{baseURL: DefaultBaseURL, retries: 2}
	for _, opt := range opts {
		opt(o, cfg)
	}

	if cfg.apiKey == "" {
		return nil, fmt.Errorf("no model API key provided")
	}

	requestOpts := []option.RequestOption{
		option.WithBaseURL(cfg.baseURL),
		option.WithAPIKey(cfg.apiKey),
		option.WithMaxRetries(cfg.retries),
	}
	if cfg.httpClient != nil {
		requestOpts = append(requestOpts, option.WithHTTPClient(cfg.httpClient))
	}
	o.client = openai.NewClient(requestOpts...)

	return o, nil
}

var _ Completer = (*OpenAI)(nil)

// Select sends prompt with tools attached and returns the calls the model
// chose. A response with no tool calls is not an error.
func (o *OpenAI) Select(ctx context.Context, prompt string, tools []adapter.ExternalTool) (*Selection, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(o.systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(o.temperature),
		MaxTokens:   openai.Int(o.maxTokens),
		TopP:        openai.Float(o.topP),
	}
	for _, tool := range tools {
		param, err := tool.OpenAI()
		if err != nil {
			return nil, err
		}
		params.Tools = append(params.Tools, param)
	}

	o.logger.Debug("requesting completion", "model", o.model, "tools", len(tools))

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("error requesting completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	message := completion.Choices[0].Message
	selection := &Selection{Content: message.Content}
	for _, call := range message.ToolCalls {
		selection.Calls = append(selection.Calls, adapter.ExternalCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	o.logger.Debug("completion received", "calls", len(selection.Calls))
	return selection, nil
}
