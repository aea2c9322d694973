// Package completion talks to the text-generation service.
//
// The rest of the application only sees the Client interface: a prompt goes
// in, generated text (or an error) comes out.  OpenAIClient is the
// production implementation on top of the OpenAI chat completions API.
// Calls are not retried and not streamed.
package completion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = openai.GPT4oMini

var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("completion API key not configured")

	// ErrCompletionFailed wraps every transport, quota or model error.
	ErrCompletionFailed = errors.New("completion failed")

	// ErrEmptyCompletion is returned when the API answers without any choice.
	ErrEmptyCompletion = errors.New("completion returned no choices")
)

// Client sends a prompt and returns the generated text.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ClientFunc adapts an ordinary function to the Client interface.
type ClientFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f(ctx, prompt).
func (f ClientFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Options configure an OpenAIClient.
type Options struct {
	APIKey      string
	Model       string
	BaseURL     string        // empty means the public OpenAI endpoint
	Temperature float32       // 0 asks for deterministic output
	Timeout     time.Duration // per call; zero means no deadline besides ctx
	HTTPClient  *http.Client
	Logger      log.FieldLogger
}

// OpenAIClient is a Client backed by github.com/sashabaranov/go-openai.
type OpenAIClient struct {
	api         *openai.Client
	configured  bool
	model       string
	temperature float32
	timeout     time.Duration
	log         log.FieldLogger
}

// NewOpenAIClient builds a client from opts.  An empty API key still yields
// a client, but every Complete call fails with ErrNotConfigured.
func NewOpenAIClient(opts Options) *OpenAIClient {
	key := strings.TrimSpace(opts.APIKey)
	cfg := openai.DefaultConfig(key)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &OpenAIClient{
		api:         openai.NewClientWithConfig(cfg),
		configured:  key != "",
		model:       model,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
		log:         logger.WithField("component", "completion"),
	}
}

// Model returns the chat model requests are sent to.
func (c *OpenAIClient) Model() string { return c.model }

// Complete sends prompt as a single user message and returns the content of
// the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.configured {
		return "", ErrNotConfigured
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	temp := c.temperature
	if temp == 0 {
		// go-openai drops a zero temperature (omitempty), which the API
		// would read as its default of 1.
		temp = math.SmallestNonzeroFloat32
	}
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temp,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		c.log.WithFields(log.Fields{"model": c.model, "duration": elapsed, "status": statusOf(err)}).
			WithError(err).Warn("completion request failed")
		return "", fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %w", ErrCompletionFailed, ErrEmptyCompletion)
	}
	c.log.WithFields(log.Fields{
		"model":             resp.Model,
		"duration":          elapsed,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	}).Debug("completion received")
	return resp.Choices[0].Message.Content, nil
}

// statusOf extracts the HTTP status from an API error, 0 when there is none.
func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
