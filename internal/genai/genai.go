// Package genai composes friendly alarm notification messages using the
// OpenAI API.
//
// The composer is optional: without an API key, or whenever the API call
// fails, it falls back to a deterministic template so an alarm message is
// always produced.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/doughlab/DoughPilot/internal/recipe"
)

const systemPrompt = "You are a concise kitchen assistant. Given the next step of a " +
	"recipe the user is following, write one short, friendly sentence telling them " +
	"it is time for that step. No emojis, no preamble."

// composeTimeout bounds the API call so an alarm is never delayed by a slow
// completion.
const composeTimeout = 10 * time.Second

// Opts holds configuration options for the composer.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the composer.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// Composer produces the notification text for a fired alarm.
type Composer struct {
	client  openai.Client
	model   string
	enabled bool
}

// NewComposer creates a composer. With no API key configured the composer
// is still usable and always returns the template message.
func NewComposer(opts ...Option) *Composer {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	if cfg.APIKey == "" {
		slog.Debug("GenAI composer disabled, using template messages")
		return &Composer{model: cfg.Model}
	}
	return &Composer{
		client:  openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   cfg.Model,
		enabled: true,
	}
}

// ComposeAlarmTitle returns the notification title for a step alert.
func ComposeAlarmTitle(step recipe.Step) string {
	return fmt.Sprintf("Time for: %s", step.Title)
}

// ComposeAlarmBody returns the notification body for a step alert. When the
// API is configured it asks for a friendlier phrasing; on any failure it
// falls back to the step description.
func (c *Composer) ComposeAlarmBody(ctx context.Context, recipeName string, step recipe.Step) string {
	fallback := step.Description

	if !c.enabled {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, composeTimeout)
	defer cancel()

	user := fmt.Sprintf("Recipe: %s\nStep: %s\nInstructions: %s", recipeName, step.Title, step.Description)
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		slog.Warn("GenAI compose failed, using template message", "error", err)
		return fallback
	}
	if len(resp.Choices) == 0 {
		slog.Warn("GenAI compose returned no choices, using template message")
		return fallback
	}
	body := strings.TrimSpace(resp.Choices[0].Message.Content)
	if body == "" {
		return fallback
	}
	return body
}
