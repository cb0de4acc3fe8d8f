package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI answers with a chat completion model of OpenAI or any OpenAI-compatible endpoint, such as
// OpenRouter, selected through the base URL.
type OpenAI struct {
	model        string
	systemPrompt string

	params LLMParameters

	client *goopenai.Client

	logger *slog.Logger
}

// NewOpenAI creates an OpenAI answerer. An empty baseURL uses the official API.
func NewOpenAI(apiKey, baseURL, model, systemPrompt string, params LLMParameters, logger *slog.Logger) OpenAI {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return OpenAI{
		model:        model,
		systemPrompt: systemPrompt,
		params:       params,
		client:       goopenai.NewClientWithConfig(cfg),
		logger:       logger.With(slog.String("module", "openai")),
	}
}

// Answer implements Answerer with a single chat completion.
func (o OpenAI) Answer(ctx context.Context, turns []Turn) (string, error) {
	turns = withSystemPrompt(o.systemPrompt, turns)
	msgs := make([]goopenai.ChatCompletionMessage, len(turns))
	for i, t := range turns {
		msgs[i] = goopenai.ChatCompletionMessage{
			Role:    string(t.Role),
			Content: t.Content,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, o.chatRequest(msgs))
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices found")
	}

	o.logger.Debug("Answer received",
		slog.String("model", o.model),
		slog.String("finishReason", string(resp.Choices[0].FinishReason)),
		slog.Int("totalTokens", resp.Usage.TotalTokens))

	if resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyAnswer
	}
	return resp.Choices[0].Message.Content, nil
}

func (o OpenAI) chatRequest(messages []goopenai.ChatCompletionMessage) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	}

	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}
	if o.params.Stop != nil {
		req.Stop = o.params.Stop
	}
	if o.params.PresencePenalty != nil {
		req.PresencePenalty = *o.params.PresencePenalty
	}
	if o.params.Seed != nil {
		req.Seed = o.params.Seed
	}
	if o.params.FrequencyPenalty != nil {
		req.FrequencyPenalty = *o.params.FrequencyPenalty
	}
	if o.params.LogitBias != nil {
		req.LogitBias = o.params.LogitBias
	}
	if o.params.MaxTokens != nil {
		req.MaxTokens = *o.params.MaxTokens
	}

	return req
}
