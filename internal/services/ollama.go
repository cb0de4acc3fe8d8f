package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// Ollama answers with a model served by an Ollama instance.
type Ollama struct {
	model        string
	systemPrompt string
	params       LLMParameters

	client *api.Client
	logger *slog.Logger
}

// NewOllama creates an Ollama answerer for the server at host. It returns an error if host is not
// a valid URL.
func NewOllama(host, model, systemPrompt string, params LLMParameters, logger *slog.Logger) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return Ollama{
		model:        model,
		systemPrompt: systemPrompt,
		params:       params,
		client:       api.NewClient(u, &http.Client{}),
		logger:       logger.With(slog.String("module", "ollama")),
	}, nil
}

// Answer implements Answerer with a single non-streaming chat request.
func (o Ollama) Answer(ctx context.Context, turns []Turn) (string, error) {
	turns = withSystemPrompt(o.systemPrompt, turns)
	msgs := make([]api.Message, len(turns))
	for i, t := range turns {
		msgs[i] = api.Message{
			Role:    string(t.Role),
			Content: t.Content,
		}
	}

	stream := false
	req := api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   &stream,
		Options:  o.options(),
	}

	var answer strings.Builder
	if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
		answer.WriteString(res.Message.Content)
		return nil
	}); err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	o.logger.Debug("Answer received", slog.String("model", o.model), slog.Int("length", answer.Len()))
	if answer.Len() == 0 {
		return "", ErrEmptyAnswer
	}
	return answer.String(), nil
}

func (o Ollama) options() map[string]any {
	opts := map[string]any{}
	if o.params.Temperature != nil {
		opts["temperature"] = *o.params.Temperature
	}
	if o.params.TopP != nil {
		opts["top_p"] = *o.params.TopP
	}
	if o.params.Stop != nil {
		opts["stop"] = o.params.Stop
	}
	if o.params.PresencePenalty != nil {
		opts["presence_penalty"] = *o.params.PresencePenalty
	}
	if o.params.FrequencyPenalty != nil {
		opts["frequency_penalty"] = *o.params.FrequencyPenalty
	}
	if o.params.Seed != nil {
		opts["seed"] = *o.params.Seed
	}
	if o.params.MaxTokens != nil {
		opts["num_predict"] = *o.params.MaxTokens
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}
