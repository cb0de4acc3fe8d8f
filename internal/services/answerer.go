package services

import (
	"context"
	"errors"
)

// Role is the author of a turn sent to a language model.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the history sent to a language model.
type Turn struct {
	Role    Role
	Content string
}

// Answerer produces a single, complete answer for a conversation history.
type Answerer interface {
	Answer(ctx context.Context, turns []Turn) (string, error)
}

// LLMParameters holds optional sampling parameters. Nil fields are left to the provider default.
type LLMParameters struct {
	Temperature      *float32       `yaml:"temperature"`
	TopP             *float32       `yaml:"topP"`
	Stop             []string       `yaml:"stop"`
	PresencePenalty  *float32       `yaml:"presencePenalty"`
	Seed             *int           `yaml:"seed"`
	FrequencyPenalty *float32       `yaml:"frequencyPenalty"`
	LogitBias        map[string]int `yaml:"logitBias"`
	MaxTokens        *int           `yaml:"maxTokens"`
}

// ErrEmptyAnswer is returned when a provider responds without any content.
var ErrEmptyAnswer = errors.New("model returned an empty answer")

// withSystemPrompt prepends the system prompt to turns when one is configured.
func withSystemPrompt(systemPrompt string, turns []Turn) []Turn {
	if systemPrompt == "" {
		return turns
	}
	out := make([]Turn, 0, len(turns)+1)
	out = append(out, Turn{Role: RoleSystem, Content: systemPrompt})
	return append(out, turns...)
}
