package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MegaGrindStone/stealth-web-ui/internal/services"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	answerer(systemPrompt string, params services.LLMParameters, logger *slog.Logger) (services.Answerer, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port         string                 `yaml:"port"`
	SystemPrompt string                 `yaml:"systemPrompt"`
	Parameters   services.LLMParameters `yaml:"parameters"`
	LLM          llmConfig              `yaml:"llm"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type openaiConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

type echoConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Prefix        string `yaml:"prefix"`
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port         string                 `yaml:"port"`
		SystemPrompt string                 `yaml:"systemPrompt"`
		Parameters   services.LLMParameters `yaml:"parameters"`
		LLM          map[string]any         `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	if c.Port == "" {
		c.Port = "8000"
	}
	c.SystemPrompt = rawConfig.SystemPrompt
	c.Parameters = rawConfig.Parameters

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "ollama":
		llm = &ollamaConfig{}
	case "openai":
		llm = &openaiConfig{}
	case "echo":
		llm = &echoConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}
	c.LLM = llm

	return nil
}

func (o ollamaConfig) answerer(
	systemPrompt string,
	params services.LLMParameters,
	logger *slog.Logger,
) (services.Answerer, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	return services.NewOllama(host, o.Model, systemPrompt, params, logger)
}

func (o openaiConfig) answerer(
	systemPrompt string,
	params services.LLMParameters,
	logger *slog.Logger,
) (services.Answerer, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, systemPrompt, params, logger), nil
}

func (e echoConfig) answerer(string, services.LLMParameters, *slog.Logger) (services.Answerer, error) {
	return services.NewEcho(e.Prefix), nil
}
