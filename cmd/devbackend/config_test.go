package main

import (
	"reflect"
	"testing"

	"github.com/MegaGrindStone/stealth-web-ui/internal/services"
	"gopkg.in/yaml.v3"
)

func TestConfigUnmarshalYAML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantErr  bool
		wantPort string
		wantLLM  llmConfig
	}{
		{
			name: "Ollama",
			input: `
port: "9000"
systemPrompt: be brief
llm:
  provider: ollama
  model: llama3
  host: http://localhost:11434
`,
			wantPort: "9000",
			wantLLM:  &ollamaConfig{BaseLLMConfig: BaseLLMConfig{Provider: "ollama", Model: "llama3"}, Host: "http://localhost:11434"},
		},
		{
			name: "OpenAI compatible",
			input: `
llm:
  provider: openai
  model: gpt-4o-mini
  baseURL: https://openrouter.ai/api/v1
`,
			wantPort: "8000",
			wantLLM: &openaiConfig{
				BaseLLMConfig: BaseLLMConfig{Provider: "openai", Model: "gpt-4o-mini"},
				BaseURL:       "https://openrouter.ai/api/v1",
			},
		},
		{
			name: "Echo",
			input: `
llm:
  provider: echo
  prefix: "echo: "
`,
			wantPort: "8000",
			wantLLM:  &echoConfig{BaseLLMConfig: BaseLLMConfig{Provider: "echo"}, Prefix: "echo: "},
		},
		{
			name:    "Missing provider",
			input:   "llm:\n  model: x\n",
			wantErr: true,
		},
		{
			name:    "Unknown provider",
			input:   "llm:\n  provider: anthropic\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg config
			err := yaml.Unmarshal([]byte(tt.input), &cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Unmarshal() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}

			if cfg.Port != tt.wantPort {
				t.Errorf("Port = %q, want %q", cfg.Port, tt.wantPort)
			}
			if !reflect.DeepEqual(cfg.LLM, tt.wantLLM) {
				t.Errorf("LLM = %#v, want %#v", cfg.LLM, tt.wantLLM)
			}
		})
	}
}

func TestEchoAnswerer(t *testing.T) {
	var cfg config
	if err := yaml.Unmarshal([]byte("llm:\n  provider: echo\n"), &cfg); err != nil {
		t.Fatal(err)
	}
	a, err := cfg.LLM.answerer("", cfg.Parameters, nil)
	if err != nil {
		t.Fatalf("answerer() error = %v", err)
	}
	if a == nil {
		t.Fatal("answerer() = nil")
	}
}

func TestOllamaRequiresModel(t *testing.T) {
	_, err := ollamaConfig{}.answerer("", services.LLMParameters{}, nil)
	if err == nil {
		t.Fatal("answerer() error = nil, want error")
	}
}
