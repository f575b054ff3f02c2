package config

import (
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// OpenAISettings configures the model gateway.
type OpenAISettings struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Model     string `mapstructure:"model" yaml:"model,omitempty"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
}

// SandboxSettings configures the development container.
type SandboxSettings struct {
	Image   string `mapstructure:"image" yaml:"image,omitempty"`
	Name    string `mapstructure:"name" yaml:"name,omitempty"`
	Workdir string `mapstructure:"workdir" yaml:"workdir,omitempty"`
}

// LoopSettings configures the agent loop.
type LoopSettings struct {
	MaxIterations  int      `mapstructure:"max_iterations" yaml:"max_iterations,omitempty"`
	SystemPrompt   string   `mapstructure:"system_prompt" yaml:"system_prompt,omitempty"`
	AllowedTools   []string `mapstructure:"allowed_tools" yaml:"allowed_tools,omitempty"`
	TruncateBudget int      `mapstructure:"truncate_budget" yaml:"truncate_budget,omitempty"`
}

// LogSettings configures zerolog.
type LogSettings struct {
	Level string `mapstructure:"level" yaml:"level,omitempty"`
}

type Settings struct {
	OpenAI  OpenAISettings  `mapstructure:"openai" yaml:"openai,omitempty"`
	Sandbox SandboxSettings `mapstructure:"sandbox" yaml:"sandbox,omitempty"`
	Loop    LoopSettings    `mapstructure:"loop" yaml:"loop,omitempty"`
	Log     LogSettings     `mapstructure:"log" yaml:"log,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{
		OpenAI: OpenAISettings{
			Model:     "gpt-4",
			MaxTokens: 8000,
		},
		Sandbox: SandboxSettings{
			Image: "devagent-sandbox:latest",
			Name:  "devagent-dev",
		},
		Loop: LoopSettings{
			MaxIterations: 20,
			SystemPrompt:  DefaultSystemPrompt,
		},
		Log: LogSettings{
			Level: "info",
		},
	}
}

// Clone returns a deep copy, so per-session overrides never leak into the
// shared defaults.
func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

// Load overlays viper-bound values (config file, DEVAGENT_* environment
// variables, flags) onto the defaults.
func Load(v *viper.Viper) (*Settings, error) {
	s := NewSettings()
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "unmarshal settings")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	if s.OpenAI.APIKey == "" {
		return errors.New("openai.api_key is required (set DEVAGENT_OPENAI_API_KEY)")
	}
	if s.Loop.MaxIterations <= 0 {
		return errors.New("loop.max_iterations must be positive")
	}
	return nil
}
