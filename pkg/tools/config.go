package tools

import (
	"time"

	"github.com/mb0/glob"
)

// Config specifies how tools are dispatched during a session.
type Config struct {
	ExecutionTimeout time.Duration `json:"execution_timeout" yaml:"execution_timeout"`
	// AllowedTools holds glob patterns; nil means all tools are allowed.
	AllowedTools []string `json:"allowed_tools" yaml:"allowed_tools"`
}

func DefaultConfig() Config {
	return Config{
		ExecutionTimeout: 60 * time.Second,
		AllowedTools:     nil,
	}
}

func (c Config) WithExecutionTimeout(timeout time.Duration) Config {
	c.ExecutionTimeout = timeout
	return c
}

func (c Config) WithAllowedTools(patterns []string) Config {
	c.AllowedTools = patterns
	return c
}

// IsToolAllowed matches the tool name against the allowed glob patterns.
func (c Config) IsToolAllowed(name string) bool {
	if c.AllowedTools == nil {
		return true
	}
	for _, pattern := range c.AllowedTools {
		matching, err := glob.Match(pattern, name)
		if err != nil {
			continue
		}
		if matching {
			return true
		}
	}
	return false
}
