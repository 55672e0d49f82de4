package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/packhound/packhound/pkg/adapters/chat"
)

// ModelConfig describes one chat-completions endpoint in the config file.
type ModelConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// Config is the CLI configuration. Reasoning, worker execution and
// structured output can run on separate endpoints sized for their workload.
type Config struct {
	Supervisor ModelConfig `yaml:"supervisor"`
	Worker     ModelConfig `yaml:"worker"`
	Formatter  ModelConfig `yaml:"formatter"`

	// LowMemory collapses all three roles onto the supervisor endpoint.
	LowMemory bool `yaml:"low_memory"`

	StepBudget    int `yaml:"step_budget"`
	TaskBudget    int `yaml:"task_budget"`
	StepCeiling   int `yaml:"step_ceiling"`
	FormatRetries int `yaml:"format_retries"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the optional run store used by the serve command.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DefaultConfig targets a local three-endpoint deployment: a large model for
// planning, a mid-size model for workers and a small one for formatting.
func DefaultConfig() Config {
	return Config{
		Supervisor: ModelConfig{
			BaseURL: "http://127.0.0.1:30000/v1",
			Model:   "Qwen/Qwen3-32B",
		},
		Worker: ModelConfig{
			BaseURL: "http://127.0.0.1:30001/v1",
			Model:   "Qwen/Qwen3-8B",
		},
		Formatter: ModelConfig{
			BaseURL: "http://127.0.0.1:30002/v1",
			Model:   "google/gemma-3-4b-it",
		},
	}
}

// LoadConfig reads the YAML config at path, layered over the defaults.
// An empty path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// ChatConfig converts a model section to the chat client config, resolving
// the API key from the named environment variable.
func (m ModelConfig) ChatConfig() chat.Config {
	apiKey := ""
	if m.APIKeyEnv != "" {
		apiKey = os.Getenv(m.APIKeyEnv)
	}
	return chat.Config{
		BaseURL:     m.BaseURL,
		APIKey:      apiKey,
		Model:       m.Model,
		Timeout:     m.Timeout,
		Temperature: m.Temperature,
		MaxTokens:   m.MaxTokens,
	}
}

// Endpoints returns the effective supervisor, worker and formatter configs,
// honoring low-memory mode.
func (c Config) Endpoints() (supervisor, worker, formatter chat.Config) {
	supervisor = c.Supervisor.ChatConfig()
	if c.LowMemory {
		return supervisor, supervisor, supervisor
	}
	return supervisor, c.Worker.ChatConfig(), c.Formatter.ChatConfig()
}
