package config

// Config is the root configuration for taskmind.
type Config struct {
	Workspace WorkspaceConfig `toml:"workspace"`
	LLM       LLMConfig       `toml:"llm"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Storage   StorageConfig   `toml:"storage"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Retention RetentionConfig `toml:"retention"`
	Logging   LoggingConfig   `toml:"logging"`
}

// WorkspaceConfig describes the working directory used for prompt
// overrides and the default database location.
type WorkspaceConfig struct {
	Path string `toml:"path"`
}

// LLMConfig selects and configures the LLM provider.
type LLMConfig struct {
	Provider string       `toml:"provider"` // openai, mock
	OpenAI   OpenAIConfig `toml:"openai"`

	// RateLimit caps LLM requests per minute. Zero disables limiting.
	RateLimit int `toml:"rate_limit"`
}

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// SchedulerConfig configures the planning loop.
type SchedulerConfig struct {
	// PromptsDir holds template overrides. Empty means workspace/prompts.
	PromptsDir string `toml:"prompts_dir"`

	// Executors is the default resolution order when a task carries no
	// executor hint. Empty means all registered executors in registration
	// order.
	Executors []string `toml:"executors"`

	// MaxIterations caps planning iterations per run. Zero means unlimited.
	MaxIterations int `toml:"max_iterations"`
}

// StorageConfig configures the sqlite job store.
type StorageConfig struct {
	Path          string `toml:"path"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// RetentionConfig configures the periodic pruning of old terminal jobs.
type RetentionConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // cron expression
	MaxAge   string `toml:"max_age"`  // Go duration, e.g. "720h"
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}
