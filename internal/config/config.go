package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete todo service configuration
type Config struct {
	AI        AIConfig        `mapstructure:"ai" yaml:"ai"`
	Decompose DecomposeConfig `mapstructure:"decompose" yaml:"decompose"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// AIConfig selects and configures the model backend
type AIConfig struct {
	// Backend is the model backend to use: "ollama" or "openai" (default: "ollama")
	Backend string `mapstructure:"backend" yaml:"backend"`
	// RequestTimeoutSeconds bounds a single model call; 0 disables the timeout (default: 120)
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	// Ollama holds settings for a local or remote Ollama server
	Ollama OllamaConfig `mapstructure:"ollama" yaml:"ollama"`
	// OpenAI holds settings for any OpenAI-compatible chat completions server
	OpenAI OpenAIConfig `mapstructure:"openai" yaml:"openai"`
}

// OllamaConfig configures the Ollama backend.
// Host and Model also honour the OLLAMA_HOST and OLLAMA_MODEL env vars.
type OllamaConfig struct {
	Host  string `mapstructure:"host" yaml:"host"`
	Model string `mapstructure:"model" yaml:"model"`
}

// OpenAIConfig configures the OpenAI-compatible backend.
// APIKey also honours the OPENAI_API_KEY env var.
type OpenAIConfig struct {
	// BaseURL overrides the API endpoint, e.g. a llama.cpp or vLLM server (default: "" uses api.openai.com)
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Model   string `mapstructure:"model" yaml:"model"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
}

// DecomposeConfig controls prompt bounds and subtask normalization
type DecomposeConfig struct {
	// MinSubtasks is the lower bound requested in the prompt (default: 3)
	MinSubtasks int `mapstructure:"min_subtasks" yaml:"min_subtasks"`
	// MaxSubtasks is the upper bound requested in the prompt (default: 5)
	MaxSubtasks int `mapstructure:"max_subtasks" yaml:"max_subtasks"`
	// MaxSubtaskLength caps each extracted subtask in characters (default: 100)
	MaxSubtaskLength int `mapstructure:"max_subtask_length" yaml:"max_subtask_length"`
	// Temperature is the sampling temperature sent to the model (default: 0.7)
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
}

// StoreConfig controls task persistence
type StoreConfig struct {
	// Path is the SQLite database file; ":memory:" keeps everything in RAM (default: "todo.db")
	Path string `mapstructure:"path" yaml:"path"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	// AllowedOrigins lists CORS origins; "*" allows any (default: ["*"])
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	// ReadTimeoutSeconds bounds reading a request (default: 15)
	ReadTimeoutSeconds int `mapstructure:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	// WriteTimeoutSeconds bounds writing a response; keep it above ai.request_timeout_seconds (default: 150)
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds" yaml:"write_timeout_seconds"`
	// ShutdownTimeoutSeconds bounds graceful shutdown (default: 10)
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir writes logs to {dir}/todo.log instead of stderr (default: "")
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB rotates todo.log at this size; 0 disables rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files kept (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated files (default: false)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		AI: AIConfig{
			Backend:               "ollama",
			RequestTimeoutSeconds: 120,
			Ollama: OllamaConfig{
				Host:  "http://localhost:11434",
				Model: "llama3.2",
			},
			OpenAI: OpenAIConfig{
				BaseURL: "",
				Model:   "gpt-4o-mini",
				APIKey:  "",
			},
		},
		Decompose: DecomposeConfig{
			MinSubtasks:      3,
			MaxSubtasks:      5,
			MaxSubtaskLength: 100,
			Temperature:      0.7,
		},
		Store: StoreConfig{
			Path: "todo.db",
		},
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   8000,
			AllowedOrigins:         []string{"*"},
			ReadTimeoutSeconds:     15,
			WriteTimeoutSeconds:    150,
			ShutdownTimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
	}
}

// RequestTimeout returns the model call timeout (0 means none)
func (c *AIConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Addr returns the host:port listen address
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ReadTimeout returns the request read timeout as a time.Duration
func (c *ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the response write timeout as a time.Duration
func (c *ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown budget as a time.Duration
func (c *ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// AI defaults
	viper.SetDefault("ai.backend", defaults.AI.Backend)
	viper.SetDefault("ai.request_timeout_seconds", defaults.AI.RequestTimeoutSeconds)
	viper.SetDefault("ai.ollama.host", defaults.AI.Ollama.Host)
	viper.SetDefault("ai.ollama.model", defaults.AI.Ollama.Model)
	viper.SetDefault("ai.openai.base_url", defaults.AI.OpenAI.BaseURL)
	viper.SetDefault("ai.openai.model", defaults.AI.OpenAI.Model)
	viper.SetDefault("ai.openai.api_key", defaults.AI.OpenAI.APIKey)

	// Decompose defaults
	viper.SetDefault("decompose.min_subtasks", defaults.Decompose.MinSubtasks)
	viper.SetDefault("decompose.max_subtasks", defaults.Decompose.MaxSubtasks)
	viper.SetDefault("decompose.max_subtask_length", defaults.Decompose.MaxSubtaskLength)
	viper.SetDefault("decompose.temperature", defaults.Decompose.Temperature)

	// Store defaults
	viper.SetDefault("store.path", defaults.Store.Path)

	// Server defaults
	viper.SetDefault("server.host", defaults.Server.Host)
	viper.SetDefault("server.port", defaults.Server.Port)
	viper.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)
	viper.SetDefault("server.read_timeout_seconds", defaults.Server.ReadTimeoutSeconds)
	viper.SetDefault("server.write_timeout_seconds", defaults.Server.WriteTimeoutSeconds)
	viper.SetDefault("server.shutdown_timeout_seconds", defaults.Server.ShutdownTimeoutSeconds)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// BindEnv binds the conventional, unprefixed env vars used by model tooling.
// The prefixed TODO_* form (e.g. TODO_AI_OLLAMA_HOST) takes precedence.
func BindEnv() {
	_ = viper.BindEnv("ai.ollama.host", "TODO_AI_OLLAMA_HOST", "OLLAMA_HOST")
	_ = viper.BindEnv("ai.ollama.model", "TODO_AI_OLLAMA_MODEL", "OLLAMA_MODEL")
	_ = viper.BindEnv("ai.openai.api_key", "TODO_AI_OPENAI_API_KEY", "OPENAI_API_KEY")
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "todo")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".todo"
	}
	return filepath.Join(home, ".config", "todo")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
