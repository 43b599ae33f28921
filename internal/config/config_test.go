package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Verify default AI config
	if cfg.AI.Backend != "ollama" {
		t.Errorf("AI.Backend = %q, want %q", cfg.AI.Backend, "ollama")
	}
	if cfg.AI.Ollama.Host != "http://localhost:11434" {
		t.Errorf("AI.Ollama.Host = %q, want %q", cfg.AI.Ollama.Host, "http://localhost:11434")
	}
	if cfg.AI.Ollama.Model != "llama3.2" {
		t.Errorf("AI.Ollama.Model = %q, want %q", cfg.AI.Ollama.Model, "llama3.2")
	}
	if cfg.AI.RequestTimeoutSeconds != 120 {
		t.Errorf("AI.RequestTimeoutSeconds = %d, want 120", cfg.AI.RequestTimeoutSeconds)
	}

	// Verify default decompose config
	if cfg.Decompose.MinSubtasks != 3 || cfg.Decompose.MaxSubtasks != 5 {
		t.Errorf("Decompose bounds = %d-%d, want 3-5", cfg.Decompose.MinSubtasks, cfg.Decompose.MaxSubtasks)
	}
	if cfg.Decompose.MaxSubtaskLength != 100 {
		t.Errorf("Decompose.MaxSubtaskLength = %d, want 100", cfg.Decompose.MaxSubtaskLength)
	}
	if cfg.Decompose.Temperature != 0.7 {
		t.Errorf("Decompose.Temperature = %v, want 0.7", cfg.Decompose.Temperature)
	}

	// Verify default store and server config
	if cfg.Store.Path != "todo.db" {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, "todo.db")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if diff := cmp.Diff([]string{"*"}, cfg.Server.AllowedOrigins); diff != "" {
		t.Errorf("Server.AllowedOrigins mismatch (-want +got):\n%s", diff)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestDurations(t *testing.T) {
	ai := AIConfig{RequestTimeoutSeconds: 30}
	if got := ai.RequestTimeout(); got != 30*time.Second {
		t.Errorf("RequestTimeout() = %v, want 30s", got)
	}

	s := ServerConfig{ReadTimeoutSeconds: 1, WriteTimeoutSeconds: 2, ShutdownTimeoutSeconds: 0}
	if got := s.ReadTimeout(); got != time.Second {
		t.Errorf("ReadTimeout() = %v, want 1s", got)
	}
	if got := s.WriteTimeout(); got != 2*time.Second {
		t.Errorf("WriteTimeout() = %v, want 2s", got)
	}
	if got := s.ShutdownTimeout(); got != 0 {
		t.Errorf("ShutdownTimeout() = %v, want 0", got)
	}
}

func TestServerConfig_Addr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"0.0.0.0", 8000, "0.0.0.0:8000"},
		{"", 9000, ":9000"},
		{"::1", 8080, "[::1]:8080"},
	}
	for _, tt := range tests {
		s := ServerConfig{Host: tt.host, Port: tt.port}
		if got := s.Addr(); got != tt.want {
			t.Errorf("Addr() with %q:%d = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got := ConfigDir(); got != "/custom/config/todo" {
			t.Errorf("ConfigDir() = %q, want %q", got, "/custom/config/todo")
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", home)
		expected := filepath.Join(home, ".config", "todo")
		if got := ConfigDir(); got != expected {
			t.Errorf("ConfigDir() = %q, want %q", got, expected)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := ConfigFile(); got != "/custom/config/todo/config.yaml" {
		t.Errorf("ConfigFile() = %q, want %q", got, "/custom/config/todo/config.yaml")
	}
}

func TestGet(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	// Set defaults in viper first (normally done by cmd init)
	SetDefaults()

	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Get() without overrides differs from Default() (-want +got):\n%s", diff)
	}
}

func TestGet_InvalidFallsBackToDefault(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	SetDefaults()
	viper.Set("decompose.min_subtasks", 0)

	if got := Get(); got.Decompose.MinSubtasks != 3 {
		t.Errorf("Get().Decompose.MinSubtasks = %d, want default 3", got.Decompose.MinSubtasks)
	}
}

func TestLoad_ReturnsValidationErrors(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	SetDefaults()
	viper.Set("ai.backend", "bogus")
	viper.Set("logging.level", "loud")

	_, err := Load()
	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("Load() error = %T (%v), want ValidationErrors", err, err)
	}
	if len(errs) != 2 {
		t.Errorf("got %d validation errors, want 2: %v", len(errs), errs)
	}
}

func TestBindEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "unprefixed variable",
			env:  map[string]string{"OLLAMA_HOST": "http://gpu-box:11434"},
			want: "http://gpu-box:11434",
		},
		{
			name: "prefixed variable wins",
			env: map[string]string{
				"OLLAMA_HOST":         "http://gpu-box:11434",
				"TODO_AI_OLLAMA_HOST": "http://other:11434",
			},
			want: "http://other:11434",
		},
		{
			name: "default when unset",
			want: "http://localhost:11434",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			t.Setenv("OLLAMA_HOST", "")
			t.Setenv("TODO_AI_OLLAMA_HOST", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			SetDefaults()
			BindEnv()

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.AI.Ollama.Host != tt.want {
				t.Errorf("AI.Ollama.Host = %q, want %q", cfg.AI.Ollama.Host, tt.want)
			}
		})
	}
}

func TestBindEnv_ModelAndAPIKey(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("OLLAMA_MODEL", "mistral")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	SetDefaults()
	BindEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.Ollama.Model != "mistral" {
		t.Errorf("AI.Ollama.Model = %q, want mistral", cfg.AI.Ollama.Model)
	}
	if cfg.AI.OpenAI.APIKey != "sk-test" {
		t.Errorf("AI.OpenAI.APIKey = %q, want sk-test", cfg.AI.OpenAI.APIKey)
	}
}
