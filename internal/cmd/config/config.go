// Package config provides CLI commands for managing todo configuration.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	appconfig "github.com/zyrian-nova/todo-app/internal/config"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify todo configuration",
	Long: `View or modify todo configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration as YAML",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  todo config set ai.backend openai
  todo config set ai.ollama.model mistral
  todo config set decompose.max_subtasks 7

Run 'todo config keys' to list every key.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List settable configuration keys",
	RunE:  runConfigKeys,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/todo/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configResetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Reset configuration to defaults",
	Long: `Reset configuration values to their defaults.

Without arguments, resets all configuration to defaults.
With a key argument, resets only that specific key.

Examples:
  todo config reset                   # Reset all to defaults
  todo config reset ai.ollama.model   # Reset only ai.ollama.model`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigReset,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configResetCmd)
}

// Register adds all config-related commands to the given parent command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

// keyKind describes how a settable value is parsed.
type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindFloat
	kindBackend
	kindLogLevel
	kindList
	kindBool
)

// settableKeys maps each settable key to its kind.
var settableKeys = map[string]keyKind{
	"ai.backend":                      kindBackend,
	"ai.request_timeout_seconds":      kindInt,
	"ai.ollama.host":                  kindString,
	"ai.ollama.model":                 kindString,
	"ai.openai.base_url":              kindString,
	"ai.openai.model":                 kindString,
	"ai.openai.api_key":               kindString,
	"decompose.min_subtasks":          kindInt,
	"decompose.max_subtasks":          kindInt,
	"decompose.max_subtask_length":    kindInt,
	"decompose.temperature":           kindFloat,
	"store.path":                      kindString,
	"server.host":                     kindString,
	"server.port":                     kindInt,
	"server.allowed_origins":          kindList,
	"server.read_timeout_seconds":     kindInt,
	"server.write_timeout_seconds":    kindInt,
	"server.shutdown_timeout_seconds": kindInt,
	"logging.level":                   kindLogLevel,
	"logging.dir":                     kindString,
	"logging.max_size_mb":             kindInt,
	"logging.max_backups":             kindInt,
	"logging.compress":                kindBool,
}

// sortedKeys returns the settable keys in a stable order.
func sortedKeys() []string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseValue converts a command-line value to the type stored for key.
func parseValue(key, value string) (any, error) {
	kind, ok := settableKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'todo config keys' to see valid keys", key)
	}

	switch kind {
	case kindBackend:
		v := strings.ToLower(value)
		if !slices.Contains(appconfig.ValidBackends(), v) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(appconfig.ValidBackends(), ", "))
		}
		return v, nil
	case kindLogLevel:
		v := strings.ToLower(value)
		if !slices.Contains(appconfig.ValidLogLevels(), v) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(appconfig.ValidLogLevels(), ", "))
		}
		return v, nil
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected number", key)
		}
		return f, nil
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return b, nil
	case kindList:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	default:
		return value, nil
	}
}

// defaultValues returns every settable key mapped to its default.
func defaultValues() map[string]any {
	raw, _ := yaml.Marshal(appconfig.Default())
	var tree map[string]any
	_ = yaml.Unmarshal(raw, &tree)
	values := make(map[string]any, len(settableKeys))
	for key := range settableKeys {
		values[key] = lookup(tree, strings.Split(key, "."))
	}
	return values
}

func lookup(tree map[string]any, path []string) any {
	v, ok := tree[path[0]]
	if !ok || len(path) == 1 {
		return v
	}
	sub, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return lookup(sub, path[1:])
}

// writeConfig applies updates on top of what the config file already holds
// and saves it. Values that only come from the environment are never written.
func writeConfig(w io.Writer, updates map[string]any) error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = appconfig.ConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file := viper.New()
	file.SetConfigFile(configFile)
	if _, err := os.Stat(configFile); err == nil {
		if err := file.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	for key, value := range updates {
		file.Set(key, value)
	}

	if err := file.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Fprintf(w, "Config saved to %s\n", configFile)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := appconfig.Load()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\nShowing defaults.\n", err)
		cfg = appconfig.Default()
	}

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	// Never echo secrets.
	if cfg.AI.OpenAI.APIKey != "" {
		cfg.AI.OpenAI.APIKey = "********"
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	_, err = out.Write(buf.Bytes())
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	typed, err := parseValue(key, value)
	if err != nil {
		return err
	}

	previous := viper.Get(key)
	viper.Set(key, typed)

	// Reject combinations that would fail at startup.
	if _, err := appconfig.Load(); err != nil {
		viper.Set(key, previous)
		return fmt.Errorf("refusing to save: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typed)
	return writeConfig(out, map[string]any{key: typed})
}

func runConfigKeys(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	defaults := defaultValues()
	for _, key := range sortedKeys() {
		fmt.Fprintf(out, "%-34s (default: %v)\n", key, defaults[key])
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'todo config set' to modify values", configFile)
	}

	if err := os.MkdirAll(appconfig.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	body, err := yaml.Marshal(appconfig.Default())
	if err != nil {
		return fmt.Errorf("failed to render defaults: %w", err)
	}
	header := `# todo configuration
# Every key can also be set with a TODO_ environment variable,
# e.g. TODO_SERVER_PORT=9000 or TODO_AI_OLLAMA_MODEL=mistral.
# OLLAMA_HOST, OLLAMA_MODEL and OPENAI_API_KEY are honoured too.

`
	if err := os.WriteFile(configFile, append([]byte(header), body...), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize the todo service.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := appconfig.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", configFile)
	fmt.Fprintln(out, "  2. $HOME/.config/todo/config.yaml")
	fmt.Fprintln(out, "  3. ./config.yaml (current directory)")
	fmt.Fprintln(out, "\nEnvironment variables: TODO_* (e.g., TODO_SERVER_PORT)")
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	defaults := defaultValues()

	updates := defaults
	if len(args) == 0 {
		fmt.Fprintln(out, "Reset all configuration to defaults.")
	} else {
		key := args[0]
		value, ok := defaults[key]
		if !ok {
			return fmt.Errorf("unknown configuration key: %s\nRun 'todo config keys' to see valid keys", key)
		}
		updates = map[string]any{key: value}
		fmt.Fprintf(out, "Reset %s to default: %v\n", key, value)
	}

	for key, value := range updates {
		viper.Set(key, value)
	}
	return writeConfig(out, updates)
}
