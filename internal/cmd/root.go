package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cfgcmd "github.com/zyrian-nova/todo-app/internal/cmd/config"
	"github.com/zyrian-nova/todo-app/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "todo",
	Short: "Todo list service with AI subtask generation",
	Long: `todo serves a small task list over HTTP and can split any task into
3-5 actionable subtasks using a local Ollama model or an OpenAI-compatible
server.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/todo/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("backend", "", "model backend: ollama or openai")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("ai.backend", rootCmd.PersistentFlags().Lookup("backend"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(decomposeCmd)
	rootCmd.AddCommand(logsCmd)
	cfgcmd.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/todo")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TODO")
	// Replace dots with underscores for nested keys in env vars
	// e.g., TODO_SERVER_PORT for server.port
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.BindEnv()

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
