package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zyrian-nova/todo-app/internal/util"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var decomposeCmd = &cobra.Command{
	Use:   "decompose <task...>",
	Short: "Split a task into subtasks with the configured model",
	Long: `Ask the configured model to split a task into actionable subtasks and
print them. Nothing is stored.

Examples:
  todo decompose "Plan a birthday party"
  todo decompose --format json Write the quarterly report
  todo decompose --backend openai --max 7 "Migrate the database"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecompose,
}

func init() {
	decomposeCmd.Flags().StringP("format", "f", formatText, "output format: text, json, yaml")
	decomposeCmd.Flags().Int("width", 0, "truncate text output lines to this many columns (0 = no limit)")
	decomposeCmd.Flags().Int("min", 0, "minimum subtasks to request (default from decompose.min_subtasks)")
	decomposeCmd.Flags().Int("max", 0, "maximum subtasks to request (default from decompose.max_subtasks)")
	decomposeCmd.Flags().Float64("temperature", 0, "sampling temperature (default from decompose.temperature)")
	_ = viper.BindPFlag("decompose.min_subtasks", decomposeCmd.Flags().Lookup("min"))
	_ = viper.BindPFlag("decompose.max_subtasks", decomposeCmd.Flags().Lookup("max"))
	_ = viper.BindPFlag("decompose.temperature", decomposeCmd.Flags().Lookup("temperature"))
}

// decomposeResult is the machine-readable output of the decompose command.
type decomposeResult struct {
	Task     string   `json:"task" yaml:"task"`
	Subtasks []string `json:"subtasks" yaml:"subtasks"`
	Count    int      `json:"count" yaml:"count"`
}

// errDecomposeFailed is returned when the model reply yields a diagnostic instead of subtasks.
var errDecomposeFailed = errors.New("decomposition failed")

func runDecompose(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	width, _ := cmd.Flags().GetInt("width")
	switch format {
	case formatText, formatJSON, formatYAML:
	default:
		return fmt.Errorf("invalid --format %q: must be one of text, json, yaml", format)
	}

	task := strings.TrimSpace(strings.Join(args, " "))
	if task == "" {
		return fmt.Errorf("task must not be empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	dec, _, err := newDecomposer(cfg, logger)
	if err != nil {
		return err
	}

	out := dec.Run(cmd.Context(), task)
	if !out.OK() {
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(out.Diagnostic()))
		return fmt.Errorf("%w: %s", errDecomposeFailed, out.Kind)
	}

	result := decomposeResult{Task: task, Subtasks: out.List(), Count: len(out.Subtasks)}
	return writeResult(cmd.OutOrStdout(), format, width, result)
}

func writeResult(w io.Writer, format string, width int, result decomposeResult) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := io.WriteString(w, renderText(result, width))
		return err
	}
}

// renderText renders a styled numbered list, truncating lines to width when positive.
func renderText(result decomposeResult, width int) string {
	fit := func(line string) string {
		if width > 0 {
			return util.TruncateANSI(line, width)
		}
		return line
	}

	var sb strings.Builder
	sb.WriteString(fit(titleStyle.Render("Subtasks for: "+result.Task)) + "\n")
	if result.Count == 0 {
		sb.WriteString(fit(footerStyle.Render("The model returned no subtasks.")) + "\n")
		return sb.String()
	}
	for i, st := range result.Subtasks {
		sb.WriteString(fit(indexStyle.Render(fmt.Sprintf("%3d.", i+1))+" "+st) + "\n")
	}
	sb.WriteString(fit(footerStyle.Render(fmt.Sprintf("%d subtasks", result.Count))) + "\n")
	return sb.String()
}
