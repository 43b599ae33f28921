package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/zyrian-nova/todo-app/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View service logs",
	Long: `View and filter the JSON logs written to {logging.dir}/todo.log.

Logs are only written to a file when logging.dir is set; otherwise the
service logs to stderr and there is nothing to read here.

Examples:
  # Show the last 50 entries
  todo logs

  # Everything one request did
  todo logs --request 3f2b6c1e-... -n 0

  # Failed decompositions for todo 42 in the last hour
  todo logs --task 42 --level warn --since 1h

  # Export as CSV
  todo logs -n 0 --format csv > todo-logs.csv

  # Follow new entries
  todo logs -f --component server`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().String("dir", "", "log directory (default from logging.dir)")
	logsCmd.Flags().IntP("tail", "n", 50, "number of entries to show (0 for all)")
	logsCmd.Flags().BoolP("follow", "f", false, "follow new entries (like tail -f)")
	logsCmd.Flags().String("level", "", "minimum level (debug/info/warn/error)")
	logsCmd.Flags().String("since", "", "show entries newer than this duration (e.g. 1h, 30m)")
	logsCmd.Flags().String("component", "", "only entries from this component (server, decompose, ...)")
	logsCmd.Flags().String("request", "", "only entries for this request ID")
	logsCmd.Flags().Int64("task", 0, "only entries for this todo ID")
	logsCmd.Flags().String("grep", "", "only entries whose message or attributes match this regex")
	logsCmd.Flags().String("format", logging.ExportText, "output format: text, json, csv")
}

var (
	logTimeStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	logContextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22D3EE")) // Cyan
	logLevelStyles  = map[string]lipgloss.Style{
		logging.LevelDebug: lipgloss.NewStyle().Foreground(mutedColor),
		logging.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")), // Blue
		logging.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24")), // Yellow
		logging.LevelError: lipgloss.NewStyle().Foreground(errorColor),
	}
)

// formatLogEntry renders one entry for the terminal.
func formatLogEntry(entry logging.LogEntry) string {
	level := strings.ToUpper(entry.Level)
	levelStyle, ok := logLevelStyles[level]
	if !ok {
		levelStyle = lipgloss.NewStyle()
	}

	var sb strings.Builder
	sb.WriteString(logTimeStyle.Render("[" + entry.Timestamp.Local().Format("15:04:05.000") + "]"))
	sb.WriteString(" ")
	sb.WriteString(levelStyle.Render("[" + level + "]"))
	sb.WriteString(" ")
	sb.WriteString(entry.Message)
	if ctx := entry.Context(); ctx != "" {
		sb.WriteString(" ")
		sb.WriteString(logContextStyle.Render(ctx))
	}
	return sb.String()
}

// logsFilter builds a LogFilter from the command's flags.
func logsFilter(cmd *cobra.Command) (logging.LogFilter, error) {
	var filter logging.LogFilter
	flags := cmd.Flags()

	filter.Level, _ = flags.GetString("level")
	filter.Component, _ = flags.GetString("component")
	filter.RequestID, _ = flags.GetString("request")
	filter.TaskID, _ = flags.GetInt64("task")

	if since, _ := flags.GetString("since"); since != "" {
		d, err := time.ParseDuration(since)
		if err != nil {
			return filter, fmt.Errorf("invalid duration format: %w", err)
		}
		filter.Since = time.Now().Add(-d)
	}

	if pattern, _ := flags.GetString("grep"); pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return filter, fmt.Errorf("invalid grep pattern: %w", err)
		}
		filter.Pattern = re
	}
	return filter, nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case logging.ExportText, logging.ExportJSON, logging.ExportCSV:
	default:
		return fmt.Errorf("invalid --format %q: must be one of text, json, csv", format)
	}

	filter, err := logsFilter(cmd)
	if err != nil {
		return err
	}

	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir = cfg.Logging.Dir
	}
	out := cmd.OutOrStdout()
	if dir == "" {
		fmt.Fprintln(out, "No log directory configured; the service logs to stderr.")
		fmt.Fprintln(out, "Set one with: todo config set logging.dir <path>")
		return nil
	}

	if follow, _ := cmd.Flags().GetBool("follow"); follow {
		return followLogs(cmd.Context(), out, filepath.Join(dir, logging.LogFileName), filter)
	}

	entries, err := logging.ReadLogs(dir)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(out, "No logs found at %s\n", filepath.Join(dir, logging.LogFileName))
		return nil
	}
	if err != nil {
		return err
	}

	entries = logging.FilterLogs(entries, filter)
	if tail, _ := cmd.Flags().GetInt("tail"); tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}

	if format != logging.ExportText {
		return logging.WriteLogEntries(out, entries, format)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
		return nil
	}
	for _, entry := range entries {
		fmt.Fprintln(out, formatLogEntry(entry))
	}
	return nil
}

// followLogs prints matching entries appended to path until ctx is done.
// The directory is watched so a rotated todo.log is picked up from its start.
func followLogs(ctx context.Context, out io.Writer, path string, filter logging.LogFilter) error {
	if ctx == nil {
		ctx = context.Background()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	fmt.Fprintf(out, "Following %s... (Ctrl+C to stop)\n\n", path)

	reader := bufio.NewReader(file)
	var partial string
	drain := func() error {
		for {
			line, err := reader.ReadString('\n')
			partial += line
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("error reading log file: %w", err)
			}
			entries, _ := logging.ParseLogs(strings.NewReader(partial))
			partial = ""
			for _, entry := range logging.FilterLogs(entries, filter) {
				fmt.Fprintln(out, formatLogEntry(entry))
			}
		}
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			switch {
			case event.Has(fsnotify.Create):
				// Rotation renamed the old file away; finish it, then start on the new one.
				if err := drain(); err != nil {
					return err
				}
				next, err := os.Open(path)
				if err != nil {
					continue
				}
				_ = file.Close()
				file = next
				reader.Reset(file)
				partial = ""
				if err := drain(); err != nil {
					return err
				}
			case event.Has(fsnotify.Write):
				if err := drain(); err != nil {
					return err
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching log file: %w", err)
		}
	}
}
