package logging

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LogEntry is one parsed line of todo.log.
type LogEntry struct {
	Timestamp time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	Component string         `json:"component,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	TaskID    int64          `json:"task_id,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// LogFilter selects entries. Zero-valued fields match everything and all
// set fields must match.
type LogFilter struct {
	// Level keeps entries at or above this level.
	Level string
	Since time.Time
	Until time.Time

	Component string
	RequestID string
	TaskID    int64

	// Pattern is matched against the message and every attribute value.
	Pattern *regexp.Regexp
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ReadLogs parses {logDir}/todo.log, oldest entry first.
// Lines that are not JSON objects are skipped.
func ReadLogs(logDir string) ([]LogEntry, error) {
	file, err := os.Open(filepath.Join(logDir, LogFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no log file found in %s: %w", logDir, err)
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ParseLogs(file)
}

// ParseLogs reads JSON log lines from r, sorted by timestamp.
func ParseLogs(r io.Reader) ([]LogEntry, error) {
	var entries []LogEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseLogEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

func parseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	entry := LogEntry{Attrs: make(map[string]any)}
	for key, value := range raw {
		switch key {
		case "time":
			if s, ok := value.(string); ok {
				entry.Timestamp, _ = time.Parse(time.RFC3339Nano, s)
			}
		case "level":
			entry.Level, _ = value.(string)
		case "msg":
			entry.Message, _ = value.(string)
		case "component":
			entry.Component, _ = value.(string)
		case "request_id":
			entry.RequestID, _ = value.(string)
		case "task_id":
			if f, ok := value.(float64); ok {
				entry.TaskID = int64(f)
			}
		default:
			entry.Attrs[key] = value
		}
	}
	return entry, nil
}

// FilterLogs returns the entries matching filter, preserving order.
func FilterLogs(entries []LogEntry, filter LogFilter) []LogEntry {
	var filtered []LogEntry
	for _, entry := range entries {
		if filter.matches(entry) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

func (f LogFilter) matches(entry LogEntry) bool {
	if f.Level != "" {
		want, ok := levelOrder[strings.ToUpper(f.Level)]
		got, known := levelOrder[entry.Level]
		if ok && known && got < want {
			return false
		}
	}
	if !f.Since.IsZero() && entry.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && entry.Timestamp.After(f.Until) {
		return false
	}
	if f.Component != "" && entry.Component != f.Component {
		return false
	}
	if f.RequestID != "" && entry.RequestID != f.RequestID {
		return false
	}
	if f.TaskID != 0 && entry.TaskID != f.TaskID {
		return false
	}
	if f.Pattern != nil && !f.Pattern.MatchString(entry.searchText()) {
		return false
	}
	return true
}

func (e LogEntry) searchText() string {
	parts := []string{e.Message}
	for _, key := range e.attrKeys() {
		parts = append(parts, fmt.Sprint(e.Attrs[key]))
	}
	return strings.Join(parts, " ")
}

func (e LogEntry) attrKeys() []string {
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Context renders the entry's correlation fields and attributes as
// space-separated key=value pairs in a stable order.
func (e LogEntry) Context() string {
	var parts []string
	if e.Component != "" {
		parts = append(parts, "component="+e.Component)
	}
	if e.RequestID != "" {
		parts = append(parts, "request_id="+e.RequestID)
	}
	if e.TaskID != 0 {
		parts = append(parts, "task_id="+strconv.FormatInt(e.TaskID, 10))
	}
	for _, key := range e.attrKeys() {
		parts = append(parts, fmt.Sprintf("%s=%v", key, e.Attrs[key]))
	}
	return strings.Join(parts, " ")
}

// Export formats accepted by WriteLogEntries.
const (
	ExportJSON = "json"
	ExportText = "text"
	ExportCSV  = "csv"
)

// WriteLogEntries writes entries to w as json, text, or csv.
func WriteLogEntries(w io.Writer, entries []LogEntry, format string) error {
	switch strings.ToLower(format) {
	case ExportJSON:
		if entries == nil {
			entries = []LogEntry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case ExportText:
		return writeText(w, entries)
	case ExportCSV:
		return writeCSV(w, entries)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: json, text, csv)", format)
	}
}

// writeText writes one "[TIMESTAMP] LEVEL message key=value..." line per entry.
func writeText(w io.Writer, entries []LogEntry) error {
	for _, entry := range entries {
		line := fmt.Sprintf("[%s] %s %s", entry.Timestamp.Format("2006-01-02 15:04:05.000"), entry.Level, entry.Message)
		if ctx := entry.Context(); ctx != "" {
			line += " " + ctx
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return fmt.Errorf("failed to write text entry: %w", err)
		}
	}
	return nil
}

func writeCSV(w io.Writer, entries []LogEntry) error {
	writer := csv.NewWriter(w)

	header := []string{"timestamp", "level", "message", "component", "request_id", "task_id", "attrs"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, entry := range entries {
		attrs := ""
		if len(entry.Attrs) > 0 {
			if b, err := json.Marshal(entry.Attrs); err == nil {
				attrs = string(b)
			}
		}
		taskID := ""
		if entry.TaskID != 0 {
			taskID = strconv.FormatInt(entry.TaskID, 10)
		}
		record := []string{
			entry.Timestamp.Format(time.RFC3339Nano),
			entry.Level,
			entry.Message,
			entry.Component,
			entry.RequestID,
			taskID,
			attrs,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
