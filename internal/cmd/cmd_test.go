package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zyrian-nova/todo-app/internal/ai"
	"github.com/zyrian-nova/todo-app/internal/config"
	"github.com/zyrian-nova/todo-app/internal/logging"
	"gopkg.in/yaml.v3"
)

// fakeBackend is an ai.Backend that never leaves the process.
type fakeBackend struct {
	reply string
	err   error

	mu      sync.Mutex
	prompts []string
	temps   []float64
}

func (f *fakeBackend) Name() ai.BackendName { return ai.BackendOllama }
func (f *fakeBackend) DisplayName() string  { return "Fake" }
func (f *fakeBackend) Model() string        { return "fake-model" }

func (f *fakeBackend) Generate(_ context.Context, prompt string, temperature float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.temps = append(f.temps, temperature)
	return f.reply, f.err
}

// useBackend routes newDecomposer to fake for the duration of the test.
func useBackend(t *testing.T, fake *fakeBackend) {
	t.Helper()
	original := newBackend
	newBackend = func(*config.Config) (ai.Backend, error) { return fake, nil }
	t.Cleanup(func() { newBackend = original })
}

// isolate gives each test a clean viper, an empty config dir, and default flags.
func isolate(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("OPENAI_API_KEY", "")
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	// Reset dropped the persistent-flag bindings made in init.
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("ai.backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("store.path", serveCmd.Flags().Lookup("db"))
	_ = viper.BindPFlag("decompose.min_subtasks", decomposeCmd.Flags().Lookup("min"))
	_ = viper.BindPFlag("decompose.max_subtasks", decomposeCmd.Flags().Lookup("max"))
	_ = viper.BindPFlag("decompose.temperature", decomposeCmd.Flags().Lookup("temperature"))
}

// resetFlags restores every flag in the command tree to its default.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCommand runs a cobra command with args and returns captured stdout and stderr
func executeCommand(root *cobra.Command, args ...string) (stdout, stderr string, err error) {
	outBuf, errBuf := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(outBuf)
	root.SetErr(errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "todo" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "todo")
	}

	cmdMap := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		cmdMap[c.Name()] = true
	}
	for _, expected := range []string{"serve", "decompose", "logs", "config"} {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestDecomposeCommand_Text(t *testing.T) {
	isolate(t)
	fake := &fakeBackend{reply: "```json\n{\"subtasks\": [\"Buy flour\", \"Mix dough\", \"Bake\"]}\n```"}
	useBackend(t, fake)

	stdout, _, err := executeCommand(rootCmd, "decompose", "Bake", "bread")
	if err != nil {
		t.Fatalf("decompose error = %v", err)
	}

	plain := stripANSI(stdout)
	for _, want := range []string{"Subtasks for: Bake bread", "1. Buy flour", "2. Mix dough", "3. Bake", "3 subtasks"} {
		if !strings.Contains(plain, want) {
			t.Errorf("output missing %q:\n%s", want, plain)
		}
	}
	if len(fake.prompts) != 1 || !strings.Contains(fake.prompts[0], "Main task: Bake bread") {
		t.Errorf("prompts = %q", fake.prompts)
	}
	if fake.temps[0] != 0.7 {
		t.Errorf("temperature = %v, want default 0.7", fake.temps[0])
	}
}

func TestDecomposeCommand_JSON(t *testing.T) {
	isolate(t)
	useBackend(t, &fakeBackend{reply: `{"subtasks": ["A", "B"]}`})

	stdout, _, err := executeCommand(rootCmd, "decompose", "--format", "json", "Do it")
	if err != nil {
		t.Fatalf("decompose error = %v", err)
	}

	var got decomposeResult
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	want := decomposeResult{Task: "Do it", Subtasks: []string{"A", "B"}, Count: 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestDecomposeCommand_YAML(t *testing.T) {
	isolate(t)
	useBackend(t, &fakeBackend{reply: `{"subtasks": ["A"]}`})

	stdout, _, err := executeCommand(rootCmd, "decompose", "-f", "yaml", "Do it")
	if err != nil {
		t.Fatalf("decompose error = %v", err)
	}

	var got decomposeResult
	if err := yaml.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, stdout)
	}
	if got.Count != 1 || got.Subtasks[0] != "A" {
		t.Errorf("result = %+v", got)
	}
}

func TestDecomposeCommand_FlagsOverrideConfig(t *testing.T) {
	isolate(t)
	fake := &fakeBackend{reply: `{"subtasks": []}`}
	useBackend(t, fake)

	_, _, err := executeCommand(rootCmd, "decompose", "--min", "2", "--max", "8", "--temperature", "0.1", "task")
	if err != nil {
		t.Fatalf("decompose error = %v", err)
	}
	if !strings.Contains(fake.prompts[0], "2-8 specific") {
		t.Errorf("prompt did not use flag bounds:\n%s", fake.prompts[0])
	}
	if fake.temps[0] != 0.1 {
		t.Errorf("temperature = %v, want 0.1", fake.temps[0])
	}
}

func TestDecomposeCommand_Diagnostic(t *testing.T) {
	isolate(t)
	useBackend(t, &fakeBackend{err: errors.New("connection refused")})

	stdout, stderr, err := executeCommand(rootCmd, "decompose", "task")
	if !errors.Is(err, errDecomposeFailed) {
		t.Fatalf("error = %v, want errDecomposeFailed", err)
	}
	if !strings.Contains(stripANSI(stderr), "AI subtask generation failed") {
		t.Errorf("stderr missing diagnostic:\n%s", stderr)
	}
	if strings.Contains(stdout, "Subtasks for") {
		t.Errorf("diagnostic printed as a result:\n%s", stdout)
	}
}

func TestDecomposeCommand_InvalidFormat(t *testing.T) {
	isolate(t)
	fake := &fakeBackend{}
	useBackend(t, fake)

	if _, _, err := executeCommand(rootCmd, "decompose", "--format", "xml", "task"); err == nil {
		t.Fatal("expected an error for --format xml")
	}
	if len(fake.prompts) != 0 {
		t.Error("model was called despite an invalid format")
	}
}

func TestDecomposeCommand_InvalidConfig(t *testing.T) {
	isolate(t)
	useBackend(t, &fakeBackend{})
	t.Setenv("TODO_DECOMPOSE_TEMPERATURE", "9")

	_, _, err := executeCommand(rootCmd, "decompose", "task")
	if err == nil || !strings.Contains(err.Error(), "decompose.temperature") {
		t.Errorf("error = %v, want a decompose.temperature validation error", err)
	}
}

func TestRenderText_Width(t *testing.T) {
	result := decomposeResult{
		Task:     "Long",
		Subtasks: []string{strings.Repeat("w", 80)},
		Count:    1,
	}
	for _, line := range strings.Split(strings.TrimRight(stripANSI(renderText(result, 20)), "\n"), "\n") {
		if n := len([]rune(line)); n > 20 {
			t.Errorf("line %q has %d columns, want <= 20", line, n)
		}
	}
}

func TestRenderText_Empty(t *testing.T) {
	out := stripANSI(renderText(decomposeResult{Task: "x", Subtasks: []string{}}, 0))
	if !strings.Contains(out, "no subtasks") {
		t.Errorf("empty result rendering = %q", out)
	}
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServe_StartsAndStops(t *testing.T) {
	isolate(t)
	useBackend(t, &fakeBackend{reply: `{"subtasks": ["x"]}`})
	t.Setenv("TODO_SERVER_HOST", "127.0.0.1")
	t.Setenv("TODO_SERVER_PORT", "0")
	t.Setenv("TODO_STORE_PATH", ":memory:")
	initConfig()

	out := &syncBuffer{}
	c := &cobra.Command{}
	c.SetOut(out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- serve(ctx, c) }()

	addrPattern := regexp.MustCompile(`Listening on (http://\S+)`)
	var base string
	deadline := time.Now().Add(5 * time.Second)
	for base == "" {
		if m := addrPattern.FindStringSubmatch(out.String()); m != nil {
			base = m[1]
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start; output:\n%s", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	var resp *http.Response
	var err error
	for {
		resp, err = http.Get(base + "/")
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("GET / failed: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET / status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}

const testLog = `{"time":"2026-01-15T10:00:00Z","level":"INFO","msg":"request","component":"server","request_id":"r1","status":200}
{"time":"2026-01-15T10:00:01Z","level":"WARN","msg":"subtask generation failed","component":"decompose","request_id":"r2","task_id":9}
{"time":"2026-01-15T10:00:02Z","level":"ERROR","msg":"request","component":"server","request_id":"r2","status":502}
`

func writeTestLog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, logging.LogFileName), []byte(testLog), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLogsCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains []string
		excludes []string
	}{
		{
			name:     "all entries",
			args:     nil,
			contains: []string{"[INFO]", "[WARN]", "[ERROR]", "task_id=9"},
		},
		{
			name:     "by request",
			args:     []string{"--request", "r2"},
			contains: []string{"subtask generation failed", "status=502"},
			excludes: []string{"status=200"},
		},
		{
			name:     "by task",
			args:     []string{"--task", "9"},
			contains: []string{"subtask generation failed"},
			excludes: []string{"status="},
		},
		{
			name:     "by level",
			args:     []string{"--level", "error"},
			contains: []string{"status=502"},
			excludes: []string{"[WARN]"},
		},
		{
			name:     "tail",
			args:     []string{"-n", "1"},
			contains: []string{"[ERROR]"},
			excludes: []string{"[INFO]", "[WARN]"},
		},
		{
			name:     "grep",
			args:     []string{"--grep", "generation"},
			contains: []string{"[WARN]"},
			excludes: []string{"[INFO]"},
		},
		{
			name:     "no matches",
			args:     []string{"--component", "store"},
			contains: []string{"No matching log entries found."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			dir := writeTestLog(t)

			stdout, _, err := executeCommand(rootCmd, append([]string{"logs", "--dir", dir}, tt.args...)...)
			if err != nil {
				t.Fatalf("logs error = %v", err)
			}
			plain := stripANSI(stdout)
			for _, want := range tt.contains {
				if !strings.Contains(plain, want) {
					t.Errorf("output missing %q:\n%s", want, plain)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(plain, unwanted) {
					t.Errorf("output unexpectedly contains %q:\n%s", unwanted, plain)
				}
			}
		})
	}
}

func TestLogsCommand_JSON(t *testing.T) {
	isolate(t)
	dir := writeTestLog(t)

	stdout, _, err := executeCommand(rootCmd, "logs", "--dir", dir, "--component", "server", "--format", "json")
	if err != nil {
		t.Fatalf("logs error = %v", err)
	}
	var entries []logging.LogEntry
	if err := json.Unmarshal([]byte(stdout), &entries); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}
}

func TestLogsCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad format", []string{"--format", "xml"}},
		{"bad since", []string{"--since", "yesterday"}},
		{"bad grep", []string{"--grep", "("}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			dir := writeTestLog(t)
			if _, _, err := executeCommand(rootCmd, append([]string{"logs", "--dir", dir}, tt.args...)...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLogsCommand_NoDirectory(t *testing.T) {
	isolate(t)

	stdout, _, err := executeCommand(rootCmd, "logs")
	if err != nil {
		t.Fatalf("logs error = %v", err)
	}
	if !strings.Contains(stdout, "No log directory configured") {
		t.Errorf("output = %q", stdout)
	}
}

func TestLogsCommand_MissingFile(t *testing.T) {
	isolate(t)

	stdout, _, err := executeCommand(rootCmd, "logs", "--dir", t.TempDir())
	if err != nil {
		t.Fatalf("logs error = %v", err)
	}
	if !strings.Contains(stdout, "No logs found") {
		t.Errorf("output = %q", stdout)
	}
}

func TestFollowLogs(t *testing.T) {
	dir := writeTestLog(t)
	path := filepath.Join(dir, logging.LogFileName)

	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- followLogs(ctx, out, path, logging.LogFilter{Component: "decompose"}) }()

	waitFor := func(want string) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for !strings.Contains(stripANSI(out.String()), want) {
			if time.Now().After(deadline) {
				t.Fatalf("timed out waiting for %q; output:\n%s", want, out.String())
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
	waitFor("Following")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(`{"time":"2026-01-15T10:00:05Z","level":"INFO","msg":"request","component":"server"}` + "\n")
	_, _ = f.WriteString(`{"time":"2026-01-15T10:00:06Z","level":"INFO","msg":"subtasks generated","component":"decompose","count":4}` + "\n")
	_ = f.Close()

	waitFor("subtasks generated")
	cancel()
	if err := <-done; err != nil {
		t.Errorf("followLogs returned %v", err)
	}

	plain := stripANSI(out.String())
	if strings.Contains(plain, "subtask generation failed") {
		t.Error("follow replayed entries written before it started")
	}
	if strings.Contains(plain, "[INFO] request") {
		t.Error("follow ignored the component filter")
	}
}
