package decompose

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		wantKind Kind
		want     []string
	}{
		{
			name:     "plain JSON object",
			reply:    `{"subtasks": ["Buy flour", "Mix dough", "Bake"]}`,
			wantKind: KindParsed,
			want:     []string{"Buy flour", "Mix dough", "Bake"},
		},
		{
			name:     "prose before tagged fence",
			reply:    "Here you go:\n```json\n{\"subtasks\": [\"Buy flour\", \"Mix dough\", \"Bake\"]}\n```",
			wantKind: KindParsed,
			want:     []string{"Buy flour", "Mix dough", "Bake"},
		},
		{
			name:     "prose after the object",
			reply:    `{"subtasks": ["A"]} Let me know if you need more detail.`,
			wantKind: KindParsed,
			want:     []string{"A"},
		},
		{
			name:     "no JSON at all",
			reply:    "Sorry, I cannot help with that.",
			wantKind: KindNoJSON,
			want:     []string{MsgNoJSON},
		},
		{
			name:     "empty reply",
			reply:    "   ",
			wantKind: KindNoJSON,
			want:     []string{MsgNoJSON},
		},
		{
			name:     "closing brace before opening brace",
			reply:    "} nothing here {",
			wantKind: KindNoJSON,
			want:     []string{MsgNoJSON},
		},
		{
			name:     "only an opening brace",
			reply:    `{"subtasks": ["A"`,
			wantKind: KindNoJSON,
			want:     []string{MsgNoJSON},
		},
		{
			name:     "trailing comma",
			reply:    `{"subtasks": ["A", "B",}`,
			wantKind: KindMalformedJSON,
			want:     []string{MsgMalformedJSON},
		},
		{
			name:     "unquoted key",
			reply:    `{subtasks: ["A"]}`,
			wantKind: KindMalformedJSON,
			want:     []string{MsgMalformedJSON},
		},
		{
			name:     "two objects joined by prose",
			reply:    `{"subtasks": ["A"]} or maybe {"subtasks": ["B"]}`,
			wantKind: KindMalformedJSON,
			want:     []string{MsgMalformedJSON},
		},
		{
			name:     "missing field yields empty list",
			reply:    `{"other_field": 1}`,
			wantKind: KindParsed,
			want:     []string{},
		},
		{
			name:     "null field yields empty list",
			reply:    `{"subtasks": null}`,
			wantKind: KindParsed,
			want:     []string{},
		},
		{
			name:     "explicit empty list",
			reply:    `{"subtasks": []}`,
			wantKind: KindParsed,
			want:     []string{},
		},
		{
			name:     "bare string becomes one subtask",
			reply:    `{"subtasks": "  Do everything  "}`,
			wantKind: KindParsed,
			want:     []string{"Do everything"},
		},
		{
			name:     "number field is unexpected",
			reply:    `{"subtasks": 5}`,
			wantKind: KindUnexpected,
			want:     []string{MsgUnexpected},
		},
		{
			name:     "object field is unexpected",
			reply:    `{"subtasks": {"a": "b"}}`,
			wantKind: KindUnexpected,
			want:     []string{MsgUnexpected},
		},
		{
			name:     "elements coerced to text",
			reply:    `{"subtasks": [1, 2.5, true, null, {"a": 1}, ["x"], "  padded  "]}`,
			wantKind: KindParsed,
			want:     []string{"1", "2.5", "true", `{"a":1}`, `["x"]`, "padded"},
		},
		{
			name:     "duplicates and order preserved",
			reply:    `{"subtasks": ["b", "a", "b"]}`,
			wantKind: KindParsed,
			want:     []string{"b", "a", "b"},
		},
		{
			name:     "nested braces inside strings",
			reply:    `Result: {"subtasks": ["Write {config}", "Test"]} done`,
			wantKind: KindParsed,
			want:     []string{"Write {config}", "Test"},
		},
		{
			name:     "uppercase fence tag falls back to boundary extraction",
			reply:    "```JSON\n{\"subtasks\": [\"A\"]}\n```",
			wantKind: KindParsed,
			want:     []string{"A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Extract(tt.reply, DefaultMaxSubtaskLength)
			if out.Kind != tt.wantKind {
				t.Fatalf("Kind = %v, want %v (err: %v)", out.Kind, tt.wantKind, out.Err)
			}
			if diff := cmp.Diff(tt.want, out.List()); diff != "" {
				t.Errorf("List() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtract_FenceStrippingIsTransparent(t *testing.T) {
	object := `{"subtasks": ["Plan route", "Pack bags", "Leave early"]}`
	want := Extract(object, DefaultMaxSubtaskLength).List()

	wrappers := map[string]string{
		"json fence":             "```json\n" + object + "\n```",
		"plain fence":            "```\n" + object + "\n```",
		"json fence with spaces": "  \n```json\n" + object + "\n```\n  ",
		"json fence one line":    "```json" + object + "```",
	}

	for name, reply := range wrappers {
		t.Run(name, func(t *testing.T) {
			out := Extract(reply, DefaultMaxSubtaskLength)
			if !out.OK() {
				t.Fatalf("expected parsed outcome, got %v (err: %v)", out.Kind, out.Err)
			}
			if diff := cmp.Diff(want, out.List()); diff != "" {
				t.Errorf("fenced result differs from bare object (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtract_LengthCap(t *testing.T) {
	long := strings.Repeat("x", 300)

	t.Run("default cap", func(t *testing.T) {
		out := Extract(`{"subtasks": ["`+long+`"]}`, DefaultMaxSubtaskLength)
		if got := len([]rune(out.Subtasks[0])); got != DefaultMaxSubtaskLength {
			t.Errorf("subtask length = %d, want %d", got, DefaultMaxSubtaskLength)
		}
	})

	t.Run("custom cap", func(t *testing.T) {
		out := Extract(`{"subtasks": ["`+long+`"]}`, 20)
		if got := len([]rune(out.Subtasks[0])); got != 20 {
			t.Errorf("subtask length = %d, want 20", got)
		}
	})

	t.Run("non-positive cap uses default", func(t *testing.T) {
		out := Extract(`{"subtasks": ["`+long+`"]}`, 0)
		if got := len([]rune(out.Subtasks[0])); got != DefaultMaxSubtaskLength {
			t.Errorf("subtask length = %d, want %d", got, DefaultMaxSubtaskLength)
		}
	})

	t.Run("trimmed before capping", func(t *testing.T) {
		out := Extract(`{"subtasks": ["   abcdef   "]}`, 3)
		if diff := cmp.Diff([]string{"abc"}, out.Subtasks); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("cap counts characters", func(t *testing.T) {
		out := Extract(`{"subtasks": ["日本語テスト"]}`, 2)
		if diff := cmp.Diff([]string{"日本"}, out.Subtasks); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestExtract_Idempotent(t *testing.T) {
	replies := []string{
		"```json\n{\"subtasks\": [\"a\", \"b\"]}\n```",
		"nothing",
		`{"subtasks": [1,}`,
		`{"other": true}`,
	}
	for _, reply := range replies {
		first := Extract(reply, DefaultMaxSubtaskLength)
		second := Extract(reply, DefaultMaxSubtaskLength)
		if first.Kind != second.Kind {
			t.Errorf("Extract(%q) kind changed between runs: %v then %v", reply, first.Kind, second.Kind)
		}
		if diff := cmp.Diff(first.List(), second.List()); diff != "" {
			t.Errorf("Extract(%q) not idempotent (-first +second):\n%s", reply, diff)
		}
	}
}

func TestTransportFailure(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	out := TransportFailure(cause)

	if out.Kind != KindTransportFailure {
		t.Fatalf("Kind = %v, want %v", out.Kind, KindTransportFailure)
	}
	if !errors.Is(out.Err, cause) {
		t.Errorf("Err = %v, want %v", out.Err, cause)
	}
	if diff := cmp.Diff([]string{MsgTransportFailure}, out.List()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestDiagnosticsAreDistinct(t *testing.T) {
	seen := make(map[string]Kind)
	for _, kind := range []Kind{KindTransportFailure, KindNoJSON, KindMalformedJSON, KindUnexpected} {
		msg := Outcome{Kind: kind}.Diagnostic()
		if msg == "" {
			t.Errorf("%v has an empty diagnostic", kind)
		}
		if prev, dup := seen[msg]; dup {
			t.Errorf("%v and %v share diagnostic %q", prev, kind, msg)
		}
		seen[msg] = kind
	}
	if got := (Outcome{Kind: KindParsed}).Diagnostic(); got != "" {
		t.Errorf("parsed outcome diagnostic = %q, want empty", got)
	}
}

func TestOutcomeList_ReturnsCopy(t *testing.T) {
	out := parsed([]string{"a", "b"})
	list := out.List()
	list[0] = "changed"
	if out.Subtasks[0] != "a" {
		t.Error("mutating List() result changed the outcome")
	}
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		KindParsed:           "parsed",
		KindTransportFailure: "transport_failure",
		KindNoJSON:           "no_json",
		KindMalformedJSON:    "malformed_json",
		KindUnexpected:       "unexpected",
		Kind(99):             "unknown",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(kind), got, want)
		}
	}
}
