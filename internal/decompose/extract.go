package decompose

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zyrian-nova/todo-app/internal/util"
)

const (
	jsonFence     = "```json"
	plainFence    = "```"
	subtasksField = "subtasks"
)

var errNoObject = errors.New("reply contains no {...} span")

// TransportFailure returns the outcome for a model call that failed before
// producing a reply (network error, timeout, unavailable backend).
func TransportFailure(err error) Outcome {
	return Outcome{Kind: KindTransportFailure, Err: err}
}

// Extract turns a raw model reply into an Outcome. Each subtask is trimmed
// and capped to maxLen runes; a non-positive maxLen selects
// DefaultMaxSubtaskLength. Extract is pure and never panics.
func Extract(reply string, maxLen int) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = unexpected(fmt.Sprintf("extraction panicked: %v", r), nil)
		}
	}()

	if maxLen <= 0 {
		maxLen = DefaultMaxSubtaskLength
	}

	text := stripFences(reply)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return Outcome{Kind: KindNoJSON, Err: errNoObject}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil {
		return Outcome{Kind: KindMalformedJSON, Err: err}
	}

	raw, ok := obj[subtasksField]
	if !ok {
		return parsed([]string{})
	}

	items, err := decodeSubtasks(raw)
	if err != nil {
		return unexpected("subtasks field has an unsupported type", err)
	}

	subtasks := make([]string, 0, len(items))
	for _, item := range items {
		subtasks = append(subtasks, util.CapRunes(strings.TrimSpace(item), maxLen))
	}
	return parsed(subtasks)
}

// stripFences trims the reply and removes markdown code fences when the
// reply opens with one. A ```json opener removes every ```json and ```
// marker; a plain ``` opener removes every ``` marker.
func stripFences(reply string) string {
	text := strings.TrimSpace(reply)
	switch {
	case strings.HasPrefix(text, jsonFence):
		text = strings.ReplaceAll(text, jsonFence, "")
		text = strings.ReplaceAll(text, plainFence, "")
	case strings.HasPrefix(text, plainFence):
		text = strings.ReplaceAll(text, plainFence, "")
	}
	return strings.TrimSpace(text)
}

// decodeSubtasks renders the "subtasks" value as a list of strings.
// null is an empty list and a bare string is a one-element list.
// Null elements inside the list are dropped.
func decodeSubtasks(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []string{}, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return []string{s}, nil
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(elems))
		for _, elem := range elems {
			text, ok, err := elementText(elem)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, text)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list, got %s", util.TruncateString(string(raw), 40))
	}
}

// elementText returns the textual form of one list element: strings as-is,
// numbers and booleans as their JSON literal, objects and arrays as compact
// JSON. ok is false for null.
//
// Non-string elements are rendered in JSON notation, so a boolean becomes
// "true" rather than "True", and null elements are dropped instead of being
// kept as a "None" subtask.
func elementText(elem json.RawMessage) (text string, ok bool, err error) {
	elem = bytes.TrimSpace(elem)
	if len(elem) == 0 || bytes.Equal(elem, []byte("null")) {
		return "", false, nil
	}

	switch elem[0] {
	case '"':
		if err := json.Unmarshal(elem, &text); err != nil {
			return "", false, err
		}
		return text, true, nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, elem); err != nil {
			return "", false, err
		}
		return buf.String(), true, nil
	default:
		return string(elem), true, nil
	}
}
