package decompose

// Kind identifies which terminal state of the extraction pipeline an
// Outcome reached.
type Kind int

const (
	// KindParsed means the reply held a JSON object; Subtasks is its list.
	KindParsed Kind = iota
	// KindTransportFailure means the model call failed before any reply.
	KindTransportFailure
	// KindNoJSON means the reply contained no {...} span.
	KindNoJSON
	// KindMalformedJSON means the {...} span failed to parse.
	KindMalformedJSON
	// KindUnexpected covers faults no other kind describes.
	KindUnexpected
)

// Diagnostic placeholders returned by Outcome.List for each failure kind.
const (
	MsgTransportFailure = "AI subtask generation failed"
	MsgNoJSON           = "response contained no recognizable JSON"
	MsgMalformedJSON    = "could not parse JSON response"
	MsgUnexpected       = "failed to generate subtasks"
)

// String returns the log name of the kind.
func (k Kind) String() string {
	switch k {
	case KindParsed:
		return "parsed"
	case KindTransportFailure:
		return "transport_failure"
	case KindNoJSON:
		return "no_json"
	case KindMalformedJSON:
		return "malformed_json"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Outcome is the result of one extraction. Only KindParsed carries
// Subtasks; the failure kinds carry Err (and Reason for KindUnexpected)
// for logging.
type Outcome struct {
	Kind     Kind
	Subtasks []string
	Reason   string
	Err      error
}

// OK reports whether the outcome holds real subtasks rather than a failure.
func (o Outcome) OK() bool {
	return o.Kind == KindParsed
}

// Diagnostic returns the placeholder text for a failure outcome, or "" for
// KindParsed.
func (o Outcome) Diagnostic() string {
	switch o.Kind {
	case KindParsed:
		return ""
	case KindTransportFailure:
		return MsgTransportFailure
	case KindNoJSON:
		return MsgNoJSON
	case KindMalformedJSON:
		return MsgMalformedJSON
	default:
		return MsgUnexpected
	}
}

// List collapses the outcome to a plain subtask sequence. Failures yield a
// single diagnostic string; a parsed outcome yields a copy of its list,
// which may be empty.
func (o Outcome) List() []string {
	if o.Kind != KindParsed {
		return []string{o.Diagnostic()}
	}
	out := make([]string, len(o.Subtasks))
	copy(out, o.Subtasks)
	return out
}

func parsed(subtasks []string) Outcome {
	return Outcome{Kind: KindParsed, Subtasks: subtasks}
}

func unexpected(reason string, err error) Outcome {
	return Outcome{Kind: KindUnexpected, Reason: reason, Err: err}
}
