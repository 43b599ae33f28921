// Package decompose turns a single task description into a short list of
// actionable subtasks by prompting a text-generating model and extracting a
// JSON list from its reply.
//
// The model's reply is untrusted. It may be wrapped in markdown fences,
// surrounded by commentary, malformed, missing the expected key, or absent
// altogether because the backend could not be reached. The package never
// returns an error or panics for any of these; every reply maps to an
// [Outcome]:
//
//	KindParsed            the normalized subtask list (possibly empty)
//	KindTransportFailure  the model call itself failed
//	KindNoJSON            no {...} span in the reply
//	KindMalformedJSON     a {...} span that is not valid JSON
//	KindUnexpected        anything else (bad field type, internal fault)
//
// [Outcome.List] collapses an Outcome to the plain string-sequence contract:
// failures become a single human-readable diagnostic string.
//
// # Pipeline
//
// [Extract] runs a strict linear pipeline with no retries:
//
//  1. trim the reply and strip markdown code fences when it opens with one
//  2. take the span from the first '{' to the last '}'
//  3. parse that span as a JSON object
//  4. read the "subtasks" field (absent means an empty list)
//  5. render each element as text, trim it, and cap it to the length limit
//
// # Usage
//
//	d := decompose.New(backend, decompose.DefaultOptions(), logger)
//	subtasks := d.Decompose(ctx, "Bake bread")
//
// [Decomposer] holds no mutable state and is safe for concurrent use.
package decompose
