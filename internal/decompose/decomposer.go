package decompose

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zyrian-nova/todo-app/internal/logging"
	"github.com/zyrian-nova/todo-app/internal/util"
)

const (
	// DefaultMinSubtasks is the lower bound requested from the model.
	DefaultMinSubtasks = 3
	// DefaultMaxSubtasks is the upper bound requested from the model.
	DefaultMaxSubtasks = 5
	// DefaultMaxSubtaskLength caps each subtask, in characters.
	DefaultMaxSubtaskLength = 100
	// DefaultTemperature is the sampling temperature sent with the prompt.
	DefaultTemperature = 0.7

	// replyPreviewLen bounds how much of a reply is logged for NoJSON.
	replyPreviewLen = 200
)

// Generator is the model backend: one prompt in, one reply out, or an error
// when the call itself failed. Timeouts belong to the Generator.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, temperature float64) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	return f(ctx, prompt, temperature)
}

// Options configures a Decomposer.
type Options struct {
	MinSubtasks      int
	MaxSubtasks      int
	MaxSubtaskLength int
	// Temperature is passed to the Generator unchanged; zero is valid.
	Temperature float64
}

// DefaultOptions returns the stock decomposition settings.
func DefaultOptions() Options {
	return Options{
		MinSubtasks:      DefaultMinSubtasks,
		MaxSubtasks:      DefaultMaxSubtasks,
		MaxSubtaskLength: DefaultMaxSubtaskLength,
		Temperature:      DefaultTemperature,
	}
}

func (o Options) normalized() Options {
	if o.MinSubtasks <= 0 {
		o.MinSubtasks = DefaultMinSubtasks
	}
	if o.MaxSubtasks <= 0 {
		o.MaxSubtasks = DefaultMaxSubtasks
	}
	if o.MaxSubtasks < o.MinSubtasks {
		o.MaxSubtasks = o.MinSubtasks
	}
	if o.MaxSubtaskLength <= 0 {
		o.MaxSubtaskLength = DefaultMaxSubtaskLength
	}
	return o
}

// Decomposer runs one model call per task and extracts the subtask list.
// It holds no mutable state and is safe for concurrent use.
type Decomposer struct {
	gen    Generator
	opts   Options
	logger *logging.Logger
}

// New creates a Decomposer. A nil logger discards output.
// Panics if gen is nil (programmer error).
func New(gen Generator, opts Options, logger *logging.Logger) *Decomposer {
	if gen == nil {
		panic("decompose: generator is required")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Decomposer{
		gen:    gen,
		opts:   opts.normalized(),
		logger: logger.WithComponent("decompose"),
	}
}

// Options returns the effective settings after defaults were applied.
func (d *Decomposer) Options() Options {
	return d.opts
}

// Decompose returns the subtasks for task. Failures yield a single
// diagnostic string; a well-formed reply without subtasks yields an empty
// slice.
func (d *Decomposer) Decompose(ctx context.Context, task string) []string {
	return d.Run(ctx, task).List()
}

// Run performs exactly one Generator call for task and returns the tagged
// outcome. It never panics.
func (d *Decomposer) Run(ctx context.Context, task string) (out Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = unexpected(fmt.Sprintf("decomposition panicked: %v", r), nil)
			d.logOutcome(out, "", time.Since(start))
		}
	}()

	task = strings.TrimSpace(task)
	prompt := BuildPrompt(task, d.opts.MinSubtasks, d.opts.MaxSubtasks)
	d.logger.Debug("generating subtasks", "task", task)

	reply, err := d.gen.Generate(ctx, prompt, d.opts.Temperature)
	if err != nil {
		out = TransportFailure(err)
	} else {
		out = Extract(reply, d.opts.MaxSubtaskLength)
	}

	d.logOutcome(out, reply, time.Since(start))
	return out
}

// logOutcome records which terminal state was reached. A panicking log sink
// must not change the result, so it is recovered here.
func (d *Decomposer) logOutcome(out Outcome, reply string, elapsed time.Duration) {
	defer func() { _ = recover() }()

	attrs := []any{"outcome", out.Kind.String(), "duration_ms", elapsed.Milliseconds()}
	if out.Err != nil {
		attrs = append(attrs, "error", out.Err.Error())
	}

	switch out.Kind {
	case KindParsed:
		d.logger.Info("subtasks generated", append(attrs, "count", len(out.Subtasks))...)
	case KindTransportFailure:
		d.logger.Error("model call failed", attrs...)
	case KindNoJSON:
		d.logger.Warn("no JSON object in model reply",
			append(attrs, "reply", util.TruncateString(reply, replyPreviewLen))...)
	case KindMalformedJSON:
		d.logger.Error("could not parse model reply", append(attrs, "reply", reply)...)
	default:
		d.logger.Error("subtask extraction failed", append(attrs, "reason", out.Reason)...)
	}
}
