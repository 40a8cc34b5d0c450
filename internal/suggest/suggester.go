// Package suggest turns a task title into a short list of subtask candidates
// using an external text generator.
package suggest

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultCount is how many subtasks the prompt asks for.
	DefaultCount = 3

	// DefaultTimeout bounds one generator call when the caller sets no deadline.
	DefaultTimeout = 15 * time.Second

	// MaxInputLength caps title and description length, in runes.
	MaxInputLength = 1000
)

// Generator is an external text-generation capability.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options tune a Suggester. Zero values fall back to defaults.
type Options struct {
	Count    int
	MinCount int
	Timeout  time.Duration
}

// Suggester makes one best-effort suggestion attempt per call. It never
// retries; the caller decides whether to try again.
type Suggester struct {
	gen  Generator
	opts Options
}

func New(gen Generator, opts Options) *Suggester {
	if opts.Count <= 0 {
		opts.Count = DefaultCount
	}
	if opts.MinCount < 0 {
		opts.MinCount = 0
	}
	if opts.MinCount > opts.Count {
		opts.MinCount = opts.Count
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Suggester{gen: gen, opts: opts}
}

// Suggest asks the generator for subtasks of title and returns the cleaned
// candidates. Every failure after input validation is a *GenerationError.
func (s *Suggester) Suggest(ctx context.Context, title, description string) ([]string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("title is required"))
	}
	if utf8.RuneCountInString(title) > MaxInputLength || utf8.RuneCountInString(description) > MaxInputLength {
		return nil, errors.Join(ErrInvalidInput, errors.New("input is too long"))
	}
	if s.gen == nil {
		return nil, failed("no generator configured", nil)
	}

	prompt, err := BuildPrompt(title, description, s.opts.Count)
	if err != nil {
		return nil, failed("render prompt", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		switch {
		case errors.Is(err, ErrBlocked):
			return nil, failed("response blocked", err)
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, failed("generator timed out", err)
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, failed("request cancelled", err)
		default:
			return nil, failed("generator call failed", err)
		}
	}

	items := Parse(text)
	if err := Validate(items, s.opts.MinCount); err != nil {
		return nil, err
	}
	if len(items) > s.opts.Count {
		items = items[:s.opts.Count]
	}
	return items, nil
}
