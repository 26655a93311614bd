package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/TobiSchelling/pharmabrief/internal/llm"
	"github.com/TobiSchelling/pharmabrief/internal/logger"
)

// Instructions for the two summary shapes.
const (
	LatestInstruction = "Extract the most recent and important information about this drug in 3 bullet points. Focus on updates from the last 12 months."
	NewsInstruction   = "Summarize this pharmaceutical news in 3 bullet points focusing on drug development aspects."
)

// Reason classifies a failed summarization.
type Reason string

const (
	ReasonProvider   Reason = "provider"
	ReasonEmpty      Reason = "empty"
	ReasonNoProvider Reason = "no_provider"
)

var errNoProvider = errors.New("no LLM provider configured")

// Failure describes a failed summarization.
type Failure struct {
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("summarize %s: %v", f.Reason, f.Err)
	}
	return fmt.Sprintf("summarize %s", f.Reason)
}

func (f *Failure) Unwrap() error { return f.Err }

// Summary is the outcome of one model call. A failed summary must never be
// treated as content.
type Summary struct {
	Text    string
	Failure *Failure
}

// Failed reports whether the model call did not produce text.
func (s Summary) Failed() bool { return s.Failure != nil }

// String is the log form of s. Failures render with an error marker.
func (s Summary) String() string {
	if s.Failed() {
		return "Error summarizing content: " + s.Failure.Error()
	}
	return s.Text
}

// Options tunes model calls.
type Options struct {
	Temperature   float64
	MaxTokens     int
	MaxInputChars int
	Timeout       time.Duration
}

// Summarizer turns text plus an instruction into a concise model response.
type Summarizer struct {
	provider llm.Provider
	opts     Options
}

// New creates a new summarizer.
func New(provider llm.Provider, opts Options) *Summarizer {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1024
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Summarizer{provider: provider, opts: opts}
}

// Summarize sends instruction as the system message and text as the user
// message. It never returns an error; failures are carried in the Summary.
func (s *Summarizer) Summarize(ctx context.Context, text, instruction string) Summary {
	if s == nil || s.provider == nil {
		return Summary{Failure: &Failure{Reason: ReasonNoProvider, Err: errNoProvider}}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	out, err := s.provider.Complete(ctx, llm.Request{
		System:      instruction,
		User:        Truncate(text, s.opts.MaxInputChars),
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		logger.Log.Warnf("Summarization failed: %v", err)
		return Summary{Failure: &Failure{Reason: ReasonProvider, Err: err}}
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return Summary{Failure: &Failure{Reason: ReasonEmpty, Err: llm.ErrEmptyCompletion}}
	}
	return Summary{Text: out}
}

// Truncate cuts text to at most limit characters. A limit of zero or less
// disables truncation.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}
