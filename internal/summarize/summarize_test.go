package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/TobiSchelling/pharmabrief/internal/llm"
)

// mockProvider implements llm.Provider for testing.
type mockProvider struct {
	response string
	err      error
	got      llm.Request
}

func (m *mockProvider) Complete(_ context.Context, req llm.Request) (string, error) {
	m.got = req
	return m.response, m.err
}

func TestSummarizeSendsInstructionAsSystem(t *testing.T) {
	p := &mockProvider{response: "  - point one\n- point two  \n"}
	s := New(p, Options{Temperature: 0.1, MaxTokens: 512})

	sum := s.Summarize(context.Background(), "page text", NewsInstruction)
	if sum.Failed() {
		t.Fatalf("unexpected failure: %v", sum.Failure)
	}
	if sum.Text != "- point one\n- point two" {
		t.Errorf("expected trimmed output, got %q", sum.Text)
	}
	if p.got.System != NewsInstruction || p.got.User != "page text" {
		t.Errorf("unexpected request: %+v", p.got)
	}
	if p.got.Temperature != 0.1 || p.got.MaxTokens != 512 {
		t.Errorf("unexpected tuning: %+v", p.got)
	}
}

func TestSummarizeProviderError(t *testing.T) {
	s := New(&mockProvider{err: errors.New("503 service unavailable")}, Options{})

	sum := s.Summarize(context.Background(), "text", LatestInstruction)
	if !sum.Failed() || sum.Failure.Reason != ReasonProvider {
		t.Fatalf("expected provider failure, got %+v", sum)
	}
	if sum.Text != "" {
		t.Errorf("failed summary must not carry text, got %q", sum.Text)
	}
	if got := fmt.Sprintf("%v", sum); got != "Error summarizing content: "+sum.Failure.Error() {
		t.Errorf("unexpected log form: %q", got)
	}
	if !strings.Contains(fmt.Sprint(sum), "503 service unavailable") {
		t.Errorf("log form should carry the provider error, got %q", fmt.Sprint(sum))
	}
}

func TestSummaryStringOnSuccess(t *testing.T) {
	sum := Summary{Text: "Phase 3 readout positive."}
	if fmt.Sprint(sum) != "Phase 3 readout positive." {
		t.Errorf("unexpected string form: %q", fmt.Sprint(sum))
	}
}

func TestSummarizeEmptyCompletion(t *testing.T) {
	s := New(&mockProvider{response: "   "}, Options{})

	sum := s.Summarize(context.Background(), "text", LatestInstruction)
	if !sum.Failed() || sum.Failure.Reason != ReasonEmpty {
		t.Fatalf("expected empty failure, got %+v", sum)
	}
	if !errors.Is(sum.Failure, llm.ErrEmptyCompletion) {
		t.Errorf("expected wrapped ErrEmptyCompletion, got %v", sum.Failure.Err)
	}
}

func TestSummarizeWithoutProvider(t *testing.T) {
	sum := New(nil, Options{}).Summarize(context.Background(), "text", LatestInstruction)
	if !sum.Failed() || sum.Failure.Reason != ReasonNoProvider {
		t.Fatalf("expected no-provider failure, got %+v", sum)
	}
}

func TestSummarizeTruncatesInput(t *testing.T) {
	p := &mockProvider{response: "ok"}
	s := New(p, Options{MaxInputChars: 5})

	s.Summarize(context.Background(), "ééééééééé", NewsInstruction)
	if p.got.User != "ééééé" {
		t.Errorf("expected rune-safe truncation, got %q", p.got.User)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abc", 0); got != "abc" {
		t.Errorf("zero limit should disable truncation, got %q", got)
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Errorf("short text should be unchanged, got %q", got)
	}
	if got := Truncate("abcdef", 3); got != "abc" {
		t.Errorf("expected %q, got %q", "abc", got)
	}
}
