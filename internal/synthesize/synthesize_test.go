package synthesize

import (
	"context"
	"errors"
	"testing"

	"github.com/TobiSchelling/pharmabrief/internal/brief"
	"github.com/TobiSchelling/pharmabrief/internal/llm"
	"github.com/TobiSchelling/pharmabrief/internal/summarize"
)

// mockProvider implements llm.Provider for testing.
type mockProvider struct {
	response string
	err      error
	calls    int
	got      llm.Request
}

func (m *mockProvider) Complete(_ context.Context, req llm.Request) (string, error) {
	m.calls++
	m.got = req
	return m.response, m.err
}

func TestExtractJoinsSummaries(t *testing.T) {
	p := &mockProvider{response: "Keytruda is a PD-1 inhibitor."}
	e := NewExtractor(summarize.New(p, summarize.Options{}))

	moa := e.Extract(context.Background(), "Keytruda", []string{"first", "  ", "second"})
	if moa != "Keytruda is a PD-1 inhibitor." {
		t.Errorf("unexpected MoA: %q", moa)
	}
	if p.got.User != "first\nsecond" {
		t.Errorf("expected newline-joined summaries, got %q", p.got.User)
	}
	want := "Identify the mechanism of action for Keytruda from these news summaries. Respond concisely in one sentence."
	if p.got.System != want {
		t.Errorf("unexpected instruction: %q", p.got.System)
	}
}

func TestExtractWithoutSummaries(t *testing.T) {
	p := &mockProvider{response: "unused"}
	e := NewExtractor(summarize.New(p, summarize.Options{}))

	if moa := e.Extract(context.Background(), "DrugY", nil); moa != brief.MoAUnavailable {
		t.Errorf("expected placeholder, got %q", moa)
	}
	if moa := e.Extract(context.Background(), "DrugY", []string{"", " "}); moa != brief.MoAUnavailable {
		t.Errorf("expected placeholder, got %q", moa)
	}
	if p.calls != 0 {
		t.Errorf("expected no model calls, got %d", p.calls)
	}
}

func TestExtractFailedCall(t *testing.T) {
	e := NewExtractor(summarize.New(&mockProvider{err: errors.New("boom")}, summarize.Options{}))
	if moa := e.Extract(context.Background(), "DrugX", []string{"summary"}); moa != brief.MoAUnavailable {
		t.Errorf("expected placeholder on failure, got %q", moa)
	}
}
