package synthesize

import (
	"context"
	"fmt"
	"strings"

	"github.com/TobiSchelling/pharmabrief/internal/brief"
	"github.com/TobiSchelling/pharmabrief/internal/logger"
	"github.com/TobiSchelling/pharmabrief/internal/summarize"
)

const moaInstruction = "Identify the mechanism of action for %s from these news summaries. Respond concisely in one sentence."

// Extractor derives a one-sentence mechanism of action from news summaries.
type Extractor struct {
	summarizer *summarize.Summarizer
}

// NewExtractor creates a new MoA extractor.
func NewExtractor(s *summarize.Summarizer) *Extractor {
	return &Extractor{summarizer: s}
}

// Instruction returns the MoA prompt for drug.
func Instruction(drug string) string {
	return fmt.Sprintf(moaInstruction, drug)
}

// Extract returns the MoA sentence for drug, or brief.MoAUnavailable when
// there is nothing to work from or the model call fails.
func (e *Extractor) Extract(ctx context.Context, drug string, summaries []string) string {
	var parts []string
	for _, s := range summaries {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return brief.MoAUnavailable
	}

	res := e.summarizer.Summarize(ctx, strings.Join(parts, "\n"), Instruction(drug))
	if res.Failed() {
		logger.Log.WithField("drug", drug).Warnf("MoA synthesis failed: %v", res)
		return brief.MoAUnavailable
	}
	return res.Text
}
