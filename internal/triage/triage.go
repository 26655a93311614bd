package triage

import (
	"context"

	"github.com/TobiSchelling/pharmabrief/internal/brief"
	"github.com/TobiSchelling/pharmabrief/internal/logger"
	"github.com/TobiSchelling/pharmabrief/internal/summarize"
)

const classifyInstruction = "Classify this news into ONLY ONE of these categories: Clinical, Regulatory, Commercial. Respond only with the category name."

// Classifier assigns a news summary to one of the fixed categories.
type Classifier struct {
	summarizer *summarize.Summarizer
}

// NewClassifier creates a new news classifier.
func NewClassifier(s *summarize.Summarizer) *Classifier {
	return &Classifier{summarizer: s}
}

// Classify returns the category for summary. The model answer must match a
// category name exactly after trimming; anything else, including a failed
// model call, reports false and the item belongs to no bucket.
func (c *Classifier) Classify(ctx context.Context, summary string) (brief.Category, bool) {
	res := c.summarizer.Summarize(ctx, summary, classifyInstruction)
	if res.Failed() {
		logger.Log.Debugf("Classification failed: %v", res)
		return "", false
	}

	category, ok := brief.ParseCategory(res.Text)
	if !ok {
		logger.Log.Debugf("Dropping item with unrecognized category %q", res.Text)
	}
	return category, ok
}
