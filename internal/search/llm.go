package search

import (
	"context"
	"fmt"

	"github.com/david/bill-finder/internal/ai"
	"github.com/david/bill-finder/internal/ingest"
	"github.com/david/bill-finder/internal/models"
)

// LLMBackend asks a chat model for bills and parses the labelled free text.
// The model answers one batch per query, so HasMore is always false.
type LLMBackend struct {
	completer ai.Completer
}

func NewLLMBackend(c ai.Completer) *LLMBackend {
	return &LLMBackend{completer: c}
}

func (b *LLMBackend) Search(ctx context.Context, req Request) (Page, error) {
	prompt := ai.BuildSearchPrompt(req.Query, models.UserSettings{
		AgeGroup:    req.AgeGroup,
		DetailLevel: req.DetailLevel,
	})
	text, err := b.completer.Complete(ctx, ai.SystemPrompt, prompt)
	if err != nil {
		return Page{}, fmt.Errorf("llm search: %w", err)
	}

	bills, dropped := ingest.ParseFreeText(text)
	if len(bills) == 0 {
		return Page{Dropped: dropped}, ErrNoResults
	}
	return Page{Bills: bills, TotalFound: len(bills), Dropped: dropped}, nil
}
