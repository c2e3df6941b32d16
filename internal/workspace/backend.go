package workspace

import (
	"time"

	"github.com/david/bill-finder/internal/ai"
	"github.com/david/bill-finder/internal/config"
	"github.com/david/bill-finder/internal/search"
)

// NewBackend builds the configured search backend. details is nil for the LLM backend.
func NewBackend(cfg *config.Config) (backend search.Backend, details Details) {
	if cfg.Search.Backend == config.BackendLLM {
		client := ai.NewChatClient(cfg.LLM.APIKey,
			ai.WithBaseURL(cfg.LLM.BaseURL),
			ai.WithModel(cfg.LLM.Model),
			ai.WithReferer(cfg.LLM.Referer),
		)
		return search.NewLLMBackend(client), nil
	}
	svc := search.NewServiceClient(cfg.Search.ServiceURL,
		search.WithRateLimit(cfg.Search.RateLimitRPS, cfg.Search.RateBurst),
		search.WithRetries(cfg.Search.MaxRetries, 500*time.Millisecond),
	)
	return svc, svc
}
