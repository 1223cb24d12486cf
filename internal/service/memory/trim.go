package memory

import (
	"context"

	"github.com/sandevgo/tuskmail/internal/core"
	"github.com/sandevgo/tuskmail/pkg/log"
)

// EstimateTokens approximates the size of mc from message subjects and bodies,
// summary text and key points, and speech act content.
func (a *HybridAssembler) EstimateTokens(mc core.MemoryContext) int {
	parts := make([]string, 0, 2*len(mc.RecentMessages)+len(mc.Summaries)+len(mc.RelevantSpeechActs))

	for _, m := range mc.RecentMessages {
		parts = append(parts, m.Subject, m.Body)
	}
	for _, s := range mc.Summaries {
		parts = append(parts, s.Summary)
		parts = append(parts, s.KeyPoints...)
	}
	for _, act := range mc.RelevantSpeechActs {
		parts = append(parts, act.Content)
	}

	return a.estimator.Estimate(parts...)
}

// TrimContext drops summaries, oldest first, until mc fits the token budget or
// no summaries remain. Recent messages and speech acts are always kept. The
// input is not modified.
func (a *HybridAssembler) TrimContext(ctx context.Context, mc core.MemoryContext) core.MemoryContext {
	tokens := a.EstimateTokens(mc)
	if tokens <= a.maxTokens {
		return mc
	}

	trimmed := mc
	trimmed.Summaries = cloneSummaries(mc.Summaries)

	dropped := 0
	for tokens > a.maxTokens && len(trimmed.Summaries) > 0 {
		trimmed.Summaries = trimmed.Summaries[1:]
		dropped++
		tokens = a.EstimateTokens(trimmed)
	}

	logger := log.FromCtx(ctx)
	logger.Debug().
		Int("dropped_summaries", dropped).
		Int("tokens", tokens).
		Int("budget", a.maxTokens).
		Msg("trimmed context to budget")

	if tokens > a.maxTokens {
		logger.Warn().
			Int("tokens", tokens).
			Int("budget", a.maxTokens).
			Msg("context still over budget after dropping all summaries")
	}

	return trimmed
}
