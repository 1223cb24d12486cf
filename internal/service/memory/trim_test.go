package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/tuskmail/internal/core"
)

func summaryOfTokens(name string, tokens int) core.EmailSummary {
	return core.EmailSummary{
		Summary:    strings.Repeat("x", tokens*4),
		MessageIDs: []string{name},
	}
}

func trimFixture() core.MemoryContext {
	return core.MemoryContext{
		RecentMessages: []core.Email{{ID: "r1", Subject: "", Body: strings.Repeat("b", 40)}},
		Summaries: []core.EmailSummary{
			summaryOfTokens("oldest", 100),
			summaryOfTokens("middle", 100),
			summaryOfTokens("newest", 100),
		},
		RelevantSpeechActs: []core.SpeechAct{{ID: "s1", Content: strings.Repeat("c", 20)}},
	}
}

func TestEstimateTokens(t *testing.T) {
	a := newAssembler(t, testConfig(10, 5), &fakeSummarizer{})

	mc := core.MemoryContext{
		RecentMessages:     []core.Email{{Subject: "abcd", Body: "efgh"}},
		Summaries:          []core.EmailSummary{{Summary: "12345678", KeyPoints: []string{"abcd", "ef"}}},
		RelevantSpeechActs: []core.SpeechAct{{Content: "xy"}},
		RelevantKnowledge:  []core.KnowledgeEntry{{Content: strings.Repeat("k", 400)}},
	}

	// (8 + 14 + 2) / 4; knowledge is not counted
	assert.Equal(t, 6, a.EstimateTokens(mc))
}

func TestTrimContext_UnderBudgetUnchanged(t *testing.T) {
	a := newAssembler(t, testConfig(10, 5), &fakeSummarizer{})
	mc := trimFixture()

	got := a.TrimContext(context.Background(), mc)
	assert.Equal(t, mc, got)
}

func TestTrimContext_DropsOldestSummaryFirst(t *testing.T) {
	cfg := testConfig(10, 5)
	cfg.MaxContextTokens = 250
	a := newAssembler(t, cfg, &fakeSummarizer{})
	mc := trimFixture()

	// 300 + 10 + 5 tokens before trimming
	require.Equal(t, 315, a.EstimateTokens(mc))

	got := a.TrimContext(context.Background(), mc)

	require.Len(t, got.Summaries, 2)
	assert.Equal(t, []string{"middle"}, got.Summaries[0].MessageIDs)
	assert.Equal(t, []string{"newest"}, got.Summaries[1].MessageIDs)
	assert.Equal(t, mc.RecentMessages, got.RecentMessages)
	assert.Equal(t, mc.RelevantSpeechActs, got.RelevantSpeechActs)
	assert.Len(t, mc.Summaries, 3, "input is untouched")
}

func TestTrimContext_NeverDropsRecentMessages(t *testing.T) {
	cfg := testConfig(10, 5)
	cfg.MaxContextTokens = 1
	a := newAssembler(t, cfg, &fakeSummarizer{})
	mc := trimFixture()

	got := a.TrimContext(context.Background(), mc)

	assert.Empty(t, got.Summaries)
	assert.Equal(t, mc.RecentMessages, got.RecentMessages)
	assert.Equal(t, mc.RelevantSpeechActs, got.RelevantSpeechActs)
}

type fixedEstimator struct{ perPart int }

func (f fixedEstimator) Estimate(parts ...string) int { return f.perPart * len(parts) }

func TestTrimContext_UsesConfiguredEstimator(t *testing.T) {
	cfg := testConfig(10, 5)
	cfg.MaxContextTokens = 100
	a, err := NewHybridAssembler(cfg, &fakeSummarizer{}, WithTokenEstimator(fixedEstimator{perPart: 20}))
	require.NoError(t, err)

	// parts: 2 for the message, 3 summaries, 1 act = 6 * 20 = 120
	got := a.TrimContext(context.Background(), trimFixture())
	assert.Len(t, got.Summaries, 2)
}
