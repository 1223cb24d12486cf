package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/sandevgo/tuskmail/internal/config"
	"github.com/sandevgo/tuskmail/internal/core"
	"github.com/sandevgo/tuskmail/pkg/log"
)

// ErrSummarization wraps every failure of the summarization oracle.
var ErrSummarization = errors.New("summarization failed")

type Option func(*HybridAssembler)

func WithTokenEstimator(e TokenEstimator) Option {
	return func(a *HybridAssembler) {
		if e != nil {
			a.estimator = e
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *HybridAssembler) {
		if now != nil {
			a.now = now
		}
	}
}

// HybridAssembler builds contexts made of the most recent emails verbatim and
// oracle summaries of everything older. Summaries are cached per thread.
type HybridAssembler struct {
	window     int
	batchSize  int
	maxTokens  int
	keywords   []string
	summarizer core.Summarizer
	estimator  TokenEstimator
	now        func() time.Time

	cache *lru.Cache[string, []core.EmailSummary]
	group singleflight.Group
}

func NewHybridAssembler(cfg config.ContextConfig, summarizer core.Summarizer, opts ...Option) (*HybridAssembler, error) {
	if summarizer == nil {
		return nil, errors.New("summarizer is required")
	}

	defaults := config.DefaultContextConfig()
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = defaults.RecentWindow
	}
	if cfg.SummaryBatchSize <= 0 {
		cfg.SummaryBatchSize = defaults.SummaryBatchSize
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = defaults.MaxContextTokens
	}
	if cfg.SummaryCacheSize <= 0 {
		cfg.SummaryCacheSize = defaults.SummaryCacheSize
	}

	cache, err := lru.New[string, []core.EmailSummary](cfg.SummaryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create summary cache: %w", err)
	}

	keywords := make([]string, 0, len(cfg.DomainKeywords))
	for _, k := range cfg.DomainKeywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			keywords = append(keywords, k)
		}
	}

	a := &HybridAssembler{
		window:     cfg.RecentWindow,
		batchSize:  cfg.SummaryBatchSize,
		maxTokens:  cfg.MaxContextTokens,
		keywords:   keywords,
		summarizer: summarizer,
		estimator:  HeuristicEstimator{},
		now:        time.Now,
		cache:      cache,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *HybridAssembler) RecentWindow() int { return a.window }

// BuildContext splits messages into a verbatim recent window and summarized
// older batches. The older part is summarized by the oracle unless the thread's
// cached summaries cover exactly the same emails. A cache entry covering a
// superset of them is not reused: it would carry emails the caller filtered
// out, so any change to the older set regenerates every batch.
func (a *HybridAssembler) BuildContext(
	ctx context.Context,
	messages []core.Email,
	threadID string,
	acts []core.SpeechAct,
	knowledge []core.KnowledgeEntry,
) (core.MemoryContext, error) {
	sorted := sortByTimestamp(messages)

	mc := core.MemoryContext{
		RelevantSpeechActs: acts,
		RelevantKnowledge:  knowledge,
	}

	if len(sorted) <= a.window {
		mc.RecentMessages = sorted
		return mc, nil
	}

	split := len(sorted) - a.window
	older, recent := sorted[:split], sorted[split:]

	summaries, err := a.summariesFor(ctx, threadID, older)
	if err != nil {
		return core.MemoryContext{}, err
	}

	mc.RecentMessages = recent
	mc.Summaries = summaries
	return mc, nil
}

// RecentOnly is the degraded form of BuildContext: the recent window without
// any summaries and without calling the oracle.
func (a *HybridAssembler) RecentOnly(messages []core.Email, acts []core.SpeechAct, knowledge []core.KnowledgeEntry) core.MemoryContext {
	sorted := sortByTimestamp(messages)
	if len(sorted) > a.window {
		sorted = sorted[len(sorted)-a.window:]
	}
	return core.MemoryContext{
		RecentMessages:     sorted,
		RelevantSpeechActs: acts,
		RelevantKnowledge:  knowledge,
	}
}

func (a *HybridAssembler) summariesFor(ctx context.Context, threadID string, older []core.Email) ([]core.EmailSummary, error) {
	logger := log.FromCtx(ctx).With().
		Str("component", "hybrid_assembler").
		Str("thread_id", threadID).
		Logger()

	ids := messageIDs(older)

	if cached, ok := a.cache.Get(threadID); ok && coversExactly(cached, ids) {
		logger.Debug().Int("summaries", len(cached)).Msg("summary cache hit")
		return cloneSummaries(cached), nil
	}

	logger.Debug().Int("older", len(older)).Msg("summary cache miss, regenerating")

	key := threadID + "\x00" + strings.Join(ids, "\x00")
	v, err, _ := a.group.Do(key, func() (any, error) {
		return a.regenerate(ctx, threadID, older)
	})
	if err != nil {
		return nil, err
	}
	return cloneSummaries(v.([]core.EmailSummary)), nil
}

// regenerate summarizes older in order, one oracle call per batch. Batches
// completed before a failure stay cached. They cover only part of the span,
// so the next lookup for the same span misses and regenerates.
func (a *HybridAssembler) regenerate(ctx context.Context, threadID string, older []core.Email) ([]core.EmailSummary, error) {
	summaries := make([]core.EmailSummary, 0, (len(older)+a.batchSize-1)/a.batchSize)

	for start, n := 0, 1; start < len(older); start, n = start+a.batchSize, n+1 {
		if err := ctx.Err(); err != nil {
			a.keepPartial(threadID, summaries)
			return nil, fmt.Errorf("%w: thread %s: %w", ErrSummarization, threadID, err)
		}

		batch := older[start:min(start+a.batchSize, len(older))]

		res, err := a.summarizer.Summarize(ctx, threadID, batch)
		if err != nil {
			a.keepPartial(threadID, summaries)
			return nil, fmt.Errorf("%w: thread %s batch %d: %w", ErrSummarization, threadID, n, err)
		}

		summaries = append(summaries, core.EmailSummary{
			ThreadID:     threadID,
			Summary:      res.Summary,
			KeyPoints:    slices.Clone(res.KeyPoints),
			Participants: batchParticipants(batch),
			MessageIDs:   messageIDs(batch),
			CreatedAt:    a.now(),
		})
	}

	a.cache.Add(threadID, summaries)
	return summaries, nil
}

func (a *HybridAssembler) keepPartial(threadID string, summaries []core.EmailSummary) {
	if len(summaries) > 0 {
		a.cache.Add(threadID, summaries)
	}
}

// CachedSummaries returns a copy of the thread's cached summaries.
func (a *HybridAssembler) CachedSummaries(threadID string) ([]core.EmailSummary, bool) {
	s, ok := a.cache.Peek(threadID)
	if !ok {
		return nil, false
	}
	return cloneSummaries(s), true
}

// ClearCache drops cached summaries of the given threads, or of every thread
// when called without arguments.
func (a *HybridAssembler) ClearCache(threadIDs ...string) {
	if len(threadIDs) == 0 {
		a.cache.Purge()
		return
	}
	for _, id := range threadIDs {
		a.cache.Remove(id)
	}
}

func sortByTimestamp(messages []core.Email) []core.Email {
	sorted := slices.Clone(messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

func messageIDs(messages []core.Email) []string {
	ids := make([]string, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	return ids
}

func batchParticipants(batch []core.Email) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range batch {
		for _, p := range m.Participants() {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out
}

// coversExactly reports whether summaries cover ids with no gap, no overlap and
// nothing extra. Reusing summaries that cover more than ids would put emails
// into the context that the current caller filtered out.
func coversExactly(summaries []core.EmailSummary, ids []string) bool {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	covered := 0
	seen := make(map[string]struct{}, len(ids))
	for _, s := range summaries {
		for _, id := range s.MessageIDs {
			if _, ok := want[id]; !ok {
				return false
			}
			if _, dup := seen[id]; dup {
				return false
			}
			seen[id] = struct{}{}
			covered++
		}
	}
	return covered == len(want)
}

func cloneSummaries(in []core.EmailSummary) []core.EmailSummary {
	out := make([]core.EmailSummary, len(in))
	for i, s := range in {
		s.KeyPoints = slices.Clone(s.KeyPoints)
		s.Participants = slices.Clone(s.Participants)
		s.MessageIDs = slices.Clone(s.MessageIDs)
		out[i] = s
	}
	return out
}
