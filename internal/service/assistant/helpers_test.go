package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sandevgo/tuskmail/internal/config"
	"github.com/sandevgo/tuskmail/internal/core"
	"github.com/sandevgo/tuskmail/internal/service/memory"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type stubSummarizer struct {
	err   error
	calls int
}

func (s *stubSummarizer) Summarize(_ context.Context, _ string, batch []core.Email) (core.SummaryResult, error) {
	s.calls++
	if s.err != nil {
		return core.SummaryResult{}, s.err
	}
	ids := make([]string, len(batch))
	for i, m := range batch {
		ids[i] = m.ID
	}
	return core.SummaryResult{Summary: "summary of " + strings.Join(ids, ",")}, nil
}

// stubClassifier returns the acts registered for a message id.
type stubClassifier struct {
	acts  map[string][]core.ClassifiedAct
	err   error
	calls int
}

func (c *stubClassifier) Classify(_ context.Context, email core.Email) ([]core.ClassifiedAct, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.acts[email.ID], nil
}

type memJournal struct {
	mu      sync.Mutex
	entries []core.JournalEntry
	failOn  core.JournalKind
}

func (j *memJournal) append(e core.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if e.Kind == j.failOn {
		return errors.New("disk full")
	}
	e.Seq = int64(len(j.entries) + 1)
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) AppendEmail(_ context.Context, email core.Email) error {
	return j.append(core.JournalEntry{Kind: core.JournalEmail, Email: &email})
}

func (j *memJournal) AppendSpeechAct(_ context.Context, act core.SpeechAct) error {
	return j.append(core.JournalEntry{Kind: core.JournalSpeechAct, SpeechAct: &act})
}

func (j *memJournal) AppendKnowledge(_ context.Context, entry core.KnowledgeEntry) error {
	return j.append(core.JournalEntry{Kind: core.JournalKnowledge, Knowledge: &entry})
}

func (j *memJournal) Replay(_ context.Context, fn func(core.JournalEntry) error) error {
	j.mu.Lock()
	entries := append([]core.JournalEntry(nil), j.entries...)
	j.mu.Unlock()
	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func newTestAssistant(t *testing.T, window int, s core.Summarizer, opts ...Option) *Assistant {
	t.Helper()
	cfg := config.DefaultContextConfig()
	cfg.RecentWindow = window
	cfg.SummaryBatchSize = 2
	asm, err := memory.NewHybridAssembler(cfg, s)
	require.NoError(t, err)
	return NewAssistant(asm, opts...)
}

func mail(id, from string, to []string, cc []string, minute int) core.Email {
	return core.Email{
		ID:        id,
		ThreadID:  "thread-1",
		From:      from,
		To:        to,
		Cc:        cc,
		Subject:   "Launch plan",
		Body:      "body of " + id,
		Timestamp: t0.Add(time.Duration(minute) * time.Minute),
	}
}

func ingestAll(t *testing.T, a *Assistant, emails ...core.Email) {
	t.Helper()
	for _, e := range emails {
		_, err := a.Ingest(context.Background(), e)
		require.NoError(t, err)
	}
}

func ids(emails []core.Email) []string {
	out := make([]string, len(emails))
	for i, e := range emails {
		out[i] = e.ID
	}
	return out
}
