package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sandevgo/tuskmail/internal/config"
	"github.com/sandevgo/tuskmail/internal/core"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeSummarizer struct {
	mu     sync.Mutex
	calls  [][]string
	failOn int
	err    error
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ string, batch []core.Email) (core.SummaryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := messageIDs(batch)
	f.calls = append(f.calls, ids)
	if f.failOn == len(f.calls) {
		return core.SummaryResult{}, f.err
	}
	return core.SummaryResult{
		Summary:   "summary of " + strings.Join(ids, ","),
		KeyPoints: []string{"first was " + ids[0]},
	}, nil
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func makeThread(n int) []core.Email {
	out := make([]core.Email, n)
	for i := 0; i < n; i++ {
		out[i] = core.Email{
			ID:        fmt.Sprintf("m%02d", i+1),
			ThreadID:  "thread-1",
			From:      fmt.Sprintf("user%d@example.com", i%3),
			To:        []string{"assistant@example.com"},
			Subject:   "Quarterly plan",
			Body:      fmt.Sprintf("message body %d", i+1),
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func reversed(in []core.Email) []core.Email {
	out := make([]core.Email, len(in))
	for i, e := range in {
		out[len(in)-1-i] = e
	}
	return out
}

func newAssembler(t *testing.T, cfg config.ContextConfig, s core.Summarizer) *HybridAssembler {
	t.Helper()
	a, err := NewHybridAssembler(cfg, s, WithClock(func() time.Time { return t0 }))
	require.NoError(t, err)
	return a
}

func testConfig(window, batch int) config.ContextConfig {
	cfg := config.DefaultContextConfig()
	cfg.RecentWindow = window
	cfg.SummaryBatchSize = batch
	return cfg
}
