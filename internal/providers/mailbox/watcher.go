package mailbox

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sandevgo/tuskmail/internal/core"
	"github.com/sandevgo/tuskmail/pkg/log"
)

const defaultPollInterval = 30 * time.Second

// Handler receives every email found by a Watcher.
type Handler func(ctx context.Context, email core.Email) error

// Watcher polls a directory and hands emails from new or changed files to a
// handler. A file whose handler call fails is retried on the next poll.
type Watcher struct {
	dir      string
	interval time.Duration
	handle   Handler
	seen     map[string]time.Time
}

func NewWatcher(dir string, interval time.Duration, handle Handler) *Watcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Watcher{
		dir:      dir,
		interval: interval,
		handle:   handle,
		seen:     make(map[string]time.Time),
	}
}

func (w *Watcher) Start(ctx context.Context) error {
	ctx = log.WithComponent(ctx, "mailbox_watcher")
	logger := log.FromCtx(ctx)
	logger.Info().Str("dir", w.dir).Dur("interval", w.interval).Msg("watching mailbox")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.Poll(ctx); err != nil {
			logger.Error().Err(err).Msg("mailbox poll failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Watcher) Shutdown(ctx context.Context) error {
	return nil
}

// Poll processes files added or modified since the previous poll.
func (w *Watcher) Poll(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}

	var fresh []string
	mod := make(map[string]time.Time)
	for _, e := range entries {
		if e.IsDir() || !isMailFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if last, ok := w.seen[e.Name()]; ok && !info.ModTime().After(last) {
			continue
		}
		fresh = append(fresh, e.Name())
		mod[e.Name()] = info.ModTime()
	}
	sort.Strings(fresh)

	for _, name := range fresh {
		if ctx.Err() != nil {
			return nil
		}

		emails, err := loadFile(filepath.Join(w.dir, name))
		if err != nil {
			logger.Warn().Err(err).Str("file", name).Msg("skipping unreadable mail file")
			w.seen[name] = mod[name]
			continue
		}

		ok := true
		for _, email := range emails {
			if err := w.handle(ctx, email); err != nil {
				logger.Error().Err(err).Str("file", name).Str("message_id", email.ID).Msg("failed to handle email")
				ok = false
			}
		}
		if ok {
			w.seen[name] = mod[name]
		}
	}
	return nil
}

func isMailFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".eml", ".json":
		return true
	default:
		return false
	}
}
