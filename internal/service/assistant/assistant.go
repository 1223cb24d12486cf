package assistant

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sandevgo/tuskmail/internal/core"
	"github.com/sandevgo/tuskmail/internal/service/access"
	"github.com/sandevgo/tuskmail/internal/service/memory"
	"github.com/sandevgo/tuskmail/internal/service/speechact"
	"github.com/sandevgo/tuskmail/pkg/log"
)

var (
	ErrInvalidEmail   = errors.New("invalid email")
	ErrClassification = errors.New("classification failed")
	ErrNoJournal      = errors.New("no journal configured")
	ErrNoAudience     = errors.New("no recipients besides the assistant")
)

const defaultMaxRelevantActs = 20

type Option func(*Assistant)

func WithClassifier(c core.Classifier) Option {
	return func(a *Assistant) { a.classifier = c }
}

func WithJournal(j core.Journal) Option {
	return func(a *Assistant) { a.journal = j }
}

// WithAssistantAddress sets the address the assistant itself sends and
// receives mail with. It is never counted as part of an audience.
func WithAssistantAddress(address string) Option {
	return func(a *Assistant) { a.self = strings.TrimSpace(address) }
}

func WithMaxRelevantActs(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.maxActs = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Assistant) {
		if now != nil {
			a.now = now
		}
	}
}

// Request asks for the context of one thread as it may be shown to the given
// participants.
type Request struct {
	ThreadID     string
	Participants []string
}

// Prepared is an assembled context plus what had to be left out of it.
type Prepared struct {
	Context  core.MemoryContext
	Text     string
	Tokens   int
	Audience []string

	// Degraded is set when summarization failed and only the recent window
	// was used.
	Degraded bool

	WithheldMessages   int
	WithheldSpeechActs int
	WithheldKnowledge  int
}

// Withheld reports whether anything was filtered out for the audience.
func (p Prepared) Withheld() bool {
	return p.WithheldMessages+p.WithheldSpeechActs+p.WithheldKnowledge > 0
}

// Assistant ties ingestion, access tracking and context assembly together.
type Assistant struct {
	tracker    *access.Tracker
	acts       *speechact.Repository
	assembler  *memory.HybridAssembler
	classifier core.Classifier
	journal    core.Journal
	self       string
	maxActs    int
	now        func() time.Time

	mu        sync.RWMutex
	threads   map[string][]core.Email
	emails    map[string]core.Email
	knowledge map[string]core.KnowledgeEntry
	order     []string

	// emails whose speech acts have not been extracted yet
	unclassified map[string]struct{}
}

func NewAssistant(assembler *memory.HybridAssembler, opts ...Option) *Assistant {
	a := &Assistant{
		tracker:   access.NewTracker(),
		acts:      speechact.NewRepository(),
		assembler: assembler,
		maxActs:   defaultMaxRelevantActs,
		now:       time.Now,
	}
	a.reset()
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Assistant) Tracker() *access.Tracker { return a.tracker }

func (a *Assistant) SpeechActs() *speechact.Repository { return a.acts }

func (a *Assistant) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.threads = make(map[string][]core.Email)
	a.emails = make(map[string]core.Email)
	a.knowledge = make(map[string]core.KnowledgeEntry)
	a.order = nil
	a.unclassified = make(map[string]struct{})
}

// Ingest records an email, grants its participants access to it and, when a
// classifier is configured, extracts its speech acts. If classification fails
// the email stays recorded and the error is returned; ingesting the same id
// again retries the classification of the recorded email. Otherwise an email
// whose id was already ingested is ignored.
func (a *Assistant) Ingest(ctx context.Context, email core.Email) ([]core.SpeechAct, error) {
	if email.ID == "" || email.ThreadID == "" {
		return nil, fmt.Errorf("%w: id and thread id are required", ErrInvalidEmail)
	}

	logger := log.FromCtx(ctx).With().
		Str("component", "assistant").
		Str("message_id", email.ID).
		Str("thread_id", email.ThreadID).
		Logger()

	if stored, ok := a.storedEmail(email.ID); ok {
		if a.classifier == nil || !a.claimUnclassified(email.ID) {
			logger.Debug().Msg("email already ingested")
			return nil, nil
		}
		logger.Debug().Msg("retrying classification")
		return a.classify(ctx, stored)
	}

	if a.journal != nil {
		if err := a.journal.AppendEmail(ctx, email); err != nil {
			return nil, fmt.Errorf("journal email %s: %w", email.ID, err)
		}
	}
	a.applyEmail(email)

	if a.classifier == nil {
		return nil, nil
	}
	return a.classify(ctx, email)
}

// classify extracts and stores the speech acts of an already recorded email.
// On failure the email is left unclassified so a later Ingest can retry.
func (a *Assistant) classify(ctx context.Context, email core.Email) ([]core.SpeechAct, error) {
	logger := log.FromCtx(ctx).With().
		Str("component", "assistant").
		Str("message_id", email.ID).
		Logger()

	classified, err := a.classifier.Classify(ctx, email)
	if err != nil {
		a.markUnclassified(email.ID)
		return nil, fmt.Errorf("%w: email %s: %w", ErrClassification, email.ID, err)
	}

	acts := make([]core.SpeechAct, 0, len(classified))
	for _, c := range classified {
		acts = append(acts, core.SpeechAct{
			ID:              uuid.NewString(),
			Type:            c.Type,
			Content:         c.Content,
			Actor:           email.From,
			Participants:    email.Participants(),
			Confidence:      c.Confidence,
			SourceMessageID: email.ID,
			ThreadID:        email.ThreadID,
			Timestamp:       email.Timestamp,
			Metadata:        c.Metadata,
		})
	}

	for _, act := range acts {
		if a.journal != nil {
			if err := a.journal.AppendSpeechAct(ctx, act); err != nil {
				return nil, fmt.Errorf("journal speech act %s: %w", act.ID, err)
			}
		}
		a.applySpeechAct(act)
	}

	logger.Debug().Int("speech_acts", len(acts)).Msg("email classified")
	return acts, nil
}

// AddKnowledge stores a knowledge entry. Missing ids and creation times are
// filled in.
func (a *Assistant) AddKnowledge(ctx context.Context, entry core.KnowledgeEntry) (core.KnowledgeEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.now()
	}
	entry.SourceMessageIDs = slices.Clone(entry.SourceMessageIDs)

	if a.journal != nil {
		if err := a.journal.AppendKnowledge(ctx, entry); err != nil {
			return core.KnowledgeEntry{}, fmt.Errorf("journal knowledge %s: %w", entry.ID, err)
		}
	}
	a.applyKnowledge(entry)
	return entry, nil
}

// Restore discards in-memory state and rebuilds it from the journal.
func (a *Assistant) Restore(ctx context.Context) error {
	if a.journal == nil {
		return ErrNoJournal
	}

	a.tracker.Clear()
	a.acts.Clear()
	a.assembler.ClearCache()
	a.reset()

	counts := make(map[core.JournalKind]int)
	err := a.journal.Replay(ctx, func(e core.JournalEntry) error {
		switch e.Kind {
		case core.JournalEmail:
			a.applyEmail(*e.Email)
		case core.JournalSpeechAct:
			a.applySpeechAct(*e.SpeechAct)
		case core.JournalKnowledge:
			a.applyKnowledge(*e.Knowledge)
		default:
			return fmt.Errorf("unknown journal kind %q", e.Kind)
		}
		counts[e.Kind]++
		return nil
	})
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	pending := a.markActlessUnclassified()

	log.FromCtx(ctx).Info().
		Int("emails", counts[core.JournalEmail]).
		Int("speech_acts", counts[core.JournalSpeechAct]).
		Int("knowledge", counts[core.JournalKnowledge]).
		Int("unclassified", pending).
		Msg("state restored from journal")
	return nil
}

// CheckAccess reports whether material derived from the given emails may be
// shared with participants. A request naming nobody but the assistant is
// denied.
func (a *Assistant) CheckAccess(sourceMessageIDs []string, participants []string) core.AccessResult {
	audience := a.audience(participants)
	if len(audience) == 0 {
		return core.AccessResult{Allowed: false, Reason: ErrNoAudience.Error()}
	}
	return a.tracker.CheckAccess(sourceMessageIDs, audience)
}

// PrepareContext assembles the context of a thread restricted to what every
// participant of the request has already received. A request naming nobody
// but the assistant fails with ErrNoAudience.
func (a *Assistant) PrepareContext(ctx context.Context, req Request) (Prepared, error) {
	logger := log.FromCtx(ctx).With().
		Str("component", "assistant").
		Str("thread_id", req.ThreadID).
		Logger()

	audience := a.audience(req.Participants)
	if len(audience) == 0 {
		return Prepared{}, fmt.Errorf("thread %s: %w", req.ThreadID, ErrNoAudience)
	}

	emails := a.Thread(req.ThreadID)
	shareable := a.tracker.FilterEmails(emails, audience)

	threadActs := a.acts.GetByThread(req.ThreadID)
	shareableActs := a.tracker.FilterSpeechActs(threadActs, audience)

	knowledge := a.Knowledge()
	shareableKnowledge := a.tracker.FilterKnowledgeEntries(knowledge, audience)

	relevant := a.selectRelevantActs(shareable, shareableActs)

	p := Prepared{
		Audience:           audience,
		WithheldMessages:   len(emails) - len(shareable),
		WithheldSpeechActs: len(threadActs) - len(shareableActs),
		WithheldKnowledge:  len(knowledge) - len(shareableKnowledge),
	}

	mc, err := a.assembler.BuildContext(ctx, shareable, req.ThreadID, relevant, shareableKnowledge)
	if err != nil {
		if !errors.Is(err, memory.ErrSummarization) || ctx.Err() != nil {
			return Prepared{}, err
		}
		logger.Warn().Err(err).Msg("summarization failed, using recent messages only")
		mc = a.assembler.RecentOnly(shareable, relevant, shareableKnowledge)
		p.Degraded = true
	}

	mc = a.assembler.TrimContext(ctx, mc)

	p.Context = mc
	p.Text = memory.FormatContext(mc)
	p.Tokens = a.assembler.EstimateTokens(mc)

	logger.Debug().
		Int("recent", len(mc.RecentMessages)).
		Int("summaries", len(mc.Summaries)).
		Int("speech_acts", len(mc.RelevantSpeechActs)).
		Int("withheld_messages", p.WithheldMessages).
		Bool("degraded", p.Degraded).
		Msg("context prepared")

	return p, nil
}

// selectRelevantActs walks messages from the highest score down and collects
// their speech acts until the limit is reached.
func (a *Assistant) selectRelevantActs(messages []core.Email, acts []core.SpeechAct) []core.SpeechAct {
	if len(acts) == 0 {
		return nil
	}

	bySource := make(map[string][]core.SpeechAct, len(acts))
	for _, act := range acts {
		bySource[act.SourceMessageID] = append(bySource[act.SourceMessageID], act)
	}

	var out []core.SpeechAct
	for _, scored := range a.assembler.RankMessages(messages, acts) {
		for _, act := range bySource[scored.Email.ID] {
			if len(out) == a.maxActs {
				return out
			}
			out = append(out, act)
		}
	}
	return out
}

// Thread returns the ingested emails of a thread in ingestion order.
func (a *Assistant) Thread(threadID string) []core.Email {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.threads[threadID])
}

// Threads lists known thread ids in lexical order.
func (a *Assistant) Threads() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.threads))
	for id := range a.threads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Knowledge returns all knowledge entries in insertion order.
func (a *Assistant) Knowledge() []core.KnowledgeEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]core.KnowledgeEntry, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.knowledge[id])
	}
	return out
}

// Unclassified lists the ids of recorded emails still waiting for speech act
// extraction, in lexical order.
func (a *Assistant) Unclassified() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.unclassified))
	for id := range a.unclassified {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (a *Assistant) storedEmail(id string) (core.Email, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.emails[id]
	return e, ok
}

// claimUnclassified removes id from the pending set and reports whether it was
// there, so concurrent retries classify an email at most once.
func (a *Assistant) claimUnclassified(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.unclassified[id]; !ok {
		return false
	}
	delete(a.unclassified, id)
	return true
}

func (a *Assistant) markUnclassified(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unclassified[id] = struct{}{}
}

// markActlessUnclassified flags every recorded email without speech acts as
// pending. The journal holds no record of failed classifications, so emails
// that legitimately yielded no acts are retried once too.
func (a *Assistant) markActlessUnclassified() int {
	if a.classifier == nil {
		return 0
	}

	withActs := make(map[string]struct{})
	for _, act := range a.acts.Query(speechact.Filter{}) {
		withActs[act.SourceMessageID] = struct{}{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for id := range a.emails {
		if _, ok := withActs[id]; !ok {
			a.unclassified[id] = struct{}{}
		}
	}
	return len(a.unclassified)
}

func (a *Assistant) applyEmail(email core.Email) {
	a.mu.Lock()
	if _, ok := a.emails[email.ID]; ok {
		a.mu.Unlock()
		return
	}
	a.emails[email.ID] = email
	a.threads[email.ThreadID] = append(a.threads[email.ThreadID], email)
	a.mu.Unlock()

	a.tracker.TrackEmail(email)
}

func (a *Assistant) applySpeechAct(act core.SpeechAct) {
	a.acts.Add(act)
	a.tracker.TrackSpeechAct(act)
}

func (a *Assistant) applyKnowledge(entry core.KnowledgeEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.knowledge[entry.ID]; !ok {
		a.order = append(a.order, entry.ID)
	}
	a.knowledge[entry.ID] = entry
}

// audience drops blanks, duplicates and the assistant's own address.
func (a *Assistant) audience(participants []string) []string {
	seen := make(map[string]struct{}, len(participants))
	out := make([]string, 0, len(participants))
	for _, p := range participants {
		p = strings.TrimSpace(p)
		if p == "" || (a.self != "" && strings.EqualFold(p, a.self)) {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
