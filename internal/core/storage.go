package core

import "context"

type JournalKind string

const (
	JournalEmail     JournalKind = "email"
	JournalSpeechAct JournalKind = "speech_act"
	JournalKnowledge JournalKind = "knowledge"
)

// JournalEntry is one replayable record. Exactly one payload field is set,
// matching Kind.
type JournalEntry struct {
	Seq       int64
	Kind      JournalKind
	Email     *Email
	SpeechAct *SpeechAct
	Knowledge *KnowledgeEntry
}

// Journal is an append-only log the in-memory state can be rebuilt from.
type Journal interface {
	AppendEmail(ctx context.Context, email Email) error
	AppendSpeechAct(ctx context.Context, act SpeechAct) error
	AppendKnowledge(ctx context.Context, entry KnowledgeEntry) error
	Replay(ctx context.Context, fn func(JournalEntry) error) error
}
