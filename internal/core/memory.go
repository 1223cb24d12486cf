package core

import "time"

// ParticipantContext records what one address has legitimately been exposed to.
// Both sets only ever grow.
type ParticipantContext struct {
	Address              string
	AccessibleMessages   map[string]struct{}
	AccessibleSpeechActs map[string]struct{}
	FirstSeen            time.Time
}

// EmailSummary covers exactly the emails listed in MessageIDs.
type EmailSummary struct {
	ThreadID     string    `json:"thread_id"`
	Summary      string    `json:"summary"`
	KeyPoints    []string  `json:"key_points"`
	Participants []string  `json:"participants"`
	MessageIDs   []string  `json:"message_ids"`
	CreatedAt    time.Time `json:"created_at"`
}

// SummaryResult is the raw output of the summarization oracle for one batch.
type SummaryResult struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

// MemoryContext is the assembled conversational context handed to the oracle.
type MemoryContext struct {
	RecentMessages     []Email
	Summaries          []EmailSummary
	RelevantSpeechActs []SpeechAct
	RelevantKnowledge  []KnowledgeEntry
}

// AccessResult explains whether material may be shared with an audience.
type AccessResult struct {
	Allowed                bool
	Reason                 string
	RestrictedParticipants []string
}
