package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/tuskmail/internal/core"
	"github.com/sandevgo/tuskmail/internal/service/memory"
)

const (
	alice   = "alice@example.com"
	bob     = "bob@example.com"
	charlie = "charlie@example.com"
	self    = "assistant@example.com"
)

func TestIngest_WrapsClassifiedActs(t *testing.T) {
	classifier := &stubClassifier{acts: map[string][]core.ClassifiedAct{
		"m1": {
			{Type: core.SpeechActRequest, Content: "Send the deck", Confidence: 0.9},
			{Type: core.SpeechActQuestion, Content: "Is Friday ok?", Confidence: 0.7},
		},
	}}
	a := newTestAssistant(t, 10, &stubSummarizer{}, WithClassifier(classifier))

	email := mail("m1", alice, []string{bob}, []string{charlie}, 0)
	acts, err := a.Ingest(context.Background(), email)
	require.NoError(t, err)
	require.Len(t, acts, 2)

	for _, act := range acts {
		_, err := uuid.Parse(act.ID)
		assert.NoError(t, err)
		assert.Equal(t, alice, act.Actor)
		assert.Equal(t, []string{alice, bob, charlie}, act.Participants)
		assert.Equal(t, "m1", act.SourceMessageID)
		assert.Equal(t, "thread-1", act.ThreadID)
		assert.Equal(t, email.Timestamp, act.Timestamp)
	}
	assert.NotEqual(t, acts[0].ID, acts[1].ID)
	assert.Equal(t, core.SpeechActRequest, acts[0].Type)

	assert.Equal(t, 2, a.SpeechActs().Count())
	assert.True(t, a.Tracker().HasAccessToMessage(charlie, "m1"))
	assert.True(t, a.Tracker().HasAccessToSpeechAct(bob, acts[1].ID))
}

func TestIngest_ClassificationFailureKeepsEmail(t *testing.T) {
	boom := errors.New("model offline")
	a := newTestAssistant(t, 10, &stubSummarizer{}, WithClassifier(&stubClassifier{err: boom}))

	acts, err := a.Ingest(context.Background(), mail("m1", alice, []string{bob}, nil, 0))
	require.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrClassification)
	assert.Nil(t, acts)

	assert.Equal(t, []string{"m1"}, ids(a.Thread("thread-1")))
	assert.True(t, a.Tracker().HasAccessToMessage(bob, "m1"))
	assert.Zero(t, a.SpeechActs().Count())
}

func TestIngest_DuplicateIgnored(t *testing.T) {
	classifier := &stubClassifier{}
	a := newTestAssistant(t, 10, &stubSummarizer{}, WithClassifier(classifier))

	ingestAll(t, a, mail("m1", alice, []string{bob}, nil, 0), mail("m1", alice, []string{bob}, nil, 0))

	assert.Equal(t, 1, classifier.calls)
	assert.Len(t, a.Thread("thread-1"), 1)
}

func TestIngest_RetriesFailedClassification(t *testing.T) {
	classifier := &stubClassifier{
		err: errors.New("model offline"),
		acts: map[string][]core.ClassifiedAct{
			"m1": {{Type: core.SpeechActCommitment, Content: "I'll send it", Confidence: 0.8}},
		},
	}
	j := &memJournal{}
	a := newTestAssistant(t, 10, &stubSummarizer{}, WithClassifier(classifier), WithJournal(j))

	email := mail("m1", alice, []string{bob}, nil, 0)
	_, err := a.Ingest(context.Background(), email)
	require.ErrorIs(t, err, ErrClassification)
	assert.Equal(t, []string{"m1"}, a.Unclassified())

	classifier.err = nil
	acts, err := a.Ingest(context.Background(), email)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, "I'll send it", acts[0].Content)
	assert.Equal(t, 2, classifier.calls)
	assert.Equal(t, 1, a.SpeechActs().Count())
	assert.Empty(t, a.Unclassified())
	assert.Len(t, a.Thread("thread-1"), 1, "the email is recorded once")

	// once classified, the email is a plain duplicate again
	_, err = a.Ingest(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, 2, classifier.calls)

	var emails int
	for _, e := range j.entries {
		if e.Kind == core.JournalEmail {
			emails++
		}
	}
	assert.Equal(t, 1, emails)
}

func TestRestore_RetriesEmailsWithoutActs(t *testing.T) {
	j := &memJournal{}
	failing := &stubClassifier{err: errors.New("model offline")}
	a := newTestAssistant(t, 10, &stubSummarizer{}, WithClassifier(failing), WithJournal(j))

	email := mail("m1", alice, []string{bob}, nil, 0)
	_, err := a.Ingest(context.Background(), email)
	require.ErrorIs(t, err, ErrClassification)

	working := &stubClassifier{acts: map[string][]core.ClassifiedAct{
		"m1": {{Type: core.SpeechActDecision, Content: "Ship Friday", Confidence: 1}},
	}}
	restored := newTestAssistant(t, 10, &stubSummarizer{}, WithClassifier(working), WithJournal(j))
	require.NoError(t, restored.Restore(context.Background()))
	assert.Equal(t, []string{"m1"}, restored.Unclassified())

	acts, err := restored.Ingest(context.Background(), email)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, 1, restored.SpeechActs().Count())
	assert.True(t, restored.Tracker().HasAccessToSpeechAct(bob, acts[0].ID))
}

func TestIngest_Invalid(t *testing.T) {
	a := newTestAssistant(t, 10, &stubSummarizer{})

	_, err := a.Ingest(context.Background(), core.Email{ID: "m1"})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = a.Ingest(context.Background(), core.Email{ThreadID: "t"})
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestIngest_JournalFailure(t *testing.T) {
	j := &memJournal{failOn: core.JournalEmail}
	a := newTestAssistant(t, 10, &stubSummarizer{}, WithJournal(j))

	_, err := a.Ingest(context.Background(), mail("m1", alice, []string{bob}, nil, 0))
	require.Error(t, err)
	assert.Empty(t, a.Thread("thread-1"), "nothing applied when the journal rejects the email")
}

func TestPrepareContext_WithholdsWhatTheAudienceNeverSaw(t *testing.T) {
	classifier := &stubClassifier{acts: map[string][]core.ClassifiedAct{
		"m1": {{Type: core.SpeechActDecision, Content: "Budget cut by 20%", Confidence: 1}},
		"m2": {{Type: core.SpeechActRequest, Content: "Charlie, join the call", Confidence: 1}},
	}}
	a := newTestAssistant(t, 10, &stubSummarizer{}, WithClassifier(classifier))

	ingestAll(t, a,
		mail("m1", alice, []string{bob}, nil, 0),
		mail("m2", alice, []string{bob}, []string{charlie}, 1),
	)

	p, err := a.PrepareContext(context.Background(), Request{ThreadID: "thread-1", Participants: []string{bob, charlie}})
	require.NoError(t, err)

	assert.Equal(t, []string{"m2"}, ids(p.Context.RecentMessages))
	require.Len(t, p.Context.RelevantSpeechActs, 1)
	assert.Equal(t, "Charlie, join the call", p.Context.RelevantSpeechActs[0].Content)
	assert.Equal(t, 1, p.WithheldMessages)
	assert.Equal(t, 1, p.WithheldSpeechActs)
	assert.True(t, p.Withheld())
	assert.NotContains(t, p.Text, "Budget cut")
	assert.NotContains(t, p.Text, "body of m1")
	assert.False(t, p.Degraded)

	full, err := a.PrepareContext(context.Background(), Request{ThreadID: "thread-1", Participants: []string{alice, bob}})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids(full.Context.RecentMessages))
	assert.False(t, full.Withheld())
}

func TestPrepareContext_AssistantAddressIsNotAudience(t *testing.T) {
	email := mail("m1", alice, []string{bob}, nil, 0)
	req := Request{ThreadID: "thread-1", Participants: []string{bob, " Assistant@Example.com ", bob}}

	without := newTestAssistant(t, 10, &stubSummarizer{})
	ingestAll(t, without, email)
	p, err := without.PrepareContext(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, p.Context.RecentMessages)

	with := newTestAssistant(t, 10, &stubSummarizer{}, WithAssistantAddress(self))
	ingestAll(t, with, email)
	p, err = with.PrepareContext(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{bob}, p.Audience)
	assert.Equal(t, []string{"m1"}, ids(p.Context.RecentMessages))
}

func TestPrepareContext_OnlyAssistantAddressIsRejected(t *testing.T) {
	a := newTestAssistant(t, 10, &stubSummarizer{}, WithAssistantAddress(self))
	ingestAll(t, a, mail("m1", alice, []string{bob, self}, nil, 0))

	for _, participants := range [][]string{nil, {self}, {" ", "ASSISTANT@example.com"}} {
		_, err := a.PrepareContext(context.Background(), Request{ThreadID: "thread-1", Participants: participants})
		assert.ErrorIs(t, err, ErrNoAudience)

		res := a.CheckAccess([]string{"m1"}, participants)
		assert.False(t, res.Allowed)
		assert.NotEmpty(t, res.Reason)
	}
}

func TestPrepareContext_SummarizesOlderMessages(t *testing.T) {
	s := &stubSummarizer{}
	a := newTestAssistant(t, 2, s)

	for i, id := range []string{"m1", "m2", "m3", "m4", "m5"} {
		ingestAll(t, a, mail(id, alice, []string{bob}, nil, i))
	}

	p, err := a.PrepareContext(context.Background(), Request{ThreadID: "thread-1", Participants: []string{bob}})
	require.NoError(t, err)

	assert.Equal(t, []string{"m4", "m5"}, ids(p.Context.RecentMessages))
	require.Len(t, p.Context.Summaries, 2)
	assert.Equal(t, []string{"m1", "m2"}, p.Context.Summaries[0].MessageIDs)
	assert.Equal(t, []string{"m3"}, p.Context.Summaries[1].MessageIDs)
	assert.Contains(t, p.Text, "summary of m1,m2")
	assert.Positive(t, p.Tokens)
	assert.Equal(t, 2, s.calls)
}

func TestPrepareContext_DegradesWhenSummarizerFails(t *testing.T) {
	a := newTestAssistant(t, 2, &stubSummarizer{err: errors.New("rate limited")})

	for i, id := range []string{"m1", "m2", "m3", "m4"} {
		ingestAll(t, a, mail(id, alice, []string{bob}, nil, i))
	}

	p, err := a.PrepareContext(context.Background(), Request{ThreadID: "thread-1", Participants: []string{bob}})
	require.NoError(t, err)

	assert.True(t, p.Degraded)
	assert.Empty(t, p.Context.Summaries)
	assert.Equal(t, []string{"m3", "m4"}, ids(p.Context.RecentMessages))
}

func TestPrepareContext_CancelledContext(t *testing.T) {
	a := newTestAssistant(t, 1, &stubSummarizer{})
	ingestAll(t, a, mail("m1", alice, []string{bob}, nil, 0), mail("m2", alice, []string{bob}, nil, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.PrepareContext(ctx, Request{ThreadID: "thread-1", Participants: []string{bob}})
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrSummarization)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrepareContext_RelevantActsFollowRanking(t *testing.T) {
	classifier := &stubClassifier{acts: map[string][]core.ClassifiedAct{
		"m1": {{Type: core.SpeechActGreeting, Content: "hello"}},
		"m2": {
			{Type: core.SpeechActDecision, Content: "ship on Monday"},
			{Type: core.SpeechActCommitment, Content: "I will write the notes"},
		},
		"m3": {{Type: core.SpeechActQuestion, Content: "who hosts?"}},
	}}
	a := newTestAssistant(t, 10, &stubSummarizer{}, WithClassifier(classifier), WithMaxRelevantActs(3))

	ingestAll(t, a,
		mail("m1", alice, []string{bob}, nil, 0),
		mail("m2", alice, []string{bob}, nil, 1),
		mail("m3", alice, []string{bob}, nil, 2),
	)

	p, err := a.PrepareContext(context.Background(), Request{ThreadID: "thread-1", Participants: []string{bob}})
	require.NoError(t, err)

	var got []string
	for _, act := range p.Context.RelevantSpeechActs {
		got = append(got, act.Content)
	}
	assert.Equal(t, []string{"ship on Monday", "I will write the notes", "hello"}, got)
}

func TestPrepareContext_UnknownThread(t *testing.T) {
	a := newTestAssistant(t, 10, &stubSummarizer{})

	p, err := a.PrepareContext(context.Background(), Request{ThreadID: "nope", Participants: []string{bob}})
	require.NoError(t, err)
	assert.Empty(t, p.Context.RecentMessages)
	assert.Equal(t, "", p.Text)
}

func TestKnowledge_FilteredBySources(t *testing.T) {
	a := newTestAssistant(t, 10, &stubSummarizer{}, WithClock(func() time.Time { return t0 }))
	ingestAll(t, a,
		mail("m1", alice, []string{bob}, nil, 0),
		mail("m2", alice, []string{bob, charlie}, nil, 1),
	)

	secret, err := a.AddKnowledge(context.Background(), core.KnowledgeEntry{
		Category: core.KnowledgeDecision, Title: "Budget", Content: "cut", SourceMessageIDs: []string{"m1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, secret.ID)
	assert.Equal(t, t0, secret.CreatedAt)

	_, err = a.AddKnowledge(context.Background(), core.KnowledgeEntry{
		ID: "k2", Category: core.KnowledgeProject, Title: "Launch", Content: "in May", SourceMessageIDs: []string{"m2"},
	})
	require.NoError(t, err)

	p, err := a.PrepareContext(context.Background(), Request{ThreadID: "thread-1", Participants: []string{charlie}})
	require.NoError(t, err)

	require.Len(t, p.Context.RelevantKnowledge, 1)
	assert.Equal(t, "k2", p.Context.RelevantKnowledge[0].ID)
	assert.Equal(t, 1, p.WithheldKnowledge)
	assert.Len(t, a.Knowledge(), 2)
}

func TestCheckAccess(t *testing.T) {
	a := newTestAssistant(t, 10, &stubSummarizer{}, WithAssistantAddress(self))
	ingestAll(t, a, mail("m1", alice, []string{bob, self}, nil, 0))

	res := a.CheckAccess([]string{"m1"}, []string{bob, self})
	assert.True(t, res.Allowed)

	res = a.CheckAccess([]string{"m1"}, []string{bob, charlie})
	assert.False(t, res.Allowed)
	assert.Equal(t, []string{charlie}, res.RestrictedParticipants)
}

func TestRestore_RebuildsStateFromJournal(t *testing.T) {
	j := &memJournal{}
	classifier := &stubClassifier{acts: map[string][]core.ClassifiedAct{
		"m2": {{Type: core.SpeechActCommitment, Content: "I'll send it", Confidence: 0.8}},
	}}
	a := newTestAssistant(t, 10, &stubSummarizer{}, WithClassifier(classifier), WithJournal(j))

	ingestAll(t, a,
		mail("m1", alice, []string{bob}, nil, 0),
		mail("m2", bob, []string{alice}, []string{charlie}, 1),
	)
	_, err := a.AddKnowledge(context.Background(), core.KnowledgeEntry{ID: "k1", Category: core.KnowledgeFact, SourceMessageIDs: []string{"m2"}})
	require.NoError(t, err)

	restored := newTestAssistant(t, 10, &stubSummarizer{}, WithJournal(j))
	require.NoError(t, restored.Restore(context.Background()))

	assert.Equal(t, a.Thread("thread-1"), restored.Thread("thread-1"))
	assert.Equal(t, a.Threads(), restored.Threads())
	assert.Equal(t, a.Knowledge(), restored.Knowledge())
	assert.Equal(t, a.SpeechActs().GetByThread("thread-1"), restored.SpeechActs().GetByThread("thread-1"))
	assert.Equal(t, a.Tracker().GetAllParticipants(), restored.Tracker().GetAllParticipants())

	act := restored.SpeechActs().GetByThread("thread-1")[0]
	assert.True(t, restored.Tracker().HasAccessToSpeechAct(charlie, act.ID))
	assert.False(t, restored.Tracker().HasAccessToMessage(charlie, "m1"))

	// restoring twice yields the same state
	require.NoError(t, restored.Restore(context.Background()))
	assert.Len(t, restored.Thread("thread-1"), 2)
	assert.Equal(t, 1, restored.SpeechActs().Count())
}

func TestRestore_WithoutJournal(t *testing.T) {
	a := newTestAssistant(t, 10, &stubSummarizer{})
	assert.ErrorIs(t, a.Restore(context.Background()), ErrNoJournal)
}
