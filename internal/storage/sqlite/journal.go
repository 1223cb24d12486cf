package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sandevgo/tuskmail/internal/core"
	"github.com/sandevgo/tuskmail/pkg/log"
)

// JournalRepo stores emails, speech acts and knowledge entries in arrival
// order. Appending an item whose (kind, id) is already stored is a no-op.
type JournalRepo struct {
	db *sql.DB
}

func NewJournalRepo(db *sql.DB) *JournalRepo {
	return &JournalRepo{db: db}
}

func (r *JournalRepo) AppendEmail(ctx context.Context, email core.Email) error {
	return r.append(ctx, core.JournalEmail, email.ID, email.ThreadID, email)
}

func (r *JournalRepo) AppendSpeechAct(ctx context.Context, act core.SpeechAct) error {
	return r.append(ctx, core.JournalSpeechAct, act.ID, act.ThreadID, act)
}

func (r *JournalRepo) AppendKnowledge(ctx context.Context, entry core.KnowledgeEntry) error {
	return r.append(ctx, core.JournalKnowledge, entry.ID, "", entry)
}

func (r *JournalRepo) append(ctx context.Context, kind core.JournalKind, itemID, threadID string, payload any) error {
	if itemID == "" {
		return fmt.Errorf("journal %s: empty id", kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO journal (kind, item_id, thread_id, payload) VALUES (?, ?, ?, ?)
		 ON CONFLICT (kind, item_id) DO NOTHING`,
		string(kind), itemID, threadID, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to append %s %s: %w", kind, itemID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		log.FromCtx(ctx).Debug().
			Str("kind", string(kind)).
			Str("item_id", itemID).
			Msg("journal entry already present")
	}
	return nil
}

// Replay calls fn for every entry in append order and stops at the first error.
func (r *JournalRepo) Replay(ctx context.Context, fn func(core.JournalEntry) error) error {
	entries, err := r.load(ctx, `SELECT seq, kind, payload FROM journal ORDER BY seq ASC`)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return fmt.Errorf("replay entry %d: %w", e.Seq, err)
		}
	}
	return nil
}

// GetThread returns the journaled emails of a thread in append order.
func (r *JournalRepo) GetThread(ctx context.Context, threadID string) ([]core.Email, error) {
	entries, err := r.load(ctx,
		`SELECT seq, kind, payload FROM journal WHERE kind = ? AND thread_id = ? ORDER BY seq ASC`,
		string(core.JournalEmail), threadID,
	)
	if err != nil {
		return nil, err
	}

	emails := make([]core.Email, 0, len(entries))
	for _, e := range entries {
		emails = append(emails, *e.Email)
	}
	return emails, nil
}

// Counts returns the number of journaled items per kind.
func (r *JournalRepo) Counts(ctx context.Context) (map[core.JournalKind]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM journal GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count journal: %w", err)
	}
	defer rows.Close()

	counts := make(map[core.JournalKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[core.JournalKind(kind)] = n
	}
	return counts, rows.Err()
}

// load reads all matching rows before returning so callers may write to the
// journal while consuming the result.
func (r *JournalRepo) load(ctx context.Context, query string, args ...any) ([]core.JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []core.JournalEntry
	for rows.Next() {
		var (
			seq     int64
			kind    string
			payload string
		)
		if err := rows.Scan(&seq, &kind, &payload); err != nil {
			return nil, err
		}

		entry, err := decodeEntry(seq, core.JournalKind(kind), []byte(payload))
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func decodeEntry(seq int64, kind core.JournalKind, payload []byte) (core.JournalEntry, error) {
	entry := core.JournalEntry{Seq: seq, Kind: kind}

	var target any
	switch kind {
	case core.JournalEmail:
		entry.Email = &core.Email{}
		target = entry.Email
	case core.JournalSpeechAct:
		entry.SpeechAct = &core.SpeechAct{}
		target = entry.SpeechAct
	case core.JournalKnowledge:
		entry.Knowledge = &core.KnowledgeEntry{}
		target = entry.Knowledge
	default:
		return core.JournalEntry{}, fmt.Errorf("journal entry %d: unknown kind %q", seq, kind)
	}

	if err := json.Unmarshal(payload, target); err != nil {
		return core.JournalEntry{}, fmt.Errorf("journal entry %d: failed to decode %s: %w", seq, kind, err)
	}
	return entry, nil
}
