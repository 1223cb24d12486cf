package speechact

import (
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sandevgo/tuskmail/internal/core"
)

// Filter selects speech acts. Zero-valued fields do not constrain the result;
// all set clauses must match.
type Filter struct {
	Type          core.SpeechActType
	ThreadID      string
	Participant   string
	Since         time.Time // inclusive
	Until         time.Time // inclusive
	MinConfidence float64   // inclusive
}

type entry struct {
	act core.SpeechAct
	seq uint64
}

// Repository is an in-process store of speech acts indexed by id, thread,
// type and participant.
type Repository struct {
	mu            sync.RWMutex
	acts          map[string]entry
	byThread      map[string]map[string]struct{}
	byType        map[core.SpeechActType]map[string]struct{}
	byParticipant map[string]map[string]struct{}
	nextSeq       uint64
}

func NewRepository() *Repository {
	r := &Repository{}
	r.reset()
	return r
}

func (r *Repository) reset() {
	r.acts = make(map[string]entry)
	r.byThread = make(map[string]map[string]struct{})
	r.byType = make(map[core.SpeechActType]map[string]struct{})
	r.byParticipant = make(map[string]map[string]struct{})
	r.nextSeq = 0
}

// Add upserts act by id.
func (r *Repository) Add(act core.SpeechAct) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.add(act)
}

func (r *Repository) AddMany(acts []core.SpeechAct) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, act := range acts {
		r.add(act)
	}
}

func (r *Repository) add(act core.SpeechAct) {
	seq := r.nextSeq
	if prev, ok := r.acts[act.ID]; ok {
		// keep the original insertion position on replace
		seq = prev.seq
		r.unindex(prev.act)
	} else {
		r.nextSeq++
	}

	act = cloneAct(act)
	r.acts[act.ID] = entry{act: act, seq: seq}

	addToIndex(r.byThread, act.ThreadID, act.ID)
	addToIndex(r.byType, act.Type, act.ID)
	for _, p := range act.Participants {
		addToIndex(r.byParticipant, p, act.ID)
	}
}

func (r *Repository) unindex(act core.SpeechAct) {
	removeFromIndex(r.byThread, act.ThreadID, act.ID)
	removeFromIndex(r.byType, act.Type, act.ID)
	for _, p := range act.Participants {
		removeFromIndex(r.byParticipant, p, act.ID)
	}
}

func (r *Repository) Get(id string) (core.SpeechAct, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.acts[id]
	if !ok {
		return core.SpeechAct{}, false
	}
	return cloneAct(e.act), true
}

// Query returns matching acts, newest first. Acts with equal timestamps keep
// their insertion order.
func (r *Repository) Query(f Filter) []core.SpeechAct {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []entry
	for _, id := range r.candidates(f) {
		e := r.acts[id]
		if matchesFilter(e.act, f) {
			matches = append(matches, e)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		ti, tj := matches[i].act.Timestamp, matches[j].act.Timestamp
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return matches[i].seq < matches[j].seq
	})

	out := make([]core.SpeechAct, len(matches))
	for i, e := range matches {
		out[i] = cloneAct(e.act)
	}
	return out
}

func (r *Repository) GetByType(t core.SpeechActType) []core.SpeechAct {
	return r.Query(Filter{Type: t})
}

func (r *Repository) GetByThread(threadID string) []core.SpeechAct {
	return r.Query(Filter{ThreadID: threadID})
}

// GetVisibleTo returns every act listing address among its participants.
// It looks only at the acts themselves, not at what the address was exposed to.
func (r *Repository) GetVisibleTo(address string) []core.SpeechAct {
	return r.Query(Filter{Participant: address})
}

func (r *Repository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reset()
}

func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.acts)
}

// candidates narrows the scan to the smallest applicable index.
func (r *Repository) candidates(f Filter) []string {
	var best map[string]struct{}
	indexed := false

	consider := func(set map[string]struct{}) {
		if !indexed || len(set) < len(best) {
			best = set
		}
		indexed = true
	}

	if f.ThreadID != "" {
		consider(r.byThread[f.ThreadID])
	}
	if f.Type != "" {
		consider(r.byType[f.Type])
	}
	if f.Participant != "" {
		consider(r.byParticipant[f.Participant])
	}

	if !indexed {
		ids := make([]string, 0, len(r.acts))
		for id := range r.acts {
			ids = append(ids, id)
		}
		return ids
	}

	ids := make([]string, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	return ids
}

func matchesFilter(act core.SpeechAct, f Filter) bool {
	if f.Type != "" && act.Type != f.Type {
		return false
	}
	if f.ThreadID != "" && act.ThreadID != f.ThreadID {
		return false
	}
	if f.Participant != "" && !act.VisibleTo(f.Participant) {
		return false
	}
	if !f.Since.IsZero() && act.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && act.Timestamp.After(f.Until) {
		return false
	}
	if act.Confidence < f.MinConfidence {
		return false
	}
	return true
}

// cloneAct detaches act from caller-owned slices and maps so stored acts and
// their index entries cannot drift apart.
func cloneAct(act core.SpeechAct) core.SpeechAct {
	act.Participants = slices.Clone(act.Participants)
	act.Metadata = maps.Clone(act.Metadata)
	return act
}

func addToIndex[K comparable](idx map[K]map[string]struct{}, key K, id string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[id] = struct{}{}
}

func removeFromIndex[K comparable](idx map[K]map[string]struct{}, key K, id string) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(idx, key)
	}
}
