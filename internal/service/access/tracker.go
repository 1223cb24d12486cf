package access

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sandevgo/tuskmail/internal/core"
)

// Tracker records, per participant address, which emails and speech acts the
// address was legitimately exposed to. Recorded ids are never removed, so an
// address that once received an item keeps access to it. Unknown addresses have
// no access to anything.
type Tracker struct {
	mu           sync.RWMutex
	participants map[string]*core.ParticipantContext
}

func NewTracker() *Tracker {
	return &Tracker{
		participants: make(map[string]*core.ParticipantContext),
	}
}

// TrackEmail grants every from/to/cc address access to the email, creating
// participant contexts on first sight.
func (t *Tracker) TrackEmail(email core.Email) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, addr := range email.Participants() {
		pc, ok := t.participants[addr]
		if !ok {
			pc = &core.ParticipantContext{
				Address:              addr,
				AccessibleMessages:   make(map[string]struct{}),
				AccessibleSpeechActs: make(map[string]struct{}),
				FirstSeen:            email.Timestamp,
			}
			t.participants[addr] = pc
		}

		pc.AccessibleMessages[email.ID] = struct{}{}
		if email.Timestamp.Before(pc.FirstSeen) {
			pc.FirstSeen = email.Timestamp
		}
	}
}

// TrackSpeechAct grants access to the act only for addresses already known
// through an email. It never creates a participant context.
func (t *Tracker) TrackSpeechAct(act core.SpeechAct) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, addr := range act.Participants {
		if pc, ok := t.participants[addr]; ok {
			pc.AccessibleSpeechActs[act.ID] = struct{}{}
		}
	}
}

func (t *Tracker) HasAccessToMessage(address, messageID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.hasMessage(address, messageID)
}

func (t *Tracker) HasAccessToSpeechAct(address, actID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.hasSpeechAct(address, actID)
}

// AllHaveAccessToMessage reports whether every address may see the message.
func (t *Tracker) AllHaveAccessToMessage(addresses []string, messageID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.allHaveMessage(addresses, messageID)
}

func (t *Tracker) AllHaveAccessToSpeechAct(addresses []string, actID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, addr := range addresses {
		if !t.hasSpeechAct(addr, actID) {
			return false
		}
	}
	return true
}

// FilterEmails keeps the emails every address has access to.
func (t *Tracker) FilterEmails(emails []core.Email, addresses []string) []core.Email {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]core.Email, 0, len(emails))
	for _, e := range emails {
		if t.allHaveMessage(addresses, e.ID) {
			out = append(out, e)
		}
	}
	return out
}

func (t *Tracker) FilterSpeechActs(acts []core.SpeechAct, addresses []string) []core.SpeechAct {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]core.SpeechAct, 0, len(acts))
	for _, a := range acts {
		shareable := true
		for _, addr := range addresses {
			if !t.hasSpeechAct(addr, a.ID) {
				shareable = false
				break
			}
		}
		if shareable {
			out = append(out, a)
		}
	}
	return out
}

// FilterKnowledgeEntries keeps an entry when every address has access to at
// least one of its source emails. Knowledge may be synthesized from several
// emails, so a single legitimate source is enough.
func (t *Tracker) FilterKnowledgeEntries(entries []core.KnowledgeEntry, addresses []string) []core.KnowledgeEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]core.KnowledgeEntry, 0, len(entries))
	for _, e := range entries {
		if len(t.restricted(e.SourceMessageIDs, addresses)) == 0 {
			out = append(out, e)
		}
	}
	return out
}

// CheckAccess explains whether material derived from sourceMessageIDs may be
// shared with addresses. An address passes when it has access to at least one
// of the ids.
func (t *Tracker) CheckAccess(sourceMessageIDs []string, addresses []string) core.AccessResult {
	t.mu.RLock()
	defer t.mu.RUnlock()

	restricted := t.restricted(sourceMessageIDs, addresses)
	if len(restricted) == 0 {
		return core.AccessResult{Allowed: true}
	}

	return core.AccessResult{
		Allowed: false,
		Reason: fmt.Sprintf("%d participant(s) never received the source messages: %s",
			len(restricted), strings.Join(restricted, ", ")),
		RestrictedParticipants: restricted,
	}
}

// GetParticipantContext returns a copy of the address's context.
func (t *Tracker) GetParticipantContext(address string) (core.ParticipantContext, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	pc, ok := t.participants[address]
	if !ok {
		return core.ParticipantContext{}, false
	}

	return core.ParticipantContext{
		Address:              pc.Address,
		AccessibleMessages:   copySet(pc.AccessibleMessages),
		AccessibleSpeechActs: copySet(pc.AccessibleSpeechActs),
		FirstSeen:            pc.FirstSeen,
	}, true
}

// GetAllParticipants returns every tracked address, sorted.
func (t *Tracker) GetAllParticipants() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.participants))
	for addr := range t.participants {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.participants = make(map[string]*core.ParticipantContext)
}

func (t *Tracker) hasMessage(address, messageID string) bool {
	pc, ok := t.participants[address]
	if !ok {
		return false
	}
	_, ok = pc.AccessibleMessages[messageID]
	return ok
}

func (t *Tracker) hasSpeechAct(address, actID string) bool {
	pc, ok := t.participants[address]
	if !ok {
		return false
	}
	_, ok = pc.AccessibleSpeechActs[actID]
	return ok
}

func (t *Tracker) allHaveMessage(addresses []string, messageID string) bool {
	for _, addr := range addresses {
		if !t.hasMessage(addr, messageID) {
			return false
		}
	}
	return true
}

// restricted lists, in input order and without duplicates, the addresses that
// have access to none of ids.
func (t *Tracker) restricted(ids []string, addresses []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(addresses))

	for _, addr := range addresses {
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}

		ok := false
		for _, id := range ids {
			if t.hasMessage(addr, id) {
				ok = true
				break
			}
		}
		if !ok {
			out = append(out, addr)
		}
	}
	return out
}

func copySet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}
