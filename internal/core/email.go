package core

import "time"

// Email is one message of a thread as seen by the assistant.
type Email struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	From      string    `json:"from"`
	To        []string  `json:"to,omitempty"`
	Cc        []string  `json:"cc,omitempty"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Participants returns from, to and cc addresses without duplicates,
// in order of first appearance.
func (e Email) Participants() []string {
	seen := make(map[string]struct{}, 1+len(e.To)+len(e.Cc))
	out := make([]string, 0, 1+len(e.To)+len(e.Cc))

	add := func(addr string) {
		if addr == "" {
			return
		}
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}

	add(e.From)
	for _, a := range e.To {
		add(a)
	}
	for _, a := range e.Cc {
		add(a)
	}
	return out
}
