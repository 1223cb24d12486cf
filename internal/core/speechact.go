package core

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type SpeechActType string

const (
	SpeechActRequest        SpeechActType = "request"
	SpeechActQuestion       SpeechActType = "question"
	SpeechActCommitment     SpeechActType = "commitment"
	SpeechActDecision       SpeechActType = "decision"
	SpeechActStatement      SpeechActType = "statement"
	SpeechActGreeting       SpeechActType = "greeting"
	SpeechActAcknowledgment SpeechActType = "acknowledgment"
	SpeechActSuggestion     SpeechActType = "suggestion"
	SpeechActObjection      SpeechActType = "objection"
	SpeechActAgreement      SpeechActType = "agreement"
)

var speechActTypes = []SpeechActType{
	SpeechActRequest,
	SpeechActQuestion,
	SpeechActCommitment,
	SpeechActDecision,
	SpeechActStatement,
	SpeechActGreeting,
	SpeechActAcknowledgment,
	SpeechActSuggestion,
	SpeechActObjection,
	SpeechActAgreement,
}

// SpeechActTypes lists the closed vocabulary of speech act types.
func SpeechActTypes() []SpeechActType {
	return slices.Clone(speechActTypes)
}

func (t SpeechActType) Valid() bool {
	return slices.Contains(speechActTypes, t)
}

func (t SpeechActType) String() string {
	return string(t)
}

// ParseSpeechActType accepts any casing and surrounding whitespace.
func ParseSpeechActType(s string) (SpeechActType, error) {
	t := SpeechActType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown speech act type %q", s)
	}
	return t, nil
}

// SpeechAct is a classified communicative unit extracted from one email.
// Values are never mutated after creation.
type SpeechAct struct {
	ID              string         `json:"id"`
	Type            SpeechActType  `json:"type"`
	Content         string         `json:"content"`
	Actor           string         `json:"actor"`
	Participants    []string       `json:"participants"`
	Confidence      float64        `json:"confidence"`
	SourceMessageID string         `json:"source_message_id"`
	ThreadID        string         `json:"thread_id"`
	Timestamp       time.Time      `json:"timestamp"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// VisibleTo reports whether address is listed among the act's participants.
func (a SpeechAct) VisibleTo(address string) bool {
	return slices.Contains(a.Participants, address)
}

// ClassifiedAct is the raw output of the classification oracle for one email.
type ClassifiedAct struct {
	Type       SpeechActType  `json:"type"`
	Content    string         `json:"content"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
