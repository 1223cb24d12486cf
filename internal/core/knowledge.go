package core

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type KnowledgeCategory string

const (
	KnowledgeFact       KnowledgeCategory = "fact"
	KnowledgeDecision   KnowledgeCategory = "decision"
	KnowledgeCommitment KnowledgeCategory = "commitment"
	KnowledgePreference KnowledgeCategory = "preference"
	KnowledgeProject    KnowledgeCategory = "project"
	KnowledgeContact    KnowledgeCategory = "contact"
)

var knowledgeCategories = []KnowledgeCategory{
	KnowledgeFact,
	KnowledgeDecision,
	KnowledgeCommitment,
	KnowledgePreference,
	KnowledgeProject,
	KnowledgeContact,
}

func (c KnowledgeCategory) Valid() bool {
	return slices.Contains(knowledgeCategories, c)
}

func ParseKnowledgeCategory(s string) (KnowledgeCategory, error) {
	c := KnowledgeCategory(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown knowledge category %q", s)
	}
	return c, nil
}

// KnowledgeEntry is a piece of knowledge synthesized from one or more emails.
type KnowledgeEntry struct {
	ID               string            `json:"id"`
	Category         KnowledgeCategory `json:"category"`
	Title            string            `json:"title"`
	Content          string            `json:"content"`
	SourceMessageIDs []string          `json:"source_message_ids"`
	CreatedAt        time.Time         `json:"created_at"`
}
