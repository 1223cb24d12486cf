package memory

import (
	"sort"
	"strings"

	"github.com/sandevgo/tuskmail/internal/core"
)

const (
	baseScore       = 1.0
	perActBonus     = 2.0
	commitmentBonus = 3.0
	decisionBonus   = 3.0
	keywordBonus    = 1.5
)

type ScoredMessage struct {
	Email core.Email
	Score float64
}

// ScoreMessage rates how much detail an email deserves. Only acts whose
// SourceMessageID is the email's id count; the commitment and decision bonuses
// are flat and stack with each other.
func (a *HybridAssembler) ScoreMessage(msg core.Email, acts []core.SpeechAct) float64 {
	var colocated []core.SpeechAct
	for _, act := range acts {
		if act.SourceMessageID == msg.ID {
			colocated = append(colocated, act)
		}
	}
	return a.score(msg, colocated)
}

// RankMessages orders messages by descending score. Equal scores keep the
// input order.
func (a *HybridAssembler) RankMessages(messages []core.Email, acts []core.SpeechAct) []ScoredMessage {
	bySource := make(map[string][]core.SpeechAct, len(acts))
	for _, act := range acts {
		bySource[act.SourceMessageID] = append(bySource[act.SourceMessageID], act)
	}

	ranked := make([]ScoredMessage, len(messages))
	for i, m := range messages {
		ranked[i] = ScoredMessage{Email: m, Score: a.score(m, bySource[m.ID])}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func (a *HybridAssembler) score(msg core.Email, colocated []core.SpeechAct) float64 {
	score := baseScore + perActBonus*float64(len(colocated))

	var hasCommitment, hasDecision bool
	for _, act := range colocated {
		switch act.Type {
		case core.SpeechActCommitment:
			hasCommitment = true
		case core.SpeechActDecision:
			hasDecision = true
		}
	}
	if hasCommitment {
		score += commitmentBonus
	}
	if hasDecision {
		score += decisionBonus
	}

	if len(a.keywords) > 0 {
		subject := strings.ToLower(msg.Subject)
		body := strings.ToLower(msg.Body)
		for _, k := range a.keywords {
			if strings.Contains(subject, k) || strings.Contains(body, k) {
				score += keywordBonus
			}
		}
	}

	return score
}
