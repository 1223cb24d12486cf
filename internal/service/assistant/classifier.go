package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sandevgo/tuskmail/internal/core"
	"github.com/sandevgo/tuskmail/pkg/log"
	"github.com/sandevgo/tuskmail/pkg/retry"
)

const classifierSystemPrompt = "You are a speech act classification system for email. Output only valid JSON."

// LLMClassifier is a core.Classifier backed by a chat model.
type LLMClassifier struct {
	ai      core.AIProvider
	retrier *retry.Retrier
}

func NewLLMClassifier(ai core.AIProvider, retrier *retry.Retrier) *LLMClassifier {
	if retrier == nil {
		retrier = retry.NewDefaultRetrier()
	}
	return &LLMClassifier{
		ai:      ai,
		retrier: retrier,
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, email core.Email) ([]core.ClassifiedAct, error) {
	messages := []core.Message{
		{Role: core.RoleSystem, Content: classifierSystemPrompt},
		{Role: core.RoleUser, Content: buildClassificationPrompt(email)},
	}

	var acts []core.ClassifiedAct
	err := c.retrier.Do(ctx, func() error {
		resp, err := c.ai.Chat(ctx, messages)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("message_id", email.ID).Msg("classification request failed")
			return fmt.Errorf("llm chat: %w", err)
		}

		parsed, err := parseClassificationResponse(ctx, resp.Content)
		if err != nil {
			return retry.Permanent(err)
		}
		acts = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acts, nil
}

func buildClassificationPrompt(email core.Email) string {
	types := make([]string, 0, len(core.SpeechActTypes()))
	for _, t := range core.SpeechActTypes() {
		types = append(types, t.String())
	}

	return fmt.Sprintf(
		`Split the email into speech acts. Output format: JSON list of objects {type, content, confidence}. Types: [%s]. Rules: 1. content restates the act in one self-contained sentence. 2. confidence is a number between 0 and 1. 3. Ignore quoted replies and signatures. 4. Return [] if the email carries no speech act. Email:
From: %s
Subject: %s

%s`,
		strings.Join(types, ", "), email.From, email.Subject, email.Body,
	)
}

type classifiedItem struct {
	Type       string         `json:"type"`
	Content    string         `json:"content"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// parseClassificationResponse drops items with an unknown type or empty
// content and clamps confidence to [0, 1].
func parseClassificationResponse(ctx context.Context, content string) ([]core.ClassifiedAct, error) {
	jsonStr := extractJSONArray(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var items []classifiedItem
	if err := json.Unmarshal([]byte(jsonStr), &items); err != nil {
		return nil, fmt.Errorf("unmarshal speech acts: %w", err)
	}

	acts := make([]core.ClassifiedAct, 0, len(items))
	for _, it := range items {
		t, err := core.ParseSpeechActType(it.Type)
		if err != nil {
			log.FromCtx(ctx).Debug().Str("type", it.Type).Msg("dropping speech act of unknown type")
			continue
		}
		text := strings.TrimSpace(it.Content)
		if text == "" {
			continue
		}
		acts = append(acts, core.ClassifiedAct{
			Type:       t,
			Content:    text,
			Confidence: min(max(it.Confidence, 0), 1),
			Metadata:   it.Metadata,
		})
	}
	return acts, nil
}

func extractJSONArray(content string) string {
	start := strings.Index(content, "[")
	if start == -1 {
		return ""
	}

	end := strings.LastIndex(content[start:], "]")
	if end == -1 {
		return ""
	}

	return content[start : start+end+1]
}
