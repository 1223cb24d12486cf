package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sandevgo/tuskmail/internal/core"
	"github.com/sandevgo/tuskmail/pkg/log"
	"github.com/sandevgo/tuskmail/pkg/retry"
)

// LLMSummarizer is a core.Summarizer backed by a chat model.
type LLMSummarizer struct {
	ai      core.AIProvider
	retrier *retry.Retrier
}

func NewLLMSummarizer(ai core.AIProvider, retrier *retry.Retrier) *LLMSummarizer {
	if retrier == nil {
		retrier = retry.NewDefaultRetrier()
	}
	return &LLMSummarizer{
		ai:      ai,
		retrier: retrier,
	}
}

// Summarize retries transport failures; an unusable answer fails at once.
func (s *LLMSummarizer) Summarize(ctx context.Context, threadID string, batch []core.Email) (core.SummaryResult, error) {
	if len(batch) == 0 {
		return core.SummaryResult{}, errors.New("empty batch")
	}

	messages := []core.Message{
		{Role: core.RoleSystem, Content: summarySystemPrompt},
		{Role: core.RoleUser, Content: buildSummaryPrompt(threadID, batch)},
	}

	var result core.SummaryResult
	err := s.retrier.Do(ctx, func() error {
		resp, err := s.ai.Chat(ctx, messages)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("thread_id", threadID).Msg("summary request failed")
			return fmt.Errorf("llm chat: %w", err)
		}

		parsed, err := parseSummaryResponse(resp.Content)
		if err != nil {
			return retry.Permanent(err)
		}
		result = parsed
		return nil
	})
	if err != nil {
		return core.SummaryResult{}, err
	}
	return result, nil
}

func parseSummaryResponse(content string) (core.SummaryResult, error) {
	jsonStr := extractJSONObject(content)
	if jsonStr == "" {
		return core.SummaryResult{}, fmt.Errorf("no JSON object found in response")
	}

	var res core.SummaryResult
	if err := json.Unmarshal([]byte(jsonStr), &res); err != nil {
		return core.SummaryResult{}, fmt.Errorf("unmarshal summary: %w", err)
	}

	res.Summary = strings.TrimSpace(res.Summary)
	if res.Summary == "" {
		return core.SummaryResult{}, fmt.Errorf("summary is empty")
	}

	points := res.KeyPoints[:0]
	for _, kp := range res.KeyPoints {
		if kp = strings.TrimSpace(kp); kp != "" {
			points = append(points, kp)
		}
	}
	res.KeyPoints = points

	return res, nil
}

func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}

	end := strings.LastIndex(content[start:], "}")
	if end == -1 {
		return ""
	}

	return content[start : start+end+1]
}
