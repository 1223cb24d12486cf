package memory

import (
	"fmt"
	"strings"

	"github.com/sandevgo/tuskmail/internal/core"
)

const summarySystemPrompt = "You summarize email threads for an assistant. Output only valid JSON."

func buildSummaryPrompt(threadID string, batch []core.Email) string {
	var sb strings.Builder
	for _, m := range batch {
		sb.WriteString(formatEmail(m))
		sb.WriteString("---\n")
	}

	return fmt.Sprintf(
		`Summarize the following %d emails from thread %s. Output format: JSON object {"summary": string, "key_points": [string]}. Rules: 1. Keep names and addresses exactly as written. 2. Key points list requests, commitments, decisions and open questions. 3. Do not add information that is not in the emails. Emails:
%s`,
		len(batch), threadID, sb.String(),
	)
}
