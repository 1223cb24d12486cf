package memory

import (
	"fmt"
	"strings"

	"github.com/sandevgo/tuskmail/internal/core"
)

const timestampLayout = "2006-01-02 15:04 MST"

// FormatContext renders mc as prompt text: summaries oldest to newest, recent
// messages, speech acts, then knowledge. Empty sections are omitted.
func FormatContext(mc core.MemoryContext) string {
	var sections []string

	if len(mc.Summaries) > 0 {
		sections = append(sections, formatSummaries(mc.Summaries))
	}
	if len(mc.RecentMessages) > 0 {
		sections = append(sections, formatMessages(mc.RecentMessages))
	}
	if len(mc.RelevantSpeechActs) > 0 {
		sections = append(sections, formatSpeechActs(mc.RelevantSpeechActs))
	}
	if len(mc.RelevantKnowledge) > 0 {
		sections = append(sections, formatKnowledge(mc.RelevantKnowledge))
	}

	return strings.Join(sections, "\n")
}

func formatSummaries(summaries []core.EmailSummary) string {
	var sb strings.Builder
	sb.WriteString("## Earlier Conversation (summarized)\n\n")

	first := 1
	for i, s := range summaries {
		last := first + len(s.MessageIDs) - 1
		fmt.Fprintf(&sb, "### Part %d (messages %d-%d)\n", i+1, first, last)
		first = last + 1

		sb.WriteString(strings.TrimSpace(s.Summary))
		sb.WriteString("\n")

		if len(s.KeyPoints) > 0 {
			sb.WriteString("\nKey points:\n")
			for _, kp := range s.KeyPoints {
				sb.WriteString("- ")
				sb.WriteString(kp)
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatMessages(messages []core.Email) string {
	var sb strings.Builder
	sb.WriteString("## Recent Messages\n\n")
	for _, m := range messages {
		sb.WriteString(formatEmail(m))
		sb.WriteString("---\n")
	}
	return sb.String()
}

func formatEmail(m core.Email) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] From: %s\n", m.Timestamp.Format(timestampLayout), m.From)
	fmt.Fprintf(&sb, "To: %s\n", strings.Join(m.To, ", "))
	if len(m.Cc) > 0 {
		fmt.Fprintf(&sb, "Cc: %s\n", strings.Join(m.Cc, ", "))
	}
	fmt.Fprintf(&sb, "Subject: %s\n\n", m.Subject)
	sb.WriteString(strings.TrimSpace(m.Body))
	sb.WriteString("\n")
	return sb.String()
}

func formatSpeechActs(acts []core.SpeechAct) string {
	var sb strings.Builder
	sb.WriteString("## Relevant Speech Acts\n\n")
	for _, a := range acts {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", strings.ToUpper(string(a.Type)), a.Actor, a.Content)
	}
	return sb.String()
}

func formatKnowledge(entries []core.KnowledgeEntry) string {
	var order []core.KnowledgeCategory
	grouped := make(map[core.KnowledgeCategory][]core.KnowledgeEntry)
	for _, e := range entries {
		if _, ok := grouped[e.Category]; !ok {
			order = append(order, e.Category)
		}
		grouped[e.Category] = append(grouped[e.Category], e)
	}

	var sb strings.Builder
	sb.WriteString("## Relevant Knowledge\n")
	for _, c := range order {
		fmt.Fprintf(&sb, "\n### %s\n", categoryTitle(c))
		for _, e := range grouped[c] {
			fmt.Fprintf(&sb, "**%s**\n%s\n", e.Title, strings.TrimSpace(e.Content))
		}
	}
	return sb.String()
}

func categoryTitle(c core.KnowledgeCategory) string {
	s := string(c)
	if s == "" {
		return "Other"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
