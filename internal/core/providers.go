package core

import "context"

type AIProvider interface {
	Chat(ctx context.Context, history []Message) (Message, error)
}

// Classifier extracts speech acts from a single email.
type Classifier interface {
	Classify(ctx context.Context, email Email) ([]ClassifiedAct, error)
}

// Summarizer condenses an ordered batch of emails from one thread.
type Summarizer interface {
	Summarize(ctx context.Context, threadID string, batch []Email) (SummaryResult, error)
}
