package memory

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/sandevgo/tuskmail/internal/config"
)

// TokenEstimator approximates the token cost of a set of text fragments.
type TokenEstimator interface {
	Estimate(parts ...string) int
}

// HeuristicEstimator counts one token per four characters of the combined text.
type HeuristicEstimator struct{}

func (HeuristicEstimator) Estimate(parts ...string) int {
	chars := 0
	for _, p := range parts {
		chars += utf8.RuneCountInString(p)
	}
	return chars / 4
}

// TiktokenEstimator counts real BPE tokens.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &TiktokenEstimator{enc: enc}, nil
}

func (t *TiktokenEstimator) Estimate(parts ...string) int {
	n := 0
	for _, p := range parts {
		if p == "" {
			continue
		}
		n += len(t.enc.Encode(p, nil, nil))
	}
	return n
}

// NewTokenEstimator resolves an estimator by its configured name.
func NewTokenEstimator(name string) (TokenEstimator, error) {
	switch name {
	case "", config.TokenEstimatorHeuristic:
		return HeuristicEstimator{}, nil
	case config.TokenEstimatorTiktoken:
		return NewTiktokenEstimator("cl100k_base")
	default:
		return nil, fmt.Errorf("unknown token estimator: %s", name)
	}
}
