package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yksoni-monk/poke/domain/catalog"
	"github.com/yksoni-monk/poke/domain/match"
)

// ScanResult is the best catalog match for a scanned card.
type ScanResult struct {
	Card       catalog.Card   `json:"card"`
	Score      float64        `json:"score"`
	Price      *catalog.Price `json:"price,omitempty"`
	Candidates []match.Result `json:"-"`
}

// Scanner resolves a scanned image to card metadata and a reference price.
type Scanner struct {
	matcher *Matcher
	cards   catalog.CardStore
	logger  *slog.Logger
}

// NewScanner creates a Scanner.
func NewScanner(matcher *Matcher, cards catalog.CardStore, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{matcher: matcher, cards: cards, logger: logger}
}

// Scan identifies src and looks up the top candidate. It fails with
// ErrNoMatch when there is no candidate and catalog.ErrCardNotFound when the
// candidate has no metadata.
func (s *Scanner) Scan(ctx context.Context, src Source) (ScanResult, error) {
	candidates, err := s.matcher.Identify(ctx, src)
	if err != nil {
		return ScanResult{}, err
	}
	if len(candidates) == 0 {
		return ScanResult{}, ErrNoMatch
	}

	best := candidates[0]
	card, err := s.cards.Get(ctx, best.ID())
	if err != nil {
		return ScanResult{}, fmt.Errorf("lookup %s: %w", best.ID(), err)
	}

	result := ScanResult{Card: card, Score: best.Score(), Candidates: candidates}
	if price, ok := card.Price(); ok {
		result.Price = &price
	}
	s.logger.Info("card scanned",
		slog.String("card_id", card.ID),
		slog.String("name", card.Name),
		slog.Float64("score", best.Score()),
	)
	return result, nil
}
