package services

import (
	"context"
	"math/rand/v2"

	"github.com/AnshRaj112/moodiary-backend/internal/models"
)

// PastelColors are the quote card backgrounds.
var PastelColors = []string{
	"#FFE4E1",
	"#E8F5E9",
	"#FFF3E0",
	"#E3F2FD",
	"#F3E5F5",
	"#FFF9C4",
	"#E0F7FA",
	"#FCE4EC",
}

// DefaultQuotes are served while the quotes collection is empty.
var DefaultQuotes = []models.Quote{
	{ID: "builtin-1", Text: "Every day may not be good, but there is something good in every day.", Author: "Alice Morse Earle", Category: "positivity"},
	{ID: "builtin-2", Text: "Write it on your heart that every day is the best day in the year.", Author: "Ralph Waldo Emerson", Category: "motivation"},
	{ID: "builtin-3", Text: "The secret of getting ahead is getting started.", Author: "Mark Twain", Category: "motivation"},
	{ID: "builtin-4", Text: "Keep your face always toward the sunshine, and shadows will fall behind you.", Author: "Walt Whitman", Category: "positivity"},
	{ID: "builtin-5", Text: "Nothing can dim the light that shines from within.", Author: "Maya Angelou", Category: "self-love"},
}

const quotesCacheKey = "quotes:all"

// IntN picks a number in [0, n).
type IntN interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// RandomQuote picks a quote and a background colour. When more than one quote
// exists the one with previousID is never picked. It returns nil for an empty
// list.
func RandomQuote(quotes []models.Quote, previousID string, rnd IntN) *models.DisplayQuote {
	if len(quotes) == 0 {
		return nil
	}
	if rnd == nil {
		rnd = globalRand{}
	}

	pool := quotes
	if len(quotes) > 1 && previousID != "" {
		pool = make([]models.Quote, 0, len(quotes))
		for _, q := range quotes {
			if q.ID != previousID {
				pool = append(pool, q)
			}
		}
		if len(pool) == 0 {
			pool = quotes
		}
	}

	return &models.DisplayQuote{
		Quote:           pool[rnd.IntN(len(pool))],
		BackgroundColor: PastelColors[rnd.IntN(len(PastelColors))],
	}
}

// QuoteSource lists the stored quotes.
type QuoteSource interface {
	ListQuotes(ctx context.Context) ([]models.Quote, error)
}

// QuoteService serves random quotes from the store, with the list cached.
type QuoteService struct {
	Source QuoteSource
	Cache  *RedisCache // optional
	Rand   IntN
}

func NewQuoteService(src QuoteSource, cache *RedisCache) *QuoteService {
	return &QuoteService{Source: src, Cache: cache}
}

// Quotes returns the stored quotes, or DefaultQuotes when there are none.
func (s *QuoteService) Quotes(ctx context.Context) ([]models.Quote, error) {
	if s.Cache != nil {
		var cached []models.Quote
		if ok, err := s.Cache.Get(ctx, quotesCacheKey, &cached); err == nil && ok && len(cached) > 0 {
			return cached, nil
		}
	}

	quotes, err := s.Source.ListQuotes(ctx)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return DefaultQuotes, nil
	}
	if s.Cache != nil {
		_ = s.Cache.Set(ctx, quotesCacheKey, quotes)
	}
	return quotes, nil
}

func (s *QuoteService) Random(ctx context.Context, previousID string) (*models.DisplayQuote, error) {
	quotes, err := s.Quotes(ctx)
	if err != nil {
		return nil, err
	}
	return RandomQuote(quotes, previousID, s.Rand), nil
}
