package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/moodiary-backend/internal/models"
)

var testQuotes = []models.Quote{
	{ID: "q1", Text: "one"},
	{ID: "q2", Text: "two"},
	{ID: "q3", Text: "three"},
}

func TestRandomQuote_Empty(t *testing.T) {
	assert.Nil(t, RandomQuote(nil, "", nil))
	assert.Nil(t, RandomQuote([]models.Quote{}, "q1", nil))
}

func TestRandomQuote_NeverRepeatsPrevious(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		q := RandomQuote(testQuotes, "q2", rnd)
		require.NotNil(t, q)
		assert.NotEqual(t, "q2", q.ID)
		assert.Contains(t, PastelColors, q.BackgroundColor)
	}
}

func TestRandomQuote_SingleQuoteMayRepeat(t *testing.T) {
	q := RandomQuote(testQuotes[:1], "q1", nil)
	require.NotNil(t, q)
	assert.Equal(t, "q1", q.ID)
}

func TestRandomQuote_UnknownPreviousUsesWholePool(t *testing.T) {
	rnd := rand.New(rand.NewPCG(3, 4))
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[RandomQuote(testQuotes, "gone", rnd).ID] = true
	}
	assert.Len(t, seen, 3)
}

type fakeQuoteSource struct {
	quotes []models.Quote
	err    error
}

func (f fakeQuoteSource) ListQuotes(context.Context) ([]models.Quote, error) {
	return f.quotes, f.err
}

func TestQuoteService_FallsBackToDefaults(t *testing.T) {
	svc := NewQuoteService(fakeQuoteSource{}, nil)
	quotes, err := svc.Quotes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultQuotes, quotes)

	q, err := svc.Random(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, q)
}

func TestQuoteService_SourceError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewQuoteService(fakeQuoteSource{err: boom}, nil).Random(context.Background(), "")
	assert.ErrorIs(t, err, boom)
}
