package ranking

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/iae-bsb/iae-bot/internal/models"
)

func intPtr(v int) *int { return &v }

func TestParsePriceTier(t *testing.T) {
	tests := []struct {
		in   string
		want PriceTier
	}{
		{"algo mais barato", PriceTierEconomic},
		{"econômico", PriceTierEconomic},
		{"moderado tá bom", PriceTierModerate},
		{"pode ser caro", PriceTierLuxury},
		{"tanto faz", PriceTierNone},
	}
	for _, tt := range tests {
		if got := ParsePriceTier(tt.in); got != tt.want {
			t.Errorf("ParsePriceTier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBaseScore(t *testing.T) {
	tests := []struct {
		name  string
		place models.Place
		bias  Bias
		want  float64
	}{
		{
			name:  "rating and reviews only",
			place: models.Place{PlaceID: "p1", Rating: 4.5, UserRatingsTotal: 100},
			want:  4.5*2 + 2, // log10(100) = 2
		},
		{
			name:  "zero reviews clamp to one",
			place: models.Place{PlaceID: "p1", Rating: 3.0},
			want:  6.0,
		},
		{
			name:  "price tier match adds two",
			place: models.Place{PlaceID: "p1", Rating: 4.0, UserRatingsTotal: 10, PriceLevel: intPtr(1)},
			bias:  Bias{PriceTier: PriceTierEconomic},
			want:  4.0*2 + 1 + 2,
		},
		{
			name:  "luxury tier requires level four",
			place: models.Place{PlaceID: "p1", Rating: 4.0, UserRatingsTotal: 10, PriceLevel: intPtr(3)},
			bias:  Bias{PriceTier: PriceTierLuxury},
			want:  4.0*2 + 1,
		},
		{
			name:  "sponsor bonus",
			place: models.Place{PlaceID: "sp", Rating: 4.0, UserRatingsTotal: 10},
			bias:  Bias{IsSponsored: func(id string) bool { return id == "sp" }},
			want:  4.0*2 + 1 + 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BaseScore(&tt.place, tt.bias)
			if math.Abs(got-tt.want) > 0.0001 {
				t.Errorf("BaseScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeScorer struct {
	scores map[string]float64
	err    error
	delay  time.Duration
}

func (f *fakeScorer) ScoreRelevance(ctx context.Context, place models.Place, answers map[string]string) (float64, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if f.err != nil {
		return 0, f.err
	}
	return f.scores[place.PlaceID], nil
}

func TestRankHeuristicOnly(t *testing.T) {
	places := []models.Place{
		{PlaceID: "low", Name: "Low", Rating: 3.0, UserRatingsTotal: 10},
		{PlaceID: "high", Name: "High", Rating: 4.8, UserRatingsTotal: 500},
	}
	got := Rank(context.Background(), places, Bias{}, nil, nil)
	if got[0].Place.PlaceID != "high" || got[1].Place.PlaceID != "low" {
		t.Errorf("Rank() order = %q, %q; want high, low", got[0].Place.PlaceID, got[1].Place.PlaceID)
	}
}

func TestRankLLMBlend(t *testing.T) {
	// Two places with identical heuristics; the LLM pass must break the tie.
	places := []models.Place{
		{PlaceID: "a", Name: "A", Rating: 4.0, UserRatingsTotal: 100},
		{PlaceID: "b", Name: "B", Rating: 4.0, UserRatingsTotal: 100},
	}
	scorer := &fakeScorer{scores: map[string]float64{"a": 1, "b": 5}}
	got := Rank(context.Background(), places, Bias{}, map[string]string{"vibe": "agitado"}, scorer)
	if got[0].Place.PlaceID != "b" {
		t.Errorf("Rank() top = %q, want b after relevance blend", got[0].Place.PlaceID)
	}
	if got[0].LLMScore != 5 {
		t.Errorf("Rank() top LLMScore = %v, want 5", got[0].LLMScore)
	}
}

func TestRankScorerFailureKeepsHeuristicOrder(t *testing.T) {
	places := []models.Place{
		{PlaceID: "high", Name: "High", Rating: 4.8, UserRatingsTotal: 500},
		{PlaceID: "low", Name: "Low", Rating: 3.0, UserRatingsTotal: 10},
	}
	scorer := &fakeScorer{err: errors.New("model unavailable")}
	got := Rank(context.Background(), places, Bias{}, nil, scorer)
	if len(got) != 2 {
		t.Fatalf("Rank() dropped results on scorer failure: got %d", len(got))
	}
	if got[0].Place.PlaceID != "high" {
		t.Errorf("Rank() top = %q, want heuristic order preserved", got[0].Place.PlaceID)
	}
}

func TestRankClampsLLMScore(t *testing.T) {
	places := []models.Place{{PlaceID: "a", Name: "A", Rating: 4.0, UserRatingsTotal: 100}}
	scorer := &fakeScorer{scores: map[string]float64{"a": 12}}
	got := Rank(context.Background(), places, Bias{}, nil, scorer)
	if got[0].LLMScore != 5 {
		t.Errorf("Rank() LLMScore = %v, want clamped to 5", got[0].LLMScore)
	}
}
