// Package ranking orders place candidates by a heuristic score, optionally
// blended with an LLM relevance pass, and pins sponsored entries into their
// paid slots.
package ranking

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iae-bsb/iae-bot/internal/models"
)

// PriceTier is the user's declared price bracket.
type PriceTier string

const (
	PriceTierNone     PriceTier = ""
	PriceTierEconomic PriceTier = "economico"
	PriceTierModerate PriceTier = "moderado"
	PriceTierLuxury   PriceTier = "luxo"
)

// ParsePriceTier normalizes a free-text price answer into a tier.
func ParsePriceTier(text string) PriceTier {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "econ") || strings.Contains(t, "barat"):
		return PriceTierEconomic
	case strings.Contains(t, "moder") || strings.Contains(t, "médio") || strings.Contains(t, "medio"):
		return PriceTierModerate
	case strings.Contains(t, "lux") || strings.Contains(t, "car") || strings.Contains(t, "sofistic"):
		return PriceTierLuxury
	}
	return PriceTierNone
}

// Bias carries the per-user signals consumed by the scorer.
type Bias struct {
	PriceTier   PriceTier
	IsSponsored func(placeID string) bool
}

// Scorer produces an LLM relevance score (0 to 5) for one place given the
// user's interview answers.
type Scorer interface {
	ScoreRelevance(ctx context.Context, place models.Place, answers map[string]string) (float64, error)
}

const (
	// prefilterLimit bounds how many candidates reach the LLM pass.
	prefilterLimit = 12
	// llmWeight is the additive weight of the LLM relevance score.
	llmWeight = 0.5
	// llmItemTimeout caps a single relevance request.
	llmItemTimeout = 2500 * time.Millisecond
	// llmBatchSize is the number of concurrent relevance requests.
	llmBatchSize = 4
)

// ScoredPlace pairs a place with its ranking scores.
type ScoredPlace struct {
	Place    models.Place
	Base     float64
	LLMScore float64
}

// Score returns the combined ranking score.
func (s ScoredPlace) Score() float64 {
	return s.Base + llmWeight*s.LLMScore
}

// BaseScore computes the heuristic score: quality from rating and review
// volume, a bonus for matching the declared price bracket, and a flat
// sponsor bonus.
func BaseScore(p *models.Place, bias Bias) float64 {
	reviews := float64(p.UserRatingsTotal)
	if reviews < 1 {
		reviews = 1
	}
	score := p.Rating*2 + math.Log10(reviews)
	if priceMatches(p.PriceLevel, bias.PriceTier) {
		score += 2
	}
	if bias.IsSponsored != nil && bias.IsSponsored(p.PlaceID) {
		score += 3
	}
	return score
}

func priceMatches(level *int, tier PriceTier) bool {
	if level == nil {
		return false
	}
	switch tier {
	case PriceTierEconomic:
		return *level <= 1
	case PriceTierModerate:
		return *level == 2 || *level == 3
	case PriceTierLuxury:
		return *level == 4
	}
	return false
}

// Rank orders candidates by descending combined score. When a scorer is
// configured, the top candidates after the heuristic pre-filter each get one
// relevance request with a per-item timeout; a failed or slow request leaves
// the item on its heuristic score. With no scorer, all candidates are ordered
// heuristically. Ties keep their pre-existing relative order.
func Rank(ctx context.Context, places []models.Place, bias Bias, answers map[string]string, scorer Scorer) []ScoredPlace {
	scored := make([]ScoredPlace, 0, len(places))
	for _, p := range places {
		scored = append(scored, ScoredPlace{Place: p, Base: BaseScore(&p, bias)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Base > scored[j].Base })

	if scorer == nil {
		return scored
	}

	limit := prefilterLimit
	if len(scored) < limit {
		limit = len(scored)
	}
	top := scored[:limit]

	for start := 0; start < len(top); start += llmBatchSize {
		end := start + llmBatchSize
		if end > len(top) {
			end = len(top)
		}
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(sp *ScoredPlace) {
				defer wg.Done()
				itemCtx, cancel := context.WithTimeout(ctx, llmItemTimeout)
				defer cancel()
				score, err := scorer.ScoreRelevance(itemCtx, sp.Place, answers)
				if err != nil {
					slog.Debug("ranking.Rank relevance scoring skipped", "place", sp.Place.Name, "error", err)
					return
				}
				if score < 0 {
					score = 0
				} else if score > 5 {
					score = 5
				}
				sp.LLMScore = score
			}(&top[i])
		}
		wg.Wait()
	}

	sort.SliceStable(top, func(i, j int) bool { return top[i].Score() > top[j].Score() })
	return scored
}

// Places extracts the bare place list from a scored ranking.
func Places(scored []ScoredPlace) []models.Place {
	out := make([]models.Place, len(scored))
	for i, sp := range scored {
		out[i] = sp.Place
	}
	return out
}
