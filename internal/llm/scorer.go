package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/iae-bsb/iae-bot/internal/models"
)

// RelevanceScorer adapts a Generator into the 0-to-5 relevance signal the
// ranking blend consumes.
type RelevanceScorer struct {
	Generator Generator
}

const relevanceSystemPrompt = "Você avalia o quanto um estabelecimento combina com as preferências de um usuário. Responda SOMENTE com um número de 0 a 5, podendo usar decimais."

var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// ScoreRelevance issues one relevance request for the place. The caller sets
// the per-item deadline through ctx.
func (r *RelevanceScorer) ScoreRelevance(ctx context.Context, place models.Place, answers map[string]string) (float64, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Estabelecimento: %s\n", place.Name)
	if len(place.Types) > 0 {
		fmt.Fprintf(&sb, "Categorias: %s\n", strings.Join(place.Types, ", "))
	}
	if place.Rating > 0 {
		fmt.Fprintf(&sb, "Nota: %.1f (%d avaliações)\n", place.Rating, place.UserRatingsTotal)
	}
	sb.WriteString("Preferências do usuário:\n")
	for k, v := range answers {
		fmt.Fprintf(&sb, "- %s: %s\n", k, v)
	}
	sb.WriteString("Nota de relevância (0 a 5):")

	text, err := r.Generator.Generate(ctx, relevanceSystemPrompt, sb.String())
	if err != nil {
		return 0, err
	}
	return parseRelevance(text)
}

func parseRelevance(text string) (float64, error) {
	match := numberPattern.FindString(text)
	if match == "" {
		return 0, fmt.Errorf("llm: no numeric relevance in %q", text)
	}
	score, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("llm: bad relevance %q: %w", match, err)
	}
	if score < 0 {
		score = 0
	} else if score > 5 {
		score = 5
	}
	return score, nil
}
