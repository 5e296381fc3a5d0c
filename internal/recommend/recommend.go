// Package recommend infers venue features from review text and classifies
// user reactions to a recommendation.
package recommend

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/iae-bsb/iae-bot/internal/models"
	"github.com/iae-bsb/iae-bot/internal/sponsor"
)

// featureTTL is how long inferred features stay cached per place.
const featureTTL = 24 * time.Hour

// mentionsForFull is the review-mention count treated as full confidence.
const mentionsForFull = 3

// highlightThreshold filters which features are worth surfacing to the user.
const highlightThreshold = 0.6

// Feature is one inferred venue trait with a confidence in [0, 1].
type Feature struct {
	Key        string
	Label      string
	Confidence float64
}

var featureCatalog = []struct {
	key    string
	label  string
	tokens []string
}{
	{"musica_ao_vivo", "música ao vivo", []string{"musica ao vivo", "ao vivo", "banda", "show"}},
	{"romantico", "clima romântico", []string{"romantico", "romantica", "a dois"}},
	{"familia", "bom pra família", []string{"familia", "criancas", "kids"}},
	{"animado", "ambiente animado", []string{"animado", "movimentado", "agitado"}},
	{"tranquilo", "bom pra conversar", []string{"tranquilo", "sossegado", "silencioso"}},
	{"bom_pra_trabalhar", "bom pra trabalhar", []string{"trabalhar", "wifi", "notebook"}},
}

// Inferrer caches per-place feature inference over review text.
type Inferrer struct {
	cache *gocache.Cache
}

func NewInferrer() *Inferrer {
	return &Inferrer{cache: gocache.New(featureTTL, 2*featureTTL)}
}

// Features scans the reviews for catalog keywords. Confidence is the share
// of reviews mentioning the feature against mentionsForFull, capped at 1.
func (i *Inferrer) Features(placeID string, reviews []models.Review) []Feature {
	if placeID != "" {
		if hit, ok := i.cache.Get(placeID); ok {
			return hit.([]Feature)
		}
	}
	var out []Feature
	for _, f := range featureCatalog {
		mentions := 0
		for _, r := range reviews {
			n := sponsor.Normalize(r.Text)
			for _, tok := range f.tokens {
				if strings.Contains(n, tok) {
					mentions++
					break
				}
			}
		}
		if mentions == 0 {
			continue
		}
		conf := float64(mentions) / mentionsForFull
		if conf > 1 {
			conf = 1
		}
		out = append(out, Feature{Key: f.key, Label: f.label, Confidence: conf})
	}
	if placeID != "" {
		i.cache.SetDefault(placeID, out)
	}
	return out
}

// Highlights renders confident features as one short listing line, empty
// when nothing stands out.
func Highlights(features []Feature) string {
	var labels []string
	for _, f := range features {
		if f.Confidence >= highlightThreshold {
			labels = append(labels, f.Label)
		}
	}
	if len(labels) == 0 {
		return ""
	}
	return strings.Join(labels, ", ")
}

var positiveTokens = []string{
	"gostei", "curti", "adorei", "amei", "muito bom", "top demais", "recomendo", "foi otimo",
}

var negativeTokens = []string{
	"nao gostei", "nao curti", "odiei", "ruim", "fraco", "decepcionou", "nao recomendo",
}

// DetectFeedback classifies a reaction about a recommended venue. Negations
// are checked first so "não gostei" never reads as praise.
func DetectFeedback(text string) (liked bool, ok bool) {
	n := sponsor.Normalize(text)
	for _, tok := range negativeTokens {
		if strings.Contains(n, tok) {
			return false, true
		}
	}
	for _, tok := range positiveTokens {
		if strings.Contains(n, tok) {
			return true, true
		}
	}
	return false, false
}
