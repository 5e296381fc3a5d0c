// Package tone classifies the user's mood from message text and shapes the
// assistant's register accordingly: empathetic openers for low moods, energy
// for high ones, and a prompt guide for LLM-generated replies.
package tone

import (
	"context"
	"strings"
	"time"

	"github.com/iae-bsb/iae-bot/internal/llm"
	"github.com/iae-bsb/iae-bot/internal/models"
)

// moodTimeout bounds the LLM fallback when keywords read neutral.
const moodTimeout = 1200 * time.Millisecond

// moodKeywords maps each non-neutral mood to the normalized substrings that
// signal it. First mood with a hit wins, in declaration order below.
var moodKeywords = []struct {
	mood models.Mood
	keys []string
}{
	{models.MoodSad, []string{"triste", "deprimid", "chatead", "desanimad", "pra baixo", "magoad", "to mal", "tô mal", "estou mal"}},
	{models.MoodAngry, []string{"irritad", "com raiva", "puto", "puta da vida", "estressad", "bravo", "brava", "revoltad"}},
	{models.MoodTired, []string{"cansad", "exaust", "esgotad", "morto de cansaco", "acabad", "sem energia"}},
	{models.MoodHappy, []string{"feliz", "alegre", "animad", "empolgad", "contente", "de boa", "otimo", "maravilh"}},
}

// ClassifyMood classifies the message mood: keywords first, then the LLM
// breaks the tie when keywords read neutral. Tolerates a nil generator.
func ClassifyMood(ctx context.Context, g llm.Generator, text string) models.Mood {
	mood := DetectMood(text)
	if mood != models.MoodNeutral || g == nil {
		return mood
	}
	answer := llm.ClassifyOrDefault(ctx, g,
		"Classifique o humor da mensagem do usuário. Responda somente: feliz, triste, cansado, irritado ou neutro.",
		text, moodTimeout, "neutro")
	switch normalize(answer) {
	case "feliz":
		return models.MoodHappy
	case "triste":
		return models.MoodSad
	case "cansado":
		return models.MoodTired
	case "irritado":
		return models.MoodAngry
	}
	return models.MoodNeutral
}

// DetectMood classifies the message text by keyword alone. Returns neutral
// when nothing matches.
func DetectMood(text string) models.Mood {
	normalized := normalize(text)
	if normalized == "" {
		return models.MoodNeutral
	}
	for _, mk := range moodKeywords {
		for _, key := range mk.keys {
			if strings.Contains(normalized, key) {
				return mk.mood
			}
		}
	}
	return models.MoodNeutral
}

// Opener returns an empathetic opener matching the mood, or empty for
// neutral.
func Opener(mood models.Mood) string {
	switch mood {
	case models.MoodSad:
		return "Poxa, sinto muito que você esteja assim. 💛 "
	case models.MoodAngry:
		return "Respira fundo, vamos resolver isso juntos. "
	case models.MoodTired:
		return "Dia puxado, né? "
	case models.MoodHappy:
		return "Adoro essa energia! 🎉 "
	}
	return ""
}

// PromptGuide returns the register instruction injected into LLM reply
// prompts for the mood.
func PromptGuide(mood models.Mood) string {
	switch mood {
	case models.MoodSad:
		return "O usuário parece triste. Seja acolhedor e gentil, sem forçar animação."
	case models.MoodAngry:
		return "O usuário parece irritado. Seja direto, calmo e resolutivo, sem floreios."
	case models.MoodTired:
		return "O usuário parece cansado. Seja breve e sugira opções tranquilas."
	case models.MoodHappy:
		return "O usuário está animado. Acompanhe a energia, use um tom leve e festivo."
	}
	return "Tom casual e simpático, em português do Brasil."
}

// normalize lowercases and strips Portuguese accents for keyword matching.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	replacer := strings.NewReplacer(
		"á", "a", "à", "a", "ã", "a", "â", "a",
		"é", "e", "ê", "e",
		"í", "i",
		"ó", "o", "õ", "o", "ô", "o",
		"ú", "u", "ü", "u",
		"ç", "c",
	)
	return replacer.Replace(s)
}
