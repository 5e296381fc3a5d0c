package flow

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/iae-bsb/iae-bot/internal/llm"
	"github.com/iae-bsb/iae-bot/internal/models"
	"github.com/iae-bsb/iae-bot/internal/sponsor"
)

// intentTimeout bounds the LLM fallback for intent classification.
const intentTimeout = 1200 * time.Millisecond

var barTokens = []string{
	"bar", "barzinho", "boteco", "butiquim", "cerveja", "breja", "chopp",
	"drink", "balada", "happy hour", "pub",
}

var restaurantTokens = []string{
	"restaurante", "comer", "comida", "jantar", "almoco", "almocar",
	"rodizio", "pizza", "japa", "sushi", "hamburguer", "lanche",
}

var greetingTokens = []string{
	"oi", "ola", "opa", "eai", "e ai", "iae", "salve", "bom dia",
	"boa tarde", "boa noite", "oie", "hey",
}

var smallTalkTokens = []string{
	"tudo bem", "tudo bom", "como vai", "como voce ta", "beleza",
	"suave", "de boa", "como ce ta",
}

var footballTokens = []string{
	"futebol", "jogo", "passa o jogo", "assistir o jogo", "transmissao",
	"jogo do", "partida",
}

var resetTokens = []string{
	"recomecar", "comecar de novo", "comeca de novo", "do zero", "reiniciar",
	"resetar", "esquece isso", "esquece tudo", "deixa pra la", "cancela",
	"volta pro inicio", "vamos recomecar",
}

// resetHints gate the LLM fallback: only messages carrying one of these
// fragments are worth a model call.
var resetHints = []string{"comec", "de novo", "zero", "esquec", "cancel", "reinicia", "reset", "volta"}

var numericPattern = regexp.MustCompile(`^\s*[1-9]\d?\s*$`)

// ordinalWords maps spelled-out selections to their number.
var ordinalWords = map[string]int{
	"um": 1, "primeiro": 1, "primeira": 1,
	"dois": 2, "segundo": 2, "segunda": 2,
	"tres": 3, "terceiro": 3, "terceira": 3,
}

// detectVenueTokens finds a bar/restaurant intent by token match alone.
func detectVenueTokens(text string) (models.Venue, bool) {
	n := sponsor.Normalize(text)
	for _, t := range restaurantTokens {
		if strings.Contains(n, t) {
			return models.VenueRestaurant, true
		}
	}
	for _, t := range barTokens {
		if containsWord(n, t) {
			return models.VenueBar, true
		}
	}
	return "", false
}

// detectVenue finds a bar/restaurant intent: tokens first, then the LLM with
// a tight budget. Returns false when neither is confident.
func detectVenue(ctx context.Context, g llm.Generator, text string) (models.Venue, bool) {
	if v, ok := detectVenueTokens(text); ok {
		return v, true
	}
	answer := llm.ClassifyOrDefault(ctx, g,
		"Classifique a intenção do usuário. Responda somente: bar, restaurante ou nenhum.",
		text, intentTimeout, "nenhum")
	switch sponsor.Normalize(answer) {
	case "bar":
		return models.VenueBar, true
	case "restaurante":
		return models.VenueRestaurant, true
	}
	return "", false
}

// isResetIntent finds a restart request: tokens first, then the LLM with the
// same tight budget used for venue classification.
func isResetIntent(ctx context.Context, g llm.Generator, text string) bool {
	n := sponsor.Normalize(text)
	for _, t := range resetTokens {
		if strings.Contains(n, t) {
			return true
		}
	}
	if len(n) > 80 {
		return false
	}
	hinted := false
	for _, h := range resetHints {
		if strings.Contains(n, h) {
			hinted = true
			break
		}
	}
	if !hinted {
		return false
	}
	answer := llm.ClassifyOrDefault(ctx, g,
		"O usuário quer recomeçar a conversa ou a busca do zero? Responda somente: sim ou nao.",
		text, intentTimeout, "nao")
	return sponsor.Normalize(answer) == "sim"
}

// containsWord matches a token on word boundaries so "bar" does not fire on
// "barato".
func containsWord(haystack, word string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isLetter(haystack[start-1])
		afterOK := end == len(haystack) || !isLetter(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isGreeting(text string) bool {
	n := sponsor.Normalize(text)
	if len(n) > 40 {
		return false
	}
	for _, t := range greetingTokens {
		if n == t || strings.HasPrefix(n, t+" ") || strings.HasPrefix(n, t+"!") || strings.HasPrefix(n, t+",") {
			return true
		}
	}
	return false
}

func isSmallTalk(text string) bool {
	n := sponsor.Normalize(text)
	for _, t := range smallTalkTokens {
		if strings.Contains(n, t) {
			return true
		}
	}
	return false
}

func isFootballIntent(text string) bool {
	n := sponsor.Normalize(text)
	for _, t := range footballTokens {
		if strings.Contains(n, t) {
			return true
		}
	}
	return false
}

// parseSelection extracts a numeric or ordinal-word selection. Returns 0
// when the text is not a selection.
func parseSelection(text string) int {
	n := sponsor.Normalize(text)
	if numericPattern.MatchString(n) {
		sel := 0
		for _, r := range strings.TrimSpace(n) {
			sel = sel*10 + int(r-'0')
		}
		return sel
	}
	if sel, ok := ordinalWords[strings.TrimSpace(n)]; ok {
		return sel
	}
	return 0
}

func isNumericLike(text string) bool {
	return parseSelection(text) > 0
}

// embeddedSelection finds a selection mentioned inside a longer message,
// like "horario do 2". Zero when no number or ordinal word appears.
func embeddedSelection(text string) int {
	for _, w := range strings.Fields(sponsor.Normalize(text)) {
		w = strings.Trim(w, ".,!?")
		if numericPattern.MatchString(w) {
			return parseSelection(w)
		}
		if sel, ok := ordinalWords[w]; ok {
			return sel
		}
	}
	return 0
}

// topic identifies what detail a follow-up question asks about.
type topic string

const (
	topicNone    topic = ""
	topicPrice   topic = "preco"
	topicHours   topic = "horario"
	topicPhone   topic = "telefone"
	topicWebsite topic = "site"
	topicAddress topic = "endereco"
)

var topicTokens = []struct {
	topic  topic
	tokens []string
}{
	{topicHours, []string{"horario", "hora", "abre", "fecha", "funciona", "aberto agora"}},
	{topicPrice, []string{"preco", "caro", "barato", "valor", "quanto custa", "faixa de preco"}},
	{topicPhone, []string{"telefone", "fone", "contato", "ligar", "whatsapp do"}},
	{topicWebsite, []string{"site", "cardapio", "menu", "instagram"}},
	{topicAddress, []string{"endereco", "onde fica", "onde e", "como chego", "como chegar", "local"}},
}

func detectTopic(text string) topic {
	n := sponsor.Normalize(text)
	for _, tt := range topicTokens {
		for _, tok := range tt.tokens {
			if strings.Contains(n, tok) {
				return tt.topic
			}
		}
	}
	return topicNone
}

// isCarnivalQuestion matches carnival questions scoped to Brasília.
func isCarnivalQuestion(text string) bool {
	n := sponsor.Normalize(text)
	if !strings.Contains(n, "carnaval") {
		return false
	}
	return strings.Contains(n, "brasilia") || strings.Contains(n, "bsb") || containsWord(n, "df")
}

// isLaunchQuestion matches "where does I.aê operate" questions.
func isLaunchQuestion(text string) bool {
	n := sponsor.Normalize(text)
	return strings.Contains(n, "iae") && strings.Contains(n, "onde") &&
		(strings.Contains(n, "lancamento") || strings.Contains(n, "funciona") || strings.Contains(n, "atende"))
}

// preferenceKeys maps free-text signals to the learned preference keys kept
// in the relational store.
var preferenceKeys = []struct {
	key    string
	tokens []string
}{
	{"prefers_chopp", []string{"chopp", "chope"}},
	{"prefers_cerveja", []string{"cerveja", "breja"}},
	{"prefers_happy_hour", []string{"happy hour"}},
	{"prefers_musica_ao_vivo", []string{"musica ao vivo", "ao vivo", "show"}},
	{"prefers_musica", []string{"musica", "som"}},
	{"prefers_rodizio", []string{"rodizio"}},
}

// learnPreferences extracts durable preference signals from an answer.
func learnPreferences(text string) map[string]string {
	n := sponsor.Normalize(text)
	learned := make(map[string]string)
	for _, pk := range preferenceKeys {
		for _, tok := range pk.tokens {
			if strings.Contains(n, tok) {
				learned[pk.key] = "true"
				break
			}
		}
	}
	return learned
}

// searchKeyword derives the provider keyword from interview answers plus
// learned preferences.
func searchKeyword(answers map[string]string, prefs map[string]string) string {
	var parts []string
	if v := answers["extras"]; v != "" && !isNegation(v) {
		parts = append(parts, v)
	}
	if v := answers["cozinha"]; v != "" {
		parts = append(parts, v)
	}
	if len(parts) == 0 {
		if prefs["prefers_musica_ao_vivo"] == "true" {
			parts = append(parts, "musica ao vivo")
		} else if prefs["prefers_chopp"] == "true" {
			parts = append(parts, "chopp")
		} else if v := prefs["last_freeform_keyword"]; v != "" {
			parts = append(parts, v)
		}
	}
	keyword := strings.Join(parts, " ")
	if len(keyword) > 60 {
		keyword = keyword[:60]
	}
	return strings.TrimSpace(keyword)
}

var namePrefixes = []string{
	"meu nome e ", "me chamo ", "pode me chamar de ", "sou o ", "sou a ", "aqui e o ", "aqui e a ",
}

// extractName pulls a display name out of a reply to the name question.
// Strips common lead-ins and rejects text that looks like a full sentence.
func extractName(text string) string {
	raw := strings.TrimSpace(text)
	n := sponsor.Normalize(raw)
	for _, p := range namePrefixes {
		if strings.HasPrefix(n, p) {
			skip := len(strings.Fields(p))
			words := strings.Fields(raw)
			if len(words) > skip {
				raw = strings.Join(words[skip:], " ")
			}
			break
		}
	}
	raw = strings.Trim(raw, ".,!?")
	if raw == "" || len(raw) > 40 || strings.Count(raw, " ") > 3 {
		return ""
	}
	return raw
}

func isNegation(text string) bool {
	n := sponsor.Normalize(text)
	return n == "nao" || n == "nada" || n == "tanto faz" || n == "qualquer" ||
		strings.HasPrefix(n, "nao ")
}
