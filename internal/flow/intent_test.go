package flow

import (
	"testing"

	"github.com/iae-bsb/iae-bot/internal/models"
)

func TestDetectVenueTokens(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		venue models.Venue
		found bool
	}{
		{"plain bar", "quero um bar", models.VenueBar, true},
		{"boteco slang", "algum boteco bom?", models.VenueBar, true},
		{"bar with accents", "tô afim de um barzinho", models.VenueBar, true},
		{"restaurant", "um restaurante pra jantar", models.VenueRestaurant, true},
		{"food wins over drink", "comer e beber cerveja", models.VenueRestaurant, true},
		{"bar does not fire on barato", "algo barato por favor", "", false},
		{"no venue", "qual a previsão do tempo?", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			venue, found := detectVenueTokens(tt.text)
			if found != tt.found || venue != tt.venue {
				t.Errorf("detectVenueTokens(%q) = (%q, %v), want (%q, %v)", tt.text, venue, found, tt.venue, tt.found)
			}
		})
	}
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		haystack string
		word     string
		want     bool
	}{
		{"quero um bar", "bar", true},
		{"bar", "bar", true},
		{"algo barato", "bar", false},
		{"embarque imediato", "bar", false},
		{"bar!", "bar", true},
		{"um pub perto", "pub", true},
	}
	for _, tt := range tests {
		if got := containsWord(tt.haystack, tt.word); got != tt.want {
			t.Errorf("containsWord(%q, %q) = %v, want %v", tt.haystack, tt.word, got, tt.want)
		}
	}
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"1", 1},
		{" 2 ", 2},
		{"3", 3},
		{"12", 12},
		{"primeiro", 1},
		{"o segundo", 0},
		{"dois", 2},
		{"0", 0},
		{"99 problemas", 0},
		{"quero o bar", 0},
	}
	for _, tt := range tests {
		if got := parseSelection(tt.text); got != tt.want {
			t.Errorf("parseSelection(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestDetectTopic(t *testing.T) {
	tests := []struct {
		text string
		want topic
	}{
		{"qual o horário?", topicHours},
		{"que horas abre", topicHours},
		{"é caro?", topicPrice},
		{"tem telefone?", topicPhone},
		{"manda o cardápio", topicWebsite},
		{"onde fica?", topicAddress},
		{"valeu!", topicNone},
	}
	for _, tt := range tests {
		if got := detectTopic(tt.text); got != tt.want {
			t.Errorf("detectTopic(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestExtractName(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Rafael", "Rafael"},
		{"meu nome é Rafael", "Rafael"},
		{"Me chamo Ana Clara", "Ana Clara"},
		{"sou o João!", "João"},
		{"pode me chamar de Dudu", "Dudu"},
		{"olha, na real eu prefiro não falar meu nome agora se puder ser", ""},
	}
	for _, tt := range tests {
		if got := extractName(tt.text); got != tt.want {
			t.Errorf("extractName(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestSearchKeyword(t *testing.T) {
	tests := []struct {
		name    string
		answers map[string]string
		prefs   map[string]string
		want    string
	}{
		{
			name:    "extras plus cuisine",
			answers: map[string]string{"extras": "música ao vivo", "cozinha": "japonesa"},
			want:    "música ao vivo japonesa",
		},
		{
			name:    "negated extras skipped",
			answers: map[string]string{"extras": "não"},
			prefs:   map[string]string{"prefers_chopp": "true"},
			want:    "chopp",
		},
		{
			name:    "freeform fallback",
			answers: map[string]string{},
			prefs:   map[string]string{"last_freeform_keyword": "petiscos"},
			want:    "petiscos",
		},
		{
			name:    "empty",
			answers: map[string]string{},
			want:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := searchKeyword(tt.answers, tt.prefs); got != tt.want {
				t.Errorf("searchKeyword() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLearnPreferences(t *testing.T) {
	learned := learnPreferences("curto chopp gelado e música ao vivo")
	if learned["prefers_chopp"] != "true" {
		t.Error("expected prefers_chopp to be learned")
	}
	if learned["prefers_musica_ao_vivo"] != "true" {
		t.Error("expected prefers_musica_ao_vivo to be learned")
	}
	if _, ok := learned["prefers_rodizio"]; ok {
		t.Error("did not expect prefers_rodizio")
	}
}

func TestGreetingAndCannedDetection(t *testing.T) {
	if !isGreeting("Oi!") || !isGreeting("e aí, beleza?") || !isGreeting("bom dia") {
		t.Error("expected greetings to match")
	}
	if isGreeting("oi, me indica um restaurante japonês aí perto do trabalho por favor") {
		t.Error("long sentences are not greetings")
	}
	if !isCarnivalQuestion("vai ter carnaval em Brasília?") {
		t.Error("expected carnival question scoped to the city to match")
	}
	if isCarnivalQuestion("carnaval do Rio vai ser bom?") {
		t.Error("carnival elsewhere should not match")
	}
	if !isLaunchQuestion("onde o iaê funciona?") {
		t.Error("expected launch question to match")
	}
}
