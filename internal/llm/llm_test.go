package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iae-bsb/iae-bot/internal/models"
)

type fakeGenerator struct {
	reply string
	err   error
	delay time.Duration
}

func (f *fakeGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func TestClassifyOrDefault(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		gen      Generator
		fallback string
		want     string
	}{
		{name: "nil generator", gen: nil, fallback: "neutro", want: "neutro"},
		{name: "successful classification", gen: &fakeGenerator{reply: " bar \n"}, fallback: "none", want: "bar"},
		{name: "generator error", gen: &fakeGenerator{err: errors.New("boom")}, fallback: "neutro", want: "neutro"},
		{name: "empty reply", gen: &fakeGenerator{reply: "  "}, fallback: "neutro", want: "neutro"},
		{name: "slow reply discarded", gen: &fakeGenerator{reply: "bar", delay: 200 * time.Millisecond}, fallback: "neutro", want: "neutro"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyOrDefault(ctx, tt.gen, "sys", "user", 50*time.Millisecond, tt.fallback)
			if got != tt.want {
				t.Errorf("ClassifyOrDefault() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRelevanceScorer(t *testing.T) {
	place := models.Place{PlaceID: "p1", Name: "Bar A", Types: []string{"bar"}, Rating: 4.2, UserRatingsTotal: 80}
	answers := map[string]string{"vibe": "agitado"}

	tests := []struct {
		name    string
		reply   string
		want    float64
		wantErr bool
	}{
		{name: "plain number", reply: "4", want: 4},
		{name: "decimal with comma", reply: "3,5", want: 3.5},
		{name: "number inside text", reply: "Nota: 2.5 de 5", want: 2.5},
		{name: "clamped above five", reply: "9", want: 5},
		{name: "no number", reply: "muito relevante", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := &RelevanceScorer{Generator: &fakeGenerator{reply: tt.reply}}
			got, err := scorer.ScoreRelevance(context.Background(), place, answers)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ScoreRelevance() error = nil, want parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ScoreRelevance() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ScoreRelevance() = %v, want %v", got, tt.want)
			}
		})
	}
}
