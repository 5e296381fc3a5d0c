package ranking

import (
	"testing"

	"github.com/iae-bsb/iae-bot/internal/models"
)

func namedPlaces(ids ...string) []models.Place {
	out := make([]models.Place, len(ids))
	for i, id := range ids {
		out[i] = models.Place{PlaceID: id, Name: id}
	}
	return out
}

func activeSponsor(id string, prio int) models.Sponsor {
	return models.Sponsor{PlaceID: id, Active: true, Prioridade: prio}
}

func assertOrder(t *testing.T, got []models.Place, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d places, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].PlaceID != id {
			t.Errorf("position %d = %q, want %q", i, got[i].PlaceID, id)
		}
	}
}

func TestPromoteSponsored(t *testing.T) {
	tests := []struct {
		name     string
		places   []models.Place
		sponsors map[string]models.Sponsor
		want     []string
	}{
		{
			name:     "no sponsors keeps order",
			places:   namedPlaces("a", "b", "c"),
			sponsors: nil,
			want:     []string{"a", "b", "c"},
		},
		{
			name:   "sponsor moves to front",
			places: namedPlaces("a", "b", "c"),
			sponsors: map[string]models.Sponsor{
				"c": activeSponsor("c", 1),
			},
			want: []string{"c", "a", "b"},
		},
		{
			name:   "priority orders the pinned block",
			places: namedPlaces("a", "b", "c", "d"),
			sponsors: map[string]models.Sponsor{
				"b": activeSponsor("b", 2),
				"d": activeSponsor("d", 1),
			},
			want: []string{"d", "b", "a", "c"},
		},
		{
			name:   "equal priority first come wins",
			places: namedPlaces("a", "b", "c"),
			sponsors: map[string]models.Sponsor{
				"a": activeSponsor("a", 1),
				"b": activeSponsor("b", 1),
			},
			want: []string{"a", "b", "c"},
		},
		{
			name:   "invalid priority sorts last among sponsors",
			places: namedPlaces("a", "b", "c"),
			sponsors: map[string]models.Sponsor{
				"a": activeSponsor("a", 7),
				"c": activeSponsor("c", 1),
			},
			want: []string{"c", "a", "b"},
		},
		{
			name:   "inactive sponsor ignored",
			places: namedPlaces("a", "b"),
			sponsors: map[string]models.Sponsor{
				"b": {PlaceID: "b", Active: false, Prioridade: 1},
			},
			want: []string{"a", "b"},
		},
		{
			name:   "fourth sponsor stays in place",
			places: namedPlaces("a", "b", "c", "d", "e"),
			sponsors: map[string]models.Sponsor{
				"a": activeSponsor("a", 1),
				"b": activeSponsor("b", 2),
				"c": activeSponsor("c", 3),
				"e": activeSponsor("e", 0),
			},
			want: []string{"a", "b", "c", "d", "e"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PromoteSponsored(tt.places, tt.sponsors)
			assertOrder(t, got, tt.want)
			if len(got) != len(tt.places) {
				t.Errorf("output length %d, want %d", len(got), len(tt.places))
			}
		})
	}
}
