package places

import (
	"testing"

	"github.com/iae-bsb/iae-bot/internal/models"
)

func barPlace(id, name string, types ...string) models.Place {
	return models.Place{PlaceID: id, Name: name, Types: types, BusinessStatus: "OPERATIONAL"}
}

func TestFilterByType(t *testing.T) {
	tests := []struct {
		name    string
		input   []models.Place
		venue   models.Venue
		wantIDs []string
	}{
		{
			name: "keeps matching bar types",
			input: []models.Place{
				barPlace("p1", "Bar do Zé", "bar", "point_of_interest"),
				barPlace("p2", "Clube X", "night_club"),
				barPlace("p3", "Padoca", "bakery", "bar"),
			},
			venue:   models.VenueBar,
			wantIDs: []string{"p1", "p2"},
		},
		{
			name: "drops non operational",
			input: []models.Place{
				{PlaceID: "p1", Name: "Fechado", Types: []string{"bar"}, BusinessStatus: "CLOSED_PERMANENTLY"},
				{PlaceID: "p2", Name: "Sem status", Types: []string{"bar"}},
			},
			venue:   models.VenueBar,
			wantIDs: []string{"p2"},
		},
		{
			name: "drops missing identity",
			input: []models.Place{
				barPlace("", "Anônimo", "bar"),
				barPlace("p2", "", "bar"),
				barPlace("p3", "Ok", "bar"),
			},
			venue:   models.VenueBar,
			wantIDs: []string{"p3"},
		},
		{
			name: "restaurant kind accepts cafe",
			input: []models.Place{
				barPlace("p1", "Café Central", "cafe"),
				barPlace("p2", "Bar Torto", "bar"),
			},
			venue:   models.VenueRestaurant,
			wantIDs: []string{"p1"},
		},
		{
			name: "excluded tag wins over allowed tag",
			input: []models.Place{
				barPlace("p1", "Posto Bar", "gas_station", "bar"),
			},
			venue:   models.VenueBar,
			wantIDs: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterByType(tt.input, tt.venue)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("FilterByType() kept %d places, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].PlaceID != id {
					t.Errorf("FilterByType()[%d].PlaceID = %q, want %q", i, got[i].PlaceID, id)
				}
			}
		})
	}
}

func TestDedup(t *testing.T) {
	first := barPlace("p1", "Primeiro", "bar")
	dup := barPlace("p1", "Duplicado", "bar")
	other := barPlace("p2", "Outro", "bar")

	got := Dedup([]models.Place{first, dup, other})
	if len(got) != 2 {
		t.Fatalf("Dedup() kept %d places, want 2", len(got))
	}
	if got[0].Name != "Primeiro" {
		t.Errorf("Dedup() kept %q for p1, want first occurrence", got[0].Name)
	}
}
