package places

import "github.com/iae-bsb/iae-bot/internal/models"

// allowedTypes maps each venue kind to the Places type tags that qualify a
// result for that kind.
var allowedTypes = map[models.Venue][]string{
	models.VenueBar:        {"bar", "pub", "night_club"},
	models.VenueRestaurant: {"restaurant", "cafe"},
}

// excludedTypes lists Places type tags that disqualify a result outright.
// The provider often tags convenience stores, gas stations and the like as
// bars or restaurants.
var excludedTypes = map[string]struct{}{
	"bakery":                  {},
	"beauty_salon":            {},
	"store":                   {},
	"supermarket":             {},
	"gas_station":             {},
	"lodging":                 {},
	"pharmacy":                {},
	"church":                  {},
	"place_of_worship":        {},
	"school":                  {},
	"university":              {},
	"hospital":                {},
	"doctor":                  {},
	"dentist":                 {},
	"veterinary_care":         {},
	"gym":                     {},
	"car_repair":              {},
	"car_wash":                {},
	"hair_care":               {},
	"laundry":                 {},
	"finance":                 {},
	"atm":                     {},
	"bank":                    {},
	"real_estate_agency":      {},
	"lawyer":                  {},
	"accounting":              {},
	"local_government_office": {},
}

// FilterByType keeps only operational, identified places whose type tags
// match the venue kind. Checks run in order: business status, identity,
// excluded tags, allowed tags.
func FilterByType(results []models.Place, venue models.Venue) []models.Place {
	allowed := allowedTypes[venue]
	filtered := make([]models.Place, 0, len(results))
	for _, p := range results {
		if p.BusinessStatus != "" && p.BusinessStatus != "OPERATIONAL" {
			continue
		}
		if p.PlaceID == "" || p.Name == "" {
			continue
		}
		if hasExcludedType(&p) {
			continue
		}
		if !hasAnyType(&p, allowed) {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

func hasExcludedType(p *models.Place) bool {
	for _, t := range p.Types {
		if _, bad := excludedTypes[t]; bad {
			return true
		}
	}
	return false
}

func hasAnyType(p *models.Place, allowed []string) bool {
	for _, t := range allowed {
		if p.HasType(t) {
			return true
		}
	}
	return false
}

// Dedup removes duplicate places by PlaceID, keeping the first occurrence.
func Dedup(results []models.Place) []models.Place {
	seen := make(map[string]struct{}, len(results))
	out := make([]models.Place, 0, len(results))
	for _, p := range results {
		if _, dup := seen[p.PlaceID]; dup {
			continue
		}
		seen[p.PlaceID] = struct{}{}
		out = append(out, p)
	}
	return out
}
