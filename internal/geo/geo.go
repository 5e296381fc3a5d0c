// Package geo provides great-circle distance math and the distance filter
// applied to place candidates before ranking.
package geo

import (
	"log/slog"
	"math"

	"github.com/iae-bsb/iae-bot/internal/models"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// DefaultMaxDistanceKm is the radius applied when the caller does not
// override it.
const DefaultMaxDistanceKm = 15.0

// Distance returns the haversine distance in kilometers between two points.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// FilterByDistance drops places farther than maxKm from the user. Places
// without coordinates are kept; the provider already scoped the search area,
// so a missing geometry is not evidence of distance. A maxKm of zero or less
// selects DefaultMaxDistanceKm.
func FilterByDistance(places []models.Place, userLat, userLng, maxKm float64) []models.Place {
	if maxKm <= 0 {
		maxKm = DefaultMaxDistanceKm
	}
	filtered := make([]models.Place, 0, len(places))
	for _, p := range places {
		if !p.HasCoords() {
			filtered = append(filtered, p)
			continue
		}
		d := Distance(userLat, userLng, p.Geometry.Location.Lat, p.Geometry.Location.Lng)
		if d <= maxKm {
			filtered = append(filtered, p)
		} else {
			slog.Debug("geo.FilterByDistance dropped place", "name", p.Name, "distanceKm", d, "maxKm", maxKm)
		}
	}
	return filtered
}
