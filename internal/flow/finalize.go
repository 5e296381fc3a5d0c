package flow

import (
	"fmt"

	"github.com/iae-bsb/iae-bot/internal/geo"
	"github.com/iae-bsb/iae-bot/internal/metrics"
	"github.com/iae-bsb/iae-bot/internal/models"
	"github.com/iae-bsb/iae-bot/internal/places"
	"github.com/iae-bsb/iae-bot/internal/ranking"
	"github.com/iae-bsb/iae-bot/internal/sponsor"
)

// finalizeSearch runs the full recommendation pipeline for the session's
// resolved flow: provider search, filtering, ranking, sponsor promotion, and
// first-page presentation. Flow flags are cleared no matter how it exits;
// the presented page survives for follow-up selections.
func (e *Engine) finalizeSearch(c *evctx) error {
	sess := c.sess
	if sess.IsFinalizing {
		e.logger.Debug("Finalize already in flight", "user", c.userID())
		return nil
	}
	sess.IsFinalizing = true
	defer sess.FinishFlow()

	flow := sess.Flow
	if !flow.HasCoords {
		e.reply(c, msgLocationRecovery)
		return nil
	}
	venue := flow.Venue
	if !models.IsValidVenue(venue) {
		venue = models.VenueBar
	}

	prefs := e.preferences(c.userID())
	opts := models.SearchOptions{
		Keyword: searchKeyword(flow.Answers, prefs),
		OpenNow: wantsOpenNow(flow.Answers),
	}
	e.logger.Debug("Running search", "user", c.userID(), "venue", venue,
		"lat", flow.Lat, "lng", flow.Lng, "keyword", opts.Keyword)

	results, err := e.deps.Places.NearbySearch(c.ctx, flow.Lat, flow.Lng, venue, opts)
	if err != nil {
		e.reply(c, msgNoResults)
		return fmt.Errorf("nearby search: %w", err)
	}

	filtered := places.FilterByType(results, venue)
	filtered = places.Dedup(filtered)
	filtered = geo.FilterByDistance(filtered, flow.Lat, flow.Lng, geo.DefaultMaxDistanceKm)
	if len(filtered) == 0 {
		e.reply(c, msgNoResults)
		return nil
	}

	bias := ranking.Bias{
		PriceTier:   ranking.ParsePriceTier(flow.Answers["preco"]),
		IsSponsored: e.deps.Sponsors.IsSponsored,
	}
	scored := ranking.Rank(c.ctx, filtered, bias, flow.Answers, e.deps.Scorer)
	ordered := ranking.PromoteSponsored(ranking.Places(scored), e.deps.Sponsors.ActiveByID())

	if e.deps.Personas != nil && len(flow.Answers) > 0 {
		if err := e.deps.Personas.SaveAnswers(c.userID(), venue, flow.Answers); err != nil {
			e.logger.Warn("Persona answer save failed", "user", c.userID(), "error", err)
		}
	}
	sess.LastSearch = &models.SearchSnapshot{
		Venue:   venue,
		Lat:     flow.Lat,
		Lng:     flow.Lng,
		Answers: flow.Answers,
	}
	sess.SelectedPlace = nil

	e.presentPage(c, ordered, 0)

	if e.deps.Telemetry != nil {
		e.deps.Telemetry.RecordSearch(metrics.SearchRecord{
			UserID:    c.userID(),
			Venue:     venue,
			Lat:       flow.Lat,
			Lng:       flow.Lng,
			Results:   len(ordered),
			Timestamp: c.now,
		})
	}
	return nil
}

// wantsOpenNow reports whether any answer asks for a place open right now.
func wantsOpenNow(answers map[string]string) bool {
	for _, v := range answers {
		if containsWord(sponsor.Normalize(v), "agora") {
			return true
		}
	}
	return false
}
