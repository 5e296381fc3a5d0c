package ranking

import (
	"sort"

	"github.com/iae-bsb/iae-bot/internal/models"
)

// pinnedSlots is the number of rank positions reserved for sponsors.
const pinnedSlots = 3

// invalidPriority marks a sponsor with a missing or out-of-range prioridade.
const invalidPriority = 99

// PromoteSponsored pins active sponsors present in the list into the first
// slots by ascending prioridade (valid range 1 to 3; anything else counts as
// lowest). When two sponsors claim the same clamped priority, the one earlier
// in the incoming order wins the slot. All other places follow in their
// pre-existing order. The output has the same length as the input.
func PromoteSponsored(places []models.Place, sponsors map[string]models.Sponsor) []models.Place {
	if len(places) == 0 || len(sponsors) == 0 {
		return places
	}

	type pinned struct {
		place    models.Place
		priority int
		order    int // original index, used as tie-break
	}
	var candidates []pinned
	sponsoredIdx := make(map[int]struct{})
	for i, p := range places {
		sp, ok := sponsors[p.PlaceID]
		if !ok || !sp.Active {
			continue
		}
		prio := sp.Prioridade
		if prio < 1 || prio > pinnedSlots {
			prio = invalidPriority
		}
		candidates = append(candidates, pinned{place: p, priority: prio, order: i})
		sponsoredIdx[i] = struct{}{}
	}
	if len(candidates) == 0 {
		return places
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority < candidates[j].priority
		}
		return candidates[i].order < candidates[j].order
	})
	if len(candidates) > pinnedSlots {
		// Unpinned sponsors fall back to their original position.
		for _, c := range candidates[pinnedSlots:] {
			delete(sponsoredIdx, c.order)
		}
		candidates = candidates[:pinnedSlots]
	}

	out := make([]models.Place, 0, len(places))
	for _, c := range candidates {
		out = append(out, c.place)
	}
	for i, p := range places {
		if _, isPinned := sponsoredIdx[i]; !isPinned {
			out = append(out, p)
		}
	}
	return out
}
