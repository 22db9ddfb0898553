package rollup

import (
	"cmp"
	"slices"
	"time"

	"plantingcore/pkg/domain"
)

// CurrentGeometry is the live spatial definition of a site. Historical
// rollups use its areas and completion markers, not the as-of geometry each
// observation was assembled against.
type CurrentGeometry struct {
	Site     domain.Site
	Zones    []domain.PlantingZone
	Subzones []domain.PlantingSubzone
}

// CompareObservations orders observation results oldest first by completed
// time, then end date, then ID. Observations without a completed time sort
// after those that have one.
func CompareObservations(a, b domain.ObservationResult) int {
	if c := compareTimesNilLast(a.ObservationCompleted, b.ObservationCompleted); c != 0 {
		return c
	}
	if c := a.EndDate.Compare(b.EndDate); c != 0 {
		return c
	}
	return cmp.Compare(a.ObservationID, b.ObservationID)
}

// historyCandidate is one observation's result for one subzone.
type historyCandidate struct {
	index   int
	latest  time.Time
	subzone domain.SubzoneResult
}

// Reconstruct produces the site's "as of" rollups, newest first. Depth k
// considers the oldest N-k observations; within that set each subzone takes
// the result of the observation whose completed plots there finished last.
// A positive limit caps the number of depths examined. Depths that end up
// with no subzones are dropped.
//
// results must already be terminal, non ad-hoc observation trees for one
// site; others are ignored.
func Reconstruct(results []domain.ObservationResult, current CurrentGeometry, limit int) ([]domain.SiteRollup, error) {
	observations := make([]domain.ObservationResult, 0, len(results))
	for _, r := range results {
		if r.IsAdHoc || !r.State.Terminal() {
			continue
		}
		observations = append(observations, r)
	}
	slices.SortStableFunc(observations, CompareObservations)

	// Candidates per subzone, built once; each depth only filters by index.
	candidates := make(map[string][]historyCandidate)
	for i, obs := range observations {
		for _, z := range obs.Zones {
			for _, s := range z.Subzones {
				latest, ok := subzoneCompletion(s.Plots, obs.ObservationCompleted)
				if !ok {
					continue
				}
				candidates[s.SubzoneID] = append(candidates[s.SubzoneID], historyCandidate{index: i, latest: latest, subzone: s})
			}
		}
	}

	n := len(observations)
	depths := n
	if limit > 0 && limit < depths {
		depths = limit
	}

	rollups := make([]domain.SiteRollup, 0, depths)
	for k := 0; k < depths; k++ {
		cut := n - k
		winners := make(map[string]historyCandidate)
		for subzoneID, list := range candidates {
			var best *historyCandidate
			for i := range list {
				c := &list[i]
				if c.index >= cut {
					continue
				}
				if best == nil || !c.latest.Before(best.latest) {
					best = c
				}
			}
			if best != nil {
				winners[subzoneID] = *best
			}
		}
		rollup, ok, err := rollupFromWinners(observations, cut, k, winners, current)
		if err != nil {
			return nil, err
		}
		if ok {
			rollups = append(rollups, rollup)
		}
	}
	return rollups, nil
}

// subzoneCompletion is when a subzone's completed plots finished. Completed
// plots without their own time fall back to the observation's completed time,
// then to the zero time, so they still compete but lose to any dated result.
func subzoneCompletion(plots []domain.PlotResult, observationCompleted *time.Time) (time.Time, bool) {
	var (
		latest time.Time
		found  bool
	)
	for _, p := range plots {
		if !p.Completed() {
			continue
		}
		var t time.Time
		switch {
		case p.CompletedTime != nil:
			t = *p.CompletedTime
		case observationCompleted != nil:
			t = *observationCompleted
		}
		if !found || t.After(latest) {
			latest = t
		}
		found = true
	}
	return latest, found
}

func rollupFromWinners(observations []domain.ObservationResult, cut, depth int, winners map[string]historyCandidate, current CurrentGeometry) (domain.SiteRollup, bool, error) {
	if len(winners) == 0 {
		return domain.SiteRollup{}, false, nil
	}

	subzonesByZone := make(map[string][]domain.PlantingSubzone)
	for _, s := range current.Subzones {
		subzonesByZone[s.ZoneID] = append(subzonesByZone[s.ZoneID], s)
	}

	used := make(map[int]struct{})
	var zones []domain.ZoneResult
	for _, z := range sortedZones(current.Zones) {
		var subzones []domain.SubzoneResult
		for _, s := range sortedSubzones(subzonesByZone[z.ID]) {
			// Subzones removed from the site drop out; a subzone that still exists must have an area.
			w, ok := winners[s.ID]
			if !ok {
				continue
			}
			if s.AreaHa == nil {
				return domain.SiteRollup{}, false, domain.ErrInconsistentData{Entity: domain.EntitySubzone, ID: s.ID, Reason: "subzone has no current area"}
			}
			used[w.index] = struct{}{}
			subzones = append(subzones, buildSubzone(s.ID, z.ID, s.Name, *s.AreaHa, s.PlantingCompleted(), w.subzone.Plots))
		}
		if len(subzones) == 0 {
			continue
		}
		if z.AreaHa == nil {
			return domain.SiteRollup{}, false, domain.ErrInconsistentData{Entity: domain.EntityZone, ID: z.ID, Reason: "zone has no current area"}
		}
		zones = append(zones, buildZone(z.ID, z.Name, *z.AreaHa, subzones))
	}
	if len(zones) == 0 {
		return domain.SiteRollup{}, false, nil
	}
	if current.Site.AreaHa == nil {
		return domain.SiteRollup{}, false, domain.ErrInconsistentData{Entity: domain.EntitySite, ID: current.Site.ID, Reason: "site has no current area"}
	}

	indexes := make([]int, 0, len(used))
	for i := range used {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)
	ids := make([]string, 0, len(indexes))
	for _, i := range indexes {
		ids = append(ids, observations[i].ObservationID)
	}

	return domain.SiteRollup{
		SiteID:              current.Site.ID,
		AreaHa:              *current.Site.AreaHa,
		LatestObservationID: observations[cut-1].ObservationID,
		ObservationIDs:      ids,
		Depth:               depth,
		LevelStats:          buildSiteLevel(*current.Site.AreaHa, zones),
		Zones:               zones,
	}, true, nil
}

func sortedZones(zones []domain.PlantingZone) []domain.PlantingZone {
	out := slices.Clone(zones)
	slices.SortFunc(out, func(a, b domain.PlantingZone) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func sortedSubzones(subzones []domain.PlantingSubzone) []domain.PlantingSubzone {
	out := slices.Clone(subzones)
	slices.SortFunc(out, func(a, b domain.PlantingSubzone) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
