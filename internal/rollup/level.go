package rollup

import (
	"cmp"
	"time"

	"plantingcore/pkg/domain"
)

// ComparePlots orders plots by completed time (unvisited plots last), then
// plot number, then ID.
func ComparePlots(a, b domain.PlotResult) int {
	if c := compareTimesNilLast(a.CompletedTime, b.CompletedTime); c != 0 {
		return c
	}
	if c := cmp.Compare(a.PlotNumber, b.PlotNumber); c != 0 {
		return c
	}
	return cmp.Compare(a.PlotID, b.PlotID)
}

func compareTimesNilLast(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

// LatestCompletedTime is the maximum completed time over completed plots.
func LatestCompletedTime(plots []domain.PlotResult) *time.Time {
	var latest *time.Time
	for _, p := range plots {
		if !p.Completed() || p.CompletedTime == nil {
			continue
		}
		if latest == nil || p.CompletedTime.After(*latest) {
			t := *p.CompletedTime
			latest = &t
		}
	}
	return latest
}

// levelInput is what every level above a plot is computed from: the species
// lists of its direct children and all plots beneath it.
type levelInput struct {
	childSpecies      [][]domain.SpeciesResult
	plots             []domain.PlotResult
	areaHa            float64
	plantingCompleted bool
}

func buildLevel(in levelInput) domain.LevelStats {
	var flat []domain.SpeciesResult
	for _, s := range in.childSpecies {
		flat = append(flat, s...)
	}
	species := MergeSpeciesTotals(flat)
	totals := SumSpecies(species)

	samples := make([]MortalitySample, 0, len(in.plots))
	completed := 0
	for _, p := range in.plots {
		samples = append(samples, MortalitySample{Rate: p.MortalityRate, Weight: p.PermanentLive + p.CumulativeDead})
		if p.Completed() {
			completed++
		}
	}

	density := PlantingDensity(in.plots)
	return domain.LevelStats{
		Species:               species,
		TotalLive:             totals.Live,
		TotalDead:             totals.Dead,
		TotalExisting:         totals.Existing,
		CumulativeDead:        totals.CumulativeDead,
		PermanentLive:         totals.PermanentLive,
		TotalPlants:           totals.Plants(),
		TotalSpecies:          CountIdentifiedSpecies(species),
		MortalityRate:         MortalityRate(totals.CumulativeDead, totals.PermanentLive),
		MortalityRateStdDev:   WeightedStdDev(samples),
		PlantingDensity:       density,
		PlantingDensityStdDev: PlantingDensityStdDev(in.plots),
		EstimatedPlants:       EstimatedPlants(in.areaHa, density, in.plantingCompleted),
		PlantingCompleted:     in.plantingCompleted,
		CompletedTime:         LatestCompletedTime(in.plots),
		CompletedPlots:        completed,
	}
}

func buildSubzone(subzoneID, zoneID, name string, areaHa float64, plantingCompleted bool, plots []domain.PlotResult) domain.SubzoneResult {
	species := make([][]domain.SpeciesResult, 0, len(plots))
	for _, p := range plots {
		species = append(species, p.Species)
	}
	return domain.SubzoneResult{
		SubzoneID: subzoneID,
		ZoneID:    zoneID,
		Name:      name,
		AreaHa:    areaHa,
		LevelStats: buildLevel(levelInput{
			childSpecies:      species,
			plots:             plots,
			areaHa:            areaHa,
			plantingCompleted: plantingCompleted,
		}),
		Plots: plots,
	}
}

func buildZone(zoneID, name string, areaHa float64, subzones []domain.SubzoneResult) domain.ZoneResult {
	species := make([][]domain.SpeciesResult, 0, len(subzones))
	var plots []domain.PlotResult
	completed := len(subzones) > 0
	for _, s := range subzones {
		species = append(species, s.Species)
		plots = append(plots, s.Plots...)
		completed = completed && s.PlantingCompleted
	}
	return domain.ZoneResult{
		ZoneID: zoneID,
		Name:   name,
		AreaHa: areaHa,
		LevelStats: buildLevel(levelInput{
			childSpecies:      species,
			plots:             plots,
			areaHa:            areaHa,
			plantingCompleted: completed,
		}),
		Subzones: subzones,
	}
}

func buildSiteLevel(areaHa float64, zones []domain.ZoneResult) domain.LevelStats {
	species := make([][]domain.SpeciesResult, 0, len(zones))
	var plots []domain.PlotResult
	completed := len(zones) > 0
	for _, z := range zones {
		species = append(species, z.Species)
		for _, s := range z.Subzones {
			plots = append(plots, s.Plots...)
		}
		completed = completed && z.PlantingCompleted
	}
	return buildLevel(levelInput{
		childSpecies:      species,
		plots:             plots,
		areaHa:            areaHa,
		plantingCompleted: completed,
	})
}
