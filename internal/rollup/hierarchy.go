package rollup

import (
	"cmp"
	"fmt"
	"slices"

	"plantingcore/pkg/domain"
)

// ObservationInput is everything needed to assemble one observation's result
// tree, read from a single consistent view.
type ObservationInput struct {
	Observation domain.Observation
	// Geometry is the site geometry version referenced by the observation.
	Geometry *domain.SiteGeometryVersion
	Plots    []domain.ObservationPlot
	// PlotRecords holds the monitoring plot of every observation plot, keyed by plot ID.
	PlotRecords map[string]domain.MonitoringPlot
	Overlaps    []domain.PlotOverlap
	Totals      []domain.SpeciesTotal
	// Subzones holds current subzones keyed by ID; only their completion markers are used.
	Subzones map[string]domain.PlantingSubzone
}

// LoadObservationInput gathers an ObservationInput from view.
func LoadObservationInput(view domain.TransactionView, obs domain.Observation) ObservationInput {
	in := ObservationInput{
		Observation: obs,
		Plots:       view.ListObservationPlots(obs.ID),
		PlotRecords: make(map[string]domain.MonitoringPlot),
		Overlaps:    view.ListPlotOverlaps(),
		Totals:      view.ListSpeciesTotals(obs.ID),
		Subzones:    make(map[string]domain.PlantingSubzone),
	}
	if obs.SiteGeometryVersionID != nil {
		if g, ok := view.FindGeometryVersion(*obs.SiteGeometryVersionID); ok {
			in.Geometry = &g
		}
	}
	for _, op := range in.Plots {
		if p, ok := view.FindMonitoringPlot(op.PlotID); ok {
			in.PlotRecords[p.ID] = p
		}
	}
	for _, s := range view.ListSubzones(obs.SiteID) {
		in.Subzones[s.ID] = s
	}
	return in
}

// Assembler builds observation result trees.
type Assembler struct{}

// Assemble builds the plot→subzone→zone→site tree for one observation, or the
// single ad-hoc plot result for ad-hoc observations. Missing plot or geometry
// records abort the whole tree with domain.ErrInconsistentData.
func (Assembler) Assemble(in ObservationInput) (domain.ObservationResult, error) {
	obs := in.Observation
	result := domain.ObservationResult{
		ObservationID:         obs.ID,
		SiteID:                obs.SiteID,
		State:                 obs.State,
		Type:                  obs.Type,
		IsAdHoc:               obs.IsAdHoc,
		StartDate:             obs.StartDate,
		EndDate:               obs.EndDate,
		ObservationCompleted:  obs.CompletedTime,
		SiteGeometryVersionID: obs.SiteGeometryVersionID,
		Zones:                 []domain.ZoneResult{},
	}

	plots, err := buildPlots(in)
	if err != nil {
		return domain.ObservationResult{}, err
	}

	if obs.IsAdHoc {
		return assembleAdHoc(result, plots)
	}

	if in.Geometry == nil {
		ref := ""
		if obs.SiteGeometryVersionID != nil {
			ref = *obs.SiteGeometryVersionID
		}
		return domain.ObservationResult{}, domain.ErrInconsistentData{
			Entity: domain.EntityGeometryVersion,
			ID:     ref,
			Reason: fmt.Sprintf("observation %s has no site geometry version", obs.ID),
		}
	}

	subzoneGeometry := make(map[string]domain.SubzoneGeometry)
	subzoneZone := make(map[string]string)
	for _, z := range in.Geometry.Zones {
		for _, s := range z.Subzones {
			subzoneGeometry[s.SubzoneID] = s
			subzoneZone[s.SubzoneID] = z.ZoneID
		}
	}

	bySubzone := make(map[string][]domain.PlotResult)
	for _, p := range plots {
		if p.SubzoneID == nil {
			return domain.ObservationResult{}, domain.ErrInconsistentData{
				Entity: domain.EntityObservationPlot,
				ID:     obs.ID + "/" + p.PlotID,
				Reason: "plot of a non ad-hoc observation has no subzone",
			}
		}
		if _, ok := subzoneGeometry[*p.SubzoneID]; !ok {
			return domain.ObservationResult{}, domain.ErrInconsistentData{
				Entity: domain.EntitySubzone,
				ID:     *p.SubzoneID,
				Reason: fmt.Sprintf("subzone missing from geometry version %s", in.Geometry.ID),
			}
		}
		bySubzone[*p.SubzoneID] = append(bySubzone[*p.SubzoneID], p)
	}

	for _, zg := range sortedZoneGeometry(in.Geometry.Zones) {
		var subzones []domain.SubzoneResult
		for _, sg := range sortedSubzoneGeometry(zg.Subzones) {
			sp, ok := bySubzone[sg.SubzoneID]
			if !ok {
				continue
			}
			current := in.Subzones[sg.SubzoneID]
			subzones = append(subzones, buildSubzone(sg.SubzoneID, zg.ZoneID, sg.Name, sg.AreaHa, current.PlantingCompleted(), sp))
		}
		if len(subzones) == 0 {
			continue
		}
		result.Zones = append(result.Zones, buildZone(zg.ZoneID, zg.Name, zg.AreaHa, subzones))
	}

	result.AreaHa = in.Geometry.AreaHa
	result.LevelStats = buildSiteLevel(in.Geometry.AreaHa, result.Zones)
	return result, nil
}

func assembleAdHoc(result domain.ObservationResult, plots []domain.PlotResult) (domain.ObservationResult, error) {
	switch len(plots) {
	case 0:
		result.LevelStats = buildLevel(levelInput{})
		return result, nil
	case 1:
	default:
		return domain.ObservationResult{}, domain.ErrInconsistentData{
			Entity: domain.EntityObservation,
			ID:     result.ObservationID,
			Reason: fmt.Sprintf("ad-hoc observation has %d plots, want 1", len(plots)),
		}
	}
	plot := plots[0]
	result.AdHocPlot = &plot
	result.LevelStats = buildLevel(levelInput{
		childSpecies: [][]domain.SpeciesResult{plot.Species},
		plots:        plots,
	})
	return result, nil
}

func buildPlots(in ObservationInput) ([]domain.PlotResult, error) {
	totalsByPlot := make(map[string][]domain.SpeciesTotal)
	for _, t := range in.Totals {
		totalsByPlot[t.PlotID] = append(totalsByPlot[t.PlotID], t)
	}
	overlaps := make(map[string][]string)
	overlappedBy := make(map[string][]string)
	for _, o := range in.Overlaps {
		overlaps[o.PlotID] = append(overlaps[o.PlotID], o.OverlapsPlotID)
		overlappedBy[o.OverlapsPlotID] = append(overlappedBy[o.OverlapsPlotID], o.PlotID)
	}

	known := make(map[string]struct{}, len(in.Plots))
	out := make([]domain.PlotResult, 0, len(in.Plots))
	for _, op := range in.Plots {
		record, ok := in.PlotRecords[op.PlotID]
		if !ok {
			return nil, domain.ErrInconsistentData{
				Entity: domain.EntityMonitoringPlot,
				ID:     op.PlotID,
				Reason: fmt.Sprintf("observation %s references a plot with no record", op.ObservationID),
			}
		}
		if record.SizeMeters <= 0 {
			return nil, domain.ErrInconsistentData{
				Entity: domain.EntityMonitoringPlot,
				ID:     op.PlotID,
				Reason: "plot has no area",
			}
		}
		known[op.PlotID] = struct{}{}
		out = append(out, buildPlot(op, record, totalsByPlot[op.PlotID], overlaps[op.PlotID], overlappedBy[op.PlotID]))
	}
	for plotID := range totalsByPlot {
		if _, ok := known[plotID]; !ok {
			return nil, domain.ErrInconsistentData{
				Entity: domain.EntitySpeciesTotal,
				ID:     plotID,
				Reason: fmt.Sprintf("species totals for a plot outside observation %s", in.Observation.ID),
			}
		}
	}
	slices.SortFunc(out, ComparePlots)
	return out, nil
}

func buildPlot(op domain.ObservationPlot, plot domain.MonitoringPlot, totals []domain.SpeciesTotal, overlaps, overlappedBy []string) domain.PlotResult {
	permanent := op.IsPermanent && !plot.IsAdHoc
	species := LeafSpecies(totals, permanent)
	sum := SumSpecies(species)
	area := plot.AreaSquareMeters()
	return domain.PlotResult{
		PlotID:           plot.ID,
		PlotNumber:       plot.PlotNumber,
		SubzoneID:        op.SubzoneID,
		SizeMeters:       plot.SizeMeters,
		Boundary:         plot.Boundary,
		IsPermanent:      permanent,
		IsAdHoc:          plot.IsAdHoc,
		Status:           op.Status,
		CompletedTime:    op.CompletedTime,
		ClaimedBy:        op.ClaimedBy,
		Overlaps:         sortedCopy(overlaps),
		OverlappedBy:     sortedCopy(overlappedBy),
		Species:          species,
		TotalLive:        sum.Live,
		TotalDead:        sum.Dead,
		TotalExisting:    sum.Existing,
		CumulativeDead:   sum.CumulativeDead,
		PermanentLive:    sum.PermanentLive,
		TotalPlants:      sum.Plants(),
		TotalSpecies:     CountIdentifiedSpecies(species),
		MortalityRate:    MortalityRate(sum.CumulativeDead, sum.PermanentLive),
		PlantingDensity:  PlotDensity(sum.Live, area),
		AreaSquareMeters: area,
	}
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

func sortedZoneGeometry(zones []domain.ZoneGeometry) []domain.ZoneGeometry {
	out := slices.Clone(zones)
	slices.SortFunc(out, func(a, b domain.ZoneGeometry) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ZoneID, b.ZoneID)
	})
	return out
}

func sortedSubzoneGeometry(subzones []domain.SubzoneGeometry) []domain.SubzoneGeometry {
	out := slices.Clone(subzones)
	slices.SortFunc(out, func(a, b domain.SubzoneGeometry) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.SubzoneID, b.SubzoneID)
	})
	return out
}
