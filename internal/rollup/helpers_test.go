package rollup

import (
	"time"

	"plantingcore/pkg/domain"
)

func ptr[T any](v T) *T { return &v }

func day(d int) time.Time { return time.Date(2024, time.March, d, 12, 0, 0, 0, time.UTC) }

// fixturePlot describes one observation plot and its single-species totals.
type fixturePlot struct {
	id        string
	subzone   string
	status    domain.ObservationPlotStatus
	permanent bool
	completed *time.Time
	totals    []domain.SpeciesTotal
}

func known(id string, live, dead, existing, cumulativeDead, permanentLive int64) domain.SpeciesTotal {
	return domain.SpeciesTotal{
		SpeciesID:      ptr(id),
		Certainty:      domain.CertaintyKnown,
		TotalLive:      live,
		TotalDead:      dead,
		TotalExisting:  existing,
		CumulativeDead: cumulativeDead,
		PermanentLive:  permanentLive,
	}
}

func unknown(live, dead int64) domain.SpeciesTotal {
	return domain.SpeciesTotal{Certainty: domain.CertaintyUnknown, TotalLive: live, TotalDead: dead}
}

// twoSubzoneGeometry is one 2 ha zone with subzones A and B of 1 ha each.
func twoSubzoneGeometry() *domain.SiteGeometryVersion {
	return &domain.SiteGeometryVersion{
		Base:   domain.Base{ID: "geo-1"},
		SiteID: "site-1",
		AreaHa: 2,
		Zones: []domain.ZoneGeometry{{
			ZoneID: "zone-1",
			Name:   "Zone 1",
			AreaHa: 2,
			Subzones: []domain.SubzoneGeometry{
				{SubzoneID: "sz-a", Name: "A", AreaHa: 1},
				{SubzoneID: "sz-b", Name: "B", AreaHa: 1},
			},
		}},
	}
}

func completedSubzones(ids ...string) map[string]domain.PlantingSubzone {
	out := make(map[string]domain.PlantingSubzone, len(ids))
	done := day(1)
	for _, id := range ids {
		out[id] = domain.PlantingSubzone{Base: domain.Base{ID: id}, PlantingCompletedTime: &done}
	}
	return out
}

func buildInput(obsID string, geometry *domain.SiteGeometryVersion, plots ...fixturePlot) ObservationInput {
	in := ObservationInput{
		Observation: domain.Observation{
			Base:      domain.Base{ID: obsID},
			SiteID:    "site-1",
			State:     domain.ObservationStateCompleted,
			Type:      domain.ObservationTypeMonitoring,
			StartDate: day(1),
			EndDate:   day(2),
		},
		Geometry:    geometry,
		PlotRecords: make(map[string]domain.MonitoringPlot),
		Subzones:    map[string]domain.PlantingSubzone{},
	}
	if geometry != nil {
		in.Observation.SiteGeometryVersionID = ptr(geometry.ID)
	}
	for i, p := range plots {
		op := domain.ObservationPlot{
			ObservationID: obsID,
			PlotID:        p.id,
			Status:        p.status,
			IsPermanent:   p.permanent,
			CompletedTime: p.completed,
		}
		if p.subzone != "" {
			op.SubzoneID = ptr(p.subzone)
		}
		in.Plots = append(in.Plots, op)
		in.PlotRecords[p.id] = domain.MonitoringPlot{
			Base:       domain.Base{ID: p.id},
			SiteID:     "site-1",
			PlotNumber: int64(i + 1),
			SizeMeters: 25,
		}
		for _, t := range p.totals {
			t.ObservationID = obsID
			t.PlotID = p.id
			in.Totals = append(in.Totals, t)
		}
	}
	return in
}

func completedPlot(id, subzone string, completed time.Time, totals ...domain.SpeciesTotal) fixturePlot {
	return fixturePlot{id: id, subzone: subzone, status: domain.PlotStatusCompleted, permanent: true, completed: &completed, totals: totals}
}
