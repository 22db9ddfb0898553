package rollup

import (
	"errors"
	"testing"

	"plantingcore/pkg/domain"
)

func TestAssembleTwoSubzoneZone(t *testing.T) {
	in := buildInput("obs-1", twoSubzoneGeometry(),
		completedPlot("p-a", "sz-a", day(5), known("sp-1", 8, 2, 0, 2, 8)),
		completedPlot("p-b", "sz-b", day(6), known("sp-1", 16, 4, 0, 4, 16)),
	)
	in.Subzones = completedSubzones("sz-a", "sz-b")

	result, err := Assembler{}.Assemble(in)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(result.Zones) != 1 {
		t.Fatalf("expected 1 zone, got %d", len(result.Zones))
	}
	zone := result.Zones[0]
	if zone.TotalPlants != 30 {
		t.Fatalf("expected 30 plants in zone, got %d", zone.TotalPlants)
	}
	if zone.MortalityRate == nil || *zone.MortalityRate != 20 {
		t.Fatalf("expected zone mortality 20, got %v", zone.MortalityRate)
	}
	if zone.PlantingDensity != 192 {
		t.Fatalf("expected zone density 192, got %f", zone.PlantingDensity)
	}
	if zone.PlantingDensityStdDev == nil || *zone.PlantingDensityStdDev != 64 {
		t.Fatalf("expected density spread 64, got %v", zone.PlantingDensityStdDev)
	}
	if zone.MortalityRateStdDev == nil || *zone.MortalityRateStdDev != 0 {
		t.Fatalf("expected zero mortality spread, got %v", zone.MortalityRateStdDev)
	}
	if !zone.PlantingCompleted || zone.EstimatedPlants == nil || *zone.EstimatedPlants != 384 {
		t.Fatalf("expected zone estimate 384, got completed=%v estimate=%v", zone.PlantingCompleted, zone.EstimatedPlants)
	}
	if zone.CompletedTime == nil || !zone.CompletedTime.Equal(day(6)) {
		t.Fatalf("expected zone completed time of the last plot, got %v", zone.CompletedTime)
	}
	if len(zone.Subzones) != 2 || zone.Subzones[0].SubzoneID != "sz-a" || zone.Subzones[1].SubzoneID != "sz-b" {
		t.Fatalf("unexpected subzone order: %+v", zone.Subzones)
	}
	a := zone.Subzones[0]
	if a.PlantingDensity != 128 || a.EstimatedPlants == nil || *a.EstimatedPlants != 128 {
		t.Fatalf("unexpected subzone A stats: density=%f estimate=%v", a.PlantingDensity, a.EstimatedPlants)
	}
	if result.TotalPlants != 30 || result.AreaHa != 2 || !result.PlantingCompleted {
		t.Fatalf("unexpected site stats: %+v", result.LevelStats)
	}
}

func TestAssembleSpeciesSumsMatchAcrossLevels(t *testing.T) {
	in := buildInput("obs-1", twoSubzoneGeometry(),
		completedPlot("p-1", "sz-a", day(3), known("sp-1", 3, 1, 2, 1, 3), unknown(5, 1)),
		completedPlot("p-2", "sz-a", day(4), known("sp-2", 2, 0, 0, 0, 2)),
		completedPlot("p-3", "sz-b", day(4), known("sp-1", 9, 3, 1, 3, 9)),
		fixturePlot{id: "p-4", subzone: "sz-b", status: domain.PlotStatusClaimed, permanent: true},
	)
	result, err := Assembler{}.Assemble(in)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	check := func(level string, parent []domain.SpeciesResult, children ...[]domain.SpeciesResult) {
		t.Helper()
		var flat []domain.SpeciesResult
		for _, c := range children {
			flat = append(flat, c...)
		}
		want := MergeSpeciesTotals(flat)
		if len(want) != len(parent) {
			t.Fatalf("%s: expected %d buckets, got %d", level, len(want), len(parent))
		}
		for i := range want {
			w, p := want[i], parent[i]
			if w.SpeciesKey != p.SpeciesKey || w.TotalLive != p.TotalLive || w.TotalDead != p.TotalDead ||
				w.TotalExisting != p.TotalExisting || w.CumulativeDead != p.CumulativeDead || w.PermanentLive != p.PermanentLive {
				t.Fatalf("%s: bucket %d mismatch: got %+v want %+v", level, i, p, w)
			}
		}
	}

	zone := result.Zones[0]
	for _, s := range zone.Subzones {
		children := make([][]domain.SpeciesResult, 0, len(s.Plots))
		for _, p := range s.Plots {
			children = append(children, p.Species)
		}
		check("subzone "+s.SubzoneID, s.Species, children...)
	}
	check("zone", zone.Species, zone.Subzones[0].Species, zone.Subzones[1].Species)
	check("site", result.Species, zone.Species)

	if result.TotalSpecies != 2 {
		t.Fatalf("expected 2 identified species at site, got %d", result.TotalSpecies)
	}
	if result.TotalPlants != 3+1+5+1+2+9+3 {
		t.Fatalf("expected unknown plants in totals, got %d", result.TotalPlants)
	}
	if zone.CompletedPlots != 3 {
		t.Fatalf("expected 3 completed plots, got %d", zone.CompletedPlots)
	}
}

func TestAssembleCompletionPropagation(t *testing.T) {
	in := buildInput("obs-1", twoSubzoneGeometry(),
		completedPlot("p-a", "sz-a", day(5), known("sp-1", 8, 2, 0, 2, 8)),
		completedPlot("p-b", "sz-b", day(6), known("sp-1", 16, 4, 0, 4, 16)),
	)
	in.Subzones = completedSubzones("sz-a")

	result, err := Assembler{}.Assemble(in)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	zone := result.Zones[0]
	if zone.PlantingCompleted || zone.EstimatedPlants != nil {
		t.Fatalf("zone must not be complete while a subzone is unplanted")
	}
	if result.PlantingCompleted || result.EstimatedPlants != nil {
		t.Fatalf("site must not be complete while a zone is incomplete")
	}
	if !zone.Subzones[0].PlantingCompleted || zone.Subzones[0].EstimatedPlants == nil {
		t.Fatalf("completed subzone should carry an estimate")
	}
	if zone.Subzones[1].EstimatedPlants != nil {
		t.Fatalf("incomplete subzone should not carry an estimate")
	}
}

func TestAssembleTemporaryPlotsExcludedFromMortality(t *testing.T) {
	temp := completedPlot("p-t", "sz-a", day(5), known("sp-1", 10, 10, 0, 10, 10))
	temp.permanent = false
	in := buildInput("obs-1", twoSubzoneGeometry(),
		completedPlot("p-p", "sz-a", day(4), known("sp-1", 15, 5, 0, 5, 15)),
		temp,
	)
	result, err := Assembler{}.Assemble(in)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	sz := result.Zones[0].Subzones[0]
	if sz.MortalityRate == nil || *sz.MortalityRate != 25 {
		t.Fatalf("expected mortality 25 from the permanent plot only, got %v", sz.MortalityRate)
	}
	if sz.TotalDead != 15 {
		t.Fatalf("temporary dead plants still count toward totals, got %d", sz.TotalDead)
	}
	for _, p := range sz.Plots {
		if p.PlotID == "p-t" && (p.MortalityRate != nil || p.IsPermanent) {
			t.Fatalf("temporary plot reported permanent mortality: %+v", p)
		}
	}
}

func TestAssembleOrdersPlotsByCompletion(t *testing.T) {
	in := buildInput("obs-1", twoSubzoneGeometry(),
		fixturePlot{id: "p-1", subzone: "sz-a", status: domain.PlotStatusUnclaimed},
		completedPlot("p-2", "sz-a", day(9)),
		completedPlot("p-3", "sz-a", day(3)),
	)
	result, err := Assembler{}.Assemble(in)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	plots := result.Zones[0].Subzones[0].Plots
	got := []string{plots[0].PlotID, plots[1].PlotID, plots[2].PlotID}
	want := []string{"p-3", "p-2", "p-1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected plot order %v, got %v", want, got)
		}
	}
}

func TestAssembleSurfacesOverlaps(t *testing.T) {
	in := buildInput("obs-1", twoSubzoneGeometry(),
		completedPlot("p-1", "sz-a", day(3)),
		completedPlot("p-2", "sz-a", day(4)),
	)
	in.Overlaps = []domain.PlotOverlap{{PlotID: "p-2", OverlapsPlotID: "p-1"}, {PlotID: "p-2", OverlapsPlotID: "p-1"}}
	result, err := Assembler{}.Assemble(in)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	plots := result.Zones[0].Subzones[0].Plots
	if len(plots[0].OverlappedBy) != 1 || plots[0].OverlappedBy[0] != "p-2" {
		t.Fatalf("expected p-1 overlapped by p-2, got %v", plots[0].OverlappedBy)
	}
	if len(plots[1].Overlaps) != 1 || plots[1].Overlaps[0] != "p-1" {
		t.Fatalf("expected p-2 to overlap p-1, got %v", plots[1].Overlaps)
	}
}

func TestAssembleSkipsSubzonesWithoutPlots(t *testing.T) {
	in := buildInput("obs-1", twoSubzoneGeometry(), completedPlot("p-b", "sz-b", day(3), known("sp-1", 4, 0, 0, 0, 4)))
	result, err := Assembler{}.Assemble(in)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(result.Zones) != 1 || len(result.Zones[0].Subzones) != 1 || result.Zones[0].Subzones[0].SubzoneID != "sz-b" {
		t.Fatalf("expected only subzone B, got %+v", result.Zones)
	}
}

func TestAssembleAdHoc(t *testing.T) {
	in := buildInput("obs-adhoc", nil, completedPlot("p-x", "", day(2), known("sp-1", 6, 0, 0, 0, 6)))
	in.Observation.IsAdHoc = true
	result, err := Assembler{}.Assemble(in)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if result.AdHocPlot == nil || result.AdHocPlot.PlotID != "p-x" {
		t.Fatalf("expected ad-hoc plot result, got %+v", result.AdHocPlot)
	}
	if len(result.Zones) != 0 {
		t.Fatalf("ad-hoc observation should have no zones")
	}
	if result.TotalLive != 6 || result.PlantingDensity != 96 {
		t.Fatalf("unexpected ad-hoc stats: %+v", result.LevelStats)
	}
	if result.PlantingCompleted || result.EstimatedPlants != nil {
		t.Fatalf("ad-hoc observation should never estimate plants")
	}

	in = buildInput("obs-adhoc", nil, completedPlot("p-x", "", day(2)), completedPlot("p-y", "", day(2)))
	in.Observation.IsAdHoc = true
	if _, err := (Assembler{}).Assemble(in); !errors.Is(err, domain.ErrInconsistentDataKind) {
		t.Fatalf("expected inconsistent data for two ad-hoc plots, got %v", err)
	}
}

func TestAssembleInconsistentData(t *testing.T) {
	cases := []struct {
		name   string
		input  func() ObservationInput
		entity domain.EntityType
	}{
		{
			name: "missing geometry",
			input: func() ObservationInput {
				return buildInput("obs-1", nil, completedPlot("p-1", "sz-a", day(2)))
			},
			entity: domain.EntityGeometryVersion,
		},
		{
			name: "missing plot record",
			input: func() ObservationInput {
				in := buildInput("obs-1", twoSubzoneGeometry(), completedPlot("p-1", "sz-a", day(2)))
				delete(in.PlotRecords, "p-1")
				return in
			},
			entity: domain.EntityMonitoringPlot,
		},
		{
			name: "subzone not in geometry",
			input: func() ObservationInput {
				return buildInput("obs-1", twoSubzoneGeometry(), completedPlot("p-1", "sz-gone", day(2)))
			},
			entity: domain.EntitySubzone,
		},
		{
			name: "plot without subzone",
			input: func() ObservationInput {
				return buildInput("obs-1", twoSubzoneGeometry(), completedPlot("p-1", "", day(2)))
			},
			entity: domain.EntityObservationPlot,
		},
		{
			name: "totals for foreign plot",
			input: func() ObservationInput {
				in := buildInput("obs-1", twoSubzoneGeometry(), completedPlot("p-1", "sz-a", day(2)))
				stray := known("sp-1", 1, 0, 0, 0, 1)
				stray.ObservationID, stray.PlotID = "obs-1", "p-other"
				in.Totals = append(in.Totals, stray)
				return in
			},
			entity: domain.EntitySpeciesTotal,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Assembler{}.Assemble(tc.input())
			var inconsistent domain.ErrInconsistentData
			if !errors.As(err, &inconsistent) {
				t.Fatalf("expected ErrInconsistentData, got %v", err)
			}
			if inconsistent.Entity != tc.entity {
				t.Fatalf("expected entity %s, got %s", tc.entity, inconsistent.Entity)
			}
		})
	}
}
