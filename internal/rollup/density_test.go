package rollup

import (
	"math"
	"testing"

	"plantingcore/pkg/domain"
)

func TestPlantingDensityDefaultsToZero(t *testing.T) {
	plots := []domain.PlotResult{
		{PlotID: "p1", Status: domain.PlotStatusClaimed, PlantingDensity: 500},
		{PlotID: "p2", Status: domain.PlotStatusNotObserved},
	}
	if got := PlantingDensity(plots); got != 0 {
		t.Fatalf("expected zero density without completed plots, got %f", got)
	}
	if got := PlantingDensity(nil); got != 0 || math.IsNaN(got) {
		t.Fatalf("expected zero density for no plots, got %f", got)
	}
	if PlantingDensityStdDev(plots) != nil {
		t.Fatalf("expected nil spread without completed plots")
	}
}

func TestPlantingDensityAveragesCompletedPlots(t *testing.T) {
	plots := []domain.PlotResult{
		{PlotID: "p1", Status: domain.PlotStatusCompleted, PlantingDensity: 100},
		{PlotID: "p2", Status: domain.PlotStatusCompleted, PlantingDensity: 300},
		{PlotID: "p3", Status: domain.PlotStatusUnclaimed, PlantingDensity: 9000},
	}
	if got := PlantingDensity(plots); got != 200 {
		t.Fatalf("expected mean 200, got %f", got)
	}
	sd := PlantingDensityStdDev(plots)
	if sd == nil || *sd != 100 {
		t.Fatalf("expected spread 100, got %v", sd)
	}
}

func TestPlotDensity(t *testing.T) {
	// 8 live in a 25m x 25m plot
	if got := PlotDensity(8, 625); got != 128 {
		t.Fatalf("expected 128 plants/ha, got %f", got)
	}
	if got := PlotDensity(8, 0); got != 0 {
		t.Fatalf("expected zero density for zero area, got %f", got)
	}
}

func TestEstimatedPlants(t *testing.T) {
	if EstimatedPlants(10, 250, false) != nil {
		t.Fatalf("expected no estimate before planting completes")
	}
	got := EstimatedPlants(2.5, 101, true)
	if got == nil || *got != 253 {
		t.Fatalf("expected 253 estimated plants, got %v", got)
	}
}
