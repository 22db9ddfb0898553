package rollup

import (
	"math"

	"plantingcore/pkg/domain"
)

// SquareMetersPerHectare converts plot areas to per-hectare rates.
const SquareMetersPerHectare = 10000.0

// PlotDensity is a plot's live plants per hectare.
func PlotDensity(live int64, areaSquareMeters float64) float64 {
	if areaSquareMeters <= 0 {
		return 0
	}
	return float64(live) * SquareMetersPerHectare / areaSquareMeters
}

func completedDensities(plots []domain.PlotResult) []float64 {
	out := make([]float64, 0, len(plots))
	for _, p := range plots {
		if p.Completed() {
			out = append(out, p.PlantingDensity)
		}
	}
	return out
}

// PlantingDensity is the mean per-hectare density over completed plots. It is
// zero, never NaN, when no plot is completed.
func PlantingDensity(plots []domain.PlotResult) float64 {
	densities := completedDensities(plots)
	if len(densities) == 0 {
		return 0
	}
	var sum float64
	for _, d := range densities {
		sum += d
	}
	return sum / float64(len(densities))
}

// PlantingDensityStdDev is the spread of the densities PlantingDensity averages.
func PlantingDensityStdDev(plots []domain.PlotResult) *float64 {
	return StdDev(completedDensities(plots))
}

// EstimatedPlants extrapolates density over an area once planting is complete.
func EstimatedPlants(areaHa, density float64, plantingCompleted bool) *int64 {
	if !plantingCompleted {
		return nil
	}
	n := int64(math.Round(areaHa * density))
	return &n
}
