package rollup

import "math"

// MortalityRate returns the rounded percentage of cumulative dead over the
// permanent population, or nil when there is no permanent population.
func MortalityRate(cumulativeDead, permanentLive int64) *int {
	denominator := cumulativeDead + permanentLive
	if denominator <= 0 {
		return nil
	}
	rate := int(math.Round(float64(cumulativeDead) * 100 / float64(denominator)))
	return &rate
}

// MortalitySample is one plot's contribution to a weighted mortality spread.
type MortalitySample struct {
	Rate   *int
	Weight int64 // permanent live + cumulative dead at the plot
}

// WeightedStdDev is the population-weighted standard deviation of plot
// mortality rates. Samples without a rate or weight are skipped; fewer than
// two remaining samples yield nil.
func WeightedStdDev(samples []MortalitySample) *float64 {
	var (
		n       int
		sumW    float64
		sumWX   float64
		weights = make([]float64, 0, len(samples))
		values  = make([]float64, 0, len(samples))
	)
	for _, s := range samples {
		if s.Rate == nil || s.Weight <= 0 {
			continue
		}
		w := float64(s.Weight)
		x := float64(*s.Rate)
		weights = append(weights, w)
		values = append(values, x)
		sumW += w
		sumWX += w * x
		n++
	}
	if n < 2 {
		return nil
	}
	mean := sumWX / sumW
	var acc float64
	for i, x := range values {
		d := x - mean
		acc += weights[i] * d * d
	}
	sd := math.Sqrt(acc / sumW)
	return &sd
}

// StdDev is the unweighted population standard deviation; nil for fewer than two values.
func StdDev(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var acc float64
	for _, v := range values {
		d := v - mean
		acc += d * d
	}
	sd := math.Sqrt(acc / float64(len(values)))
	return &sd
}
