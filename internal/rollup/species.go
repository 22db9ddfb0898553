// Package rollup computes monitoring statistics: species totals, mortality,
// planting density and population estimates for result trees, plus the
// historical "as of" reconstruction of a site.
//
// Everything in this package is a pure function over already-loaded data.
// Storage access lives in the core service, which reads one consistent view
// and hands the materialized records over.
package rollup

import (
	"cmp"
	"slices"
	"strings"

	"plantingcore/pkg/domain"
)

// Totals are the five additive counters of a species bucket, summed.
type Totals struct {
	Live           int64
	Dead           int64
	Existing       int64
	CumulativeDead int64
	PermanentLive  int64
}

// Plants returns live plus dead plants. Existing plants are not counted.
func (t Totals) Plants() int64 {
	return t.Live + t.Dead
}

func (t *Totals) add(s domain.SpeciesResult) {
	t.Live += s.TotalLive
	t.Dead += s.TotalDead
	t.Existing += s.TotalExisting
	t.CumulativeDead += s.CumulativeDead
	t.PermanentLive += s.PermanentLive
}

var certaintyRank = map[domain.Certainty]int{
	domain.CertaintyKnown:   0,
	domain.CertaintyOther:   1,
	domain.CertaintyUnknown: 2,
}

// CompareSpecies orders species buckets by identity, then by name. Buckets
// without an ID (other and unknown certainty) sort after identified ones,
// and the unknown bucket sorts last.
func CompareSpecies(a, b domain.SpeciesKey) int {
	if c := compareEmptyLast(a.SpeciesID, b.SpeciesID); c != 0 {
		return c
	}
	if c := compareEmptyLast(a.SpeciesName, b.SpeciesName); c != 0 {
		return c
	}
	return cmp.Compare(certaintyRank[a.Certainty], certaintyRank[b.Certainty])
}

func compareEmptyLast(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// LeafSpecies converts the persisted totals of one plot into merged species
// results. When the plot is not permanent for this cycle its cumulative dead
// and permanent live counts are dropped, so they never reach a mortality
// denominator.
func LeafSpecies(totals []domain.SpeciesTotal, permanent bool) []domain.SpeciesResult {
	records := make([]domain.SpeciesResult, 0, len(totals))
	for _, t := range totals {
		r := domain.SpeciesResult{
			SpeciesKey:    t.Key(),
			TotalLive:     t.TotalLive,
			TotalDead:     t.TotalDead,
			TotalExisting: t.TotalExisting,
		}
		if permanent {
			r.CumulativeDead = t.CumulativeDead
			r.PermanentLive = t.PermanentLive
		}
		records = append(records, r)
	}
	return MergeSpeciesTotals(records)
}

// MergeSpeciesTotals sums records per species bucket. Input may be leaf
// records or child-level results; derived fields are recomputed from the sums.
func MergeSpeciesTotals(records []domain.SpeciesResult) []domain.SpeciesResult {
	merged := make(map[domain.SpeciesKey]*domain.SpeciesResult, len(records))
	for _, r := range records {
		acc, ok := merged[r.SpeciesKey]
		if !ok {
			acc = &domain.SpeciesResult{SpeciesKey: r.SpeciesKey}
			merged[r.SpeciesKey] = acc
		}
		acc.TotalLive += r.TotalLive
		acc.TotalDead += r.TotalDead
		acc.TotalExisting += r.TotalExisting
		acc.CumulativeDead += r.CumulativeDead
		acc.PermanentLive += r.PermanentLive
	}
	out := make([]domain.SpeciesResult, 0, len(merged))
	for _, acc := range merged {
		acc.TotalPlants = acc.TotalLive + acc.TotalDead
		acc.MortalityRate = MortalityRate(acc.CumulativeDead, acc.PermanentLive)
		out = append(out, *acc)
	}
	slices.SortFunc(out, func(a, b domain.SpeciesResult) int {
		return CompareSpecies(a.SpeciesKey, b.SpeciesKey)
	})
	return out
}

// SumSpecies adds up every bucket.
func SumSpecies(species []domain.SpeciesResult) Totals {
	var t Totals
	for _, s := range species {
		t.add(s)
	}
	return t
}

// CountIdentifiedSpecies counts identified buckets with live or existing plants.
func CountIdentifiedSpecies(species []domain.SpeciesResult) int {
	n := 0
	for _, s := range species {
		if s.Identified() && s.TotalLive+s.TotalExisting > 0 {
			n++
		}
	}
	return n
}
