package rollup

import (
	"testing"

	"plantingcore/pkg/domain"
)

func TestMergeSpeciesTotalsSumsPerBucket(t *testing.T) {
	records := []domain.SpeciesResult{
		{SpeciesKey: domain.SpeciesKey{Certainty: domain.CertaintyKnown, SpeciesID: "b"}, TotalLive: 3, TotalDead: 1, CumulativeDead: 1, PermanentLive: 3},
		{SpeciesKey: domain.SpeciesKey{Certainty: domain.CertaintyUnknown}, TotalLive: 4},
		{SpeciesKey: domain.SpeciesKey{Certainty: domain.CertaintyKnown, SpeciesID: "a"}, TotalLive: 2, TotalExisting: 5},
		{SpeciesKey: domain.SpeciesKey{Certainty: domain.CertaintyKnown, SpeciesID: "b"}, TotalLive: 7, TotalDead: 2, CumulativeDead: 2, PermanentLive: 7},
		{SpeciesKey: domain.SpeciesKey{Certainty: domain.CertaintyOther, SpeciesName: "Ficus sp."}, TotalLive: 1},
	}
	merged := MergeSpeciesTotals(records)
	if len(merged) != 4 {
		t.Fatalf("expected 4 buckets, got %d", len(merged))
	}
	wantOrder := []domain.SpeciesKey{
		{Certainty: domain.CertaintyKnown, SpeciesID: "a"},
		{Certainty: domain.CertaintyKnown, SpeciesID: "b"},
		{Certainty: domain.CertaintyOther, SpeciesName: "Ficus sp."},
		{Certainty: domain.CertaintyUnknown},
	}
	for i, want := range wantOrder {
		if merged[i].SpeciesKey != want {
			t.Fatalf("bucket %d: got %+v want %+v", i, merged[i].SpeciesKey, want)
		}
	}
	b := merged[1]
	if b.TotalLive != 10 || b.TotalDead != 3 || b.CumulativeDead != 3 || b.PermanentLive != 10 || b.TotalPlants != 13 {
		t.Fatalf("unexpected merged totals for b: %+v", b)
	}
	if b.MortalityRate == nil || *b.MortalityRate != 23 {
		t.Fatalf("expected per-species mortality 23, got %v", b.MortalityRate)
	}
	if merged[0].MortalityRate != nil {
		t.Fatalf("expected nil mortality without permanent plants")
	}
}

func TestMergeSpeciesTotalsEmpty(t *testing.T) {
	if got := MergeSpeciesTotals(nil); len(got) != 0 {
		t.Fatalf("expected empty merge, got %v", got)
	}
	if n := CountIdentifiedSpecies(nil); n != 0 {
		t.Fatalf("expected zero species, got %d", n)
	}
}

func TestCountIdentifiedSpeciesExcludesUnknownCertainty(t *testing.T) {
	species := MergeSpeciesTotals([]domain.SpeciesResult{
		{SpeciesKey: domain.SpeciesKey{Certainty: domain.CertaintyUnknown}, TotalLive: 500, TotalDead: 20},
		{SpeciesKey: domain.SpeciesKey{Certainty: domain.CertaintyKnown, SpeciesID: "x"}, TotalLive: 1},
		{SpeciesKey: domain.SpeciesKey{Certainty: domain.CertaintyKnown, SpeciesID: "dead-only"}, TotalDead: 4},
		{SpeciesKey: domain.SpeciesKey{Certainty: domain.CertaintyOther, SpeciesName: "n"}, TotalExisting: 2},
	})
	if n := CountIdentifiedSpecies(species); n != 2 {
		t.Fatalf("expected 2 identified species, got %d", n)
	}
}

func TestLeafSpeciesDropsPermanentCountsForTemporaryPlots(t *testing.T) {
	totals := []domain.SpeciesTotal{known("x", 8, 2, 1, 2, 8)}
	temp := LeafSpecies(totals, false)
	if temp[0].CumulativeDead != 0 || temp[0].PermanentLive != 0 {
		t.Fatalf("temporary plot leaked permanent counts: %+v", temp[0])
	}
	if temp[0].TotalLive != 8 || temp[0].TotalDead != 2 || temp[0].TotalExisting != 1 {
		t.Fatalf("temporary plot lost unrestricted counts: %+v", temp[0])
	}
	perm := LeafSpecies(totals, true)
	if perm[0].CumulativeDead != 2 || perm[0].PermanentLive != 8 {
		t.Fatalf("permanent plot lost counts: %+v", perm[0])
	}
}

func TestCompareSpecies(t *testing.T) {
	cases := []struct {
		name string
		a, b domain.SpeciesKey
		want int
	}{
		{"by id", domain.SpeciesKey{SpeciesID: "1"}, domain.SpeciesKey{SpeciesID: "2"}, -1},
		{"id before none", domain.SpeciesKey{SpeciesID: "9"}, domain.SpeciesKey{SpeciesName: "a"}, -1},
		{"by name", domain.SpeciesKey{SpeciesName: "b"}, domain.SpeciesKey{SpeciesName: "a"}, 1},
		{"unknown last", domain.SpeciesKey{Certainty: domain.CertaintyUnknown}, domain.SpeciesKey{Certainty: domain.CertaintyOther, SpeciesName: "z"}, 1},
		{"equal", domain.SpeciesKey{SpeciesID: "1", SpeciesName: "a"}, domain.SpeciesKey{SpeciesID: "1", SpeciesName: "a"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CompareSpecies(tc.a, tc.b); got != tc.want {
				t.Fatalf("CompareSpecies = %d, want %d", got, tc.want)
			}
		})
	}
}
