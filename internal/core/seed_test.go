package core

import (
	"context"
	"reflect"
	"testing"

	"plantingcore/internal/infra/persistence/memory"
	"plantingcore/pkg/domain"
)

func TestSeedReplaysSnapshot(t *testing.T) {
	ctx := context.Background()
	source := seedWorld(t, nil)
	snapshot := source.ExportState()

	target := memory.NewStore(NewDefaultRulesEngine())
	report, _, err := Seed(ctx, target, snapshot)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if report["observations"] != 3 || report["species_totals"] != 3 || report["plots"] != 3 || report["biomass"] != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	want, err := NewService(source).SiteHistory(ctx, "site-1", 0)
	if err != nil {
		t.Fatalf("source history: %v", err)
	}
	got, err := NewService(target).SiteHistory(ctx, "site-1", 0)
	if err != nil {
		t.Fatalf("target history: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("history differs after seed:\nwant %+v\ngot  %+v", want, got)
	}
}

func TestSeedIsAtomic(t *testing.T) {
	ctx := context.Background()
	snapshot := seedWorld(t, nil).ExportState()
	snapshot.SpeciesTotals["bad"] = domain.SpeciesTotal{ObservationID: "obs-1", PlotID: "plot-404", Certainty: domain.CertaintyUnknown, TotalLive: 1}

	target := memory.NewStore(nil)
	if _, _, err := Seed(ctx, target, snapshot); err == nil {
		t.Fatalf("expected dangling species total to fail the seed")
	}
	if len(target.ExportState().Sites) != 0 {
		t.Fatalf("failed seed must not leave partial state")
	}
}
