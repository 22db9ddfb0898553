package core

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"plantingcore/internal/infra/persistence/memory"
	"plantingcore/pkg/domain"
)

// SeedReport counts the records written by Seed, keyed by bucket name.
type SeedReport map[string]int

// Seed replays a snapshot into store through a single transaction, in bucket
// dependency order, so the store's validation and rules apply to every record.
// Within a bucket records are written in key order.
func Seed(ctx context.Context, store PersistentStore, snapshot memory.Snapshot) (SeedReport, Result, error) {
	report := SeedReport{}
	res, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		steps := []func() error{
			func() error {
				return replay(report, "sites", snapshot.Sites, func(v domain.Site) error { _, err := tx.CreateSite(v); return err })
			},
			func() error {
				return replay(report, "zones", snapshot.Zones, func(v domain.PlantingZone) error { _, err := tx.CreateZone(v); return err })
			},
			func() error {
				return replay(report, "subzones", snapshot.Subzones, func(v domain.PlantingSubzone) error { _, err := tx.CreateSubzone(v); return err })
			},
			func() error {
				return replay(report, "geometry_versions", snapshot.GeometryVersions, func(v domain.SiteGeometryVersion) error {
					_, err := tx.CreateGeometryVersion(v)
					return err
				})
			},
			func() error {
				return replay(report, "plots", snapshot.Plots, func(v domain.MonitoringPlot) error { _, err := tx.CreateMonitoringPlot(v); return err })
			},
			func() error {
				return replay(report, "overlaps", snapshot.Overlaps, tx.AddPlotOverlap)
			},
			func() error {
				return replay(report, "observations", snapshot.Observations, func(v domain.Observation) error { _, err := tx.CreateObservation(v); return err })
			},
			func() error {
				return replay(report, "observation_plots", snapshot.ObservationPlots, func(v domain.ObservationPlot) error {
					_, err := tx.PutObservationPlot(v)
					return err
				})
			},
			func() error {
				return replay(report, "species_totals", snapshot.SpeciesTotals, func(v domain.SpeciesTotal) error {
					_, err := tx.IncrementSpeciesTotal(v)
					return err
				})
			},
			func() error {
				return replay(report, "biomass", snapshot.Biomass, func(v domain.BiomassDetails) error { _, err := tx.PutBiomassDetails(v); return err })
			},
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, res, err
	}
	return report, res, nil
}

func replay[V any](report SeedReport, bucket string, records map[string]V, apply func(V) error) error {
	for _, key := range slices.Sorted(maps.Keys(records)) {
		if err := apply(records[key]); err != nil {
			return fmt.Errorf("seed %s %s: %w", bucket, key, err)
		}
		report[bucket]++
	}
	return nil
}
