package core

import (
	"context"
	"testing"
	"time"

	"plantingcore/internal/infra/persistence/memory"
	"plantingcore/pkg/domain"
)

func ptr[T any](v T) *T { return &v }

func day(d int) time.Time { return time.Date(2024, time.May, d, 9, 0, 0, 0, time.UTC) }

// seedWorld builds one site with a zone of two 1 ha subzones and three
// observations: completed obs-1, in-progress obs-2 and ad-hoc biomass obs-3.
// obs-1 counts 8 live / 2 dead on plot-1 and 4 known + 2 unknown live on plot-2.
func seedWorld(t *testing.T, engine *RulesEngine) *memory.Store {
	t.Helper()
	store := memory.NewStore(engine)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		steps := []func() error{
			func() error {
				_, err := tx.CreateSite(domain.Site{Base: domain.Base{ID: "site-1"}, OrganizationID: "org-1", Name: "Ridge", AreaHa: ptr(2.0)})
				return err
			},
			func() error {
				_, err := tx.CreateZone(domain.PlantingZone{Base: domain.Base{ID: "zone-1"}, SiteID: "site-1", Name: "Zone 1", AreaHa: ptr(2.0)})
				return err
			},
			func() error {
				_, err := tx.CreateSubzone(domain.PlantingSubzone{Base: domain.Base{ID: "sz-a"}, ZoneID: "zone-1", Name: "A", AreaHa: ptr(1.0), PlantingCompletedTime: ptr(day(1))})
				return err
			},
			func() error {
				_, err := tx.CreateSubzone(domain.PlantingSubzone{Base: domain.Base{ID: "sz-b"}, ZoneID: "zone-1", Name: "B", AreaHa: ptr(1.0), PlantingCompletedTime: ptr(day(1))})
				return err
			},
			func() error {
				_, err := tx.CreateGeometryVersion(domain.SiteGeometryVersion{
					Base:   domain.Base{ID: "geo-1"},
					SiteID: "site-1",
					AreaHa: 2,
					Zones: []domain.ZoneGeometry{{
						ZoneID: "zone-1", Name: "Zone 1", AreaHa: 2,
						Subzones: []domain.SubzoneGeometry{
							{SubzoneID: "sz-a", Name: "A", AreaHa: 1},
							{SubzoneID: "sz-b", Name: "B", AreaHa: 1},
						},
					}},
				})
				return err
			},
			func() error {
				for i, id := range []string{"plot-1", "plot-2"} {
					if _, err := tx.CreateMonitoringPlot(domain.MonitoringPlot{Base: domain.Base{ID: id}, SiteID: "site-1", PlotNumber: int64(i + 1), SizeMeters: 25, PermanentIndex: ptr(i + 1)}); err != nil {
						return err
					}
				}
				_, err := tx.CreateMonitoringPlot(domain.MonitoringPlot{Base: domain.Base{ID: "plot-9"}, SiteID: "site-1", PlotNumber: 9, SizeMeters: 25, IsAdHoc: true})
				return err
			},
			func() error {
				_, err := tx.CreateObservation(domain.Observation{
					Base: domain.Base{ID: "obs-1"}, SiteID: "site-1", State: domain.ObservationStateCompleted,
					StartDate: day(2), EndDate: day(6), CompletedTime: ptr(day(5)), SiteGeometryVersionID: ptr("geo-1"),
				})
				return err
			},
			func() error {
				_, err := tx.PutObservationPlot(domain.ObservationPlot{ObservationID: "obs-1", PlotID: "plot-1", SubzoneID: ptr("sz-a"), Status: domain.PlotStatusCompleted, IsPermanent: true, CompletedTime: ptr(day(4))})
				if err != nil {
					return err
				}
				_, err = tx.PutObservationPlot(domain.ObservationPlot{ObservationID: "obs-1", PlotID: "plot-2", SubzoneID: ptr("sz-b"), Status: domain.PlotStatusCompleted, IsPermanent: true, CompletedTime: ptr(day(5))})
				return err
			},
			func() error {
				totals := []domain.SpeciesTotal{
					{ObservationID: "obs-1", PlotID: "plot-1", SpeciesID: ptr("sp-1"), Certainty: domain.CertaintyKnown, TotalLive: 8, TotalDead: 2, CumulativeDead: 2, PermanentLive: 8},
					{ObservationID: "obs-1", PlotID: "plot-2", SpeciesID: ptr("sp-1"), Certainty: domain.CertaintyKnown, TotalLive: 4, PermanentLive: 4},
					{ObservationID: "obs-1", PlotID: "plot-2", Certainty: domain.CertaintyUnknown, TotalLive: 2, PermanentLive: 2},
				}
				for _, total := range totals {
					if _, err := tx.IncrementSpeciesTotal(total); err != nil {
						return err
					}
				}
				return nil
			},
			func() error {
				if _, err := tx.CreateObservation(domain.Observation{
					Base: domain.Base{ID: "obs-2"}, SiteID: "site-1", State: domain.ObservationStateInProgress,
					StartDate: day(10), EndDate: day(12), SiteGeometryVersionID: ptr("geo-1"),
				}); err != nil {
					return err
				}
				_, err := tx.PutObservationPlot(domain.ObservationPlot{ObservationID: "obs-2", PlotID: "plot-1", SubzoneID: ptr("sz-a"), Status: domain.PlotStatusClaimed, IsPermanent: true, ClaimedBy: ptr("user-1")})
				return err
			},
			func() error {
				if _, err := tx.CreateObservation(domain.Observation{
					Base: domain.Base{ID: "obs-3"}, SiteID: "site-1", State: domain.ObservationStateCompleted, Type: domain.ObservationTypeBiomass,
					IsAdHoc: true, StartDate: day(7), EndDate: day(7), CompletedTime: ptr(day(7)),
				}); err != nil {
					return err
				}
				if _, err := tx.PutObservationPlot(domain.ObservationPlot{ObservationID: "obs-3", PlotID: "plot-9", Status: domain.PlotStatusCompleted, CompletedTime: ptr(day(7))}); err != nil {
					return err
				}
				_, err := tx.PutBiomassDetails(domain.BiomassDetails{ObservationID: "obs-3", PlotID: "plot-9", ForestType: "terrestrial", HerbaceousCoverPercent: 40, SmallTreeCountLow: 10, SmallTreeCountHigh: 20})
				return err
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
		t.Fatalf("seed: %v", err)
	}
	return store
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	ended []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, &captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	entries []logEntry
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) add(level, msg string, args []any) {
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) count(level string) int {
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}
