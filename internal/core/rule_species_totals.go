package core

import (
	"context"
	"fmt"

	"plantingcore/pkg/domain"
)

// NewSpeciesTotalNonNegativeRule blocks increments that would drive any
// counter of a species bucket below zero.
func NewSpeciesTotalNonNegativeRule() Rule {
	return speciesTotalNonNegativeRule{}
}

type speciesTotalNonNegativeRule struct{}

func (speciesTotalNonNegativeRule) Name() string { return ruleSpeciesTotalNonNegative }

func (speciesTotalNonNegativeRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Entity != domain.EntitySpeciesTotal {
			continue
		}
		t, ok := changePayload[domain.SpeciesTotal](change.After)
		if !ok {
			continue
		}
		counters := []struct {
			name  string
			value int64
		}{
			{"total_live", t.TotalLive},
			{"total_dead", t.TotalDead},
			{"total_existing", t.TotalExisting},
			{"cumulative_dead", t.CumulativeDead},
			{"permanent_live", t.PermanentLive},
		}
		for _, c := range counters {
			if c.value >= 0 {
				continue
			}
			res.Violations = append(res.Violations, Violation{
				Rule:     ruleSpeciesTotalNonNegative,
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("species total %s would have %s %d", t.RecordKey(), c.name, c.value),
				Entity:   domain.EntitySpeciesTotal,
				EntityID: t.RecordKey(),
			})
		}
	}
	return res, nil
}

// NewTemporaryPlotCountersRule warns when permanent-only counters are recorded
// against a temporary or ad-hoc plot. Rollups ignore those counters, so the
// warning surfaces data that will never reach mortality figures.
func NewTemporaryPlotCountersRule() Rule {
	return temporaryPlotCountersRule{}
}

type temporaryPlotCountersRule struct{}

func (temporaryPlotCountersRule) Name() string { return ruleTemporaryPlotCounters }

func (temporaryPlotCountersRule) Evaluate(_ context.Context, view domain.RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Entity != domain.EntitySpeciesTotal {
			continue
		}
		t, ok := changePayload[domain.SpeciesTotal](change.After)
		if !ok || (t.CumulativeDead == 0 && t.PermanentLive == 0) {
			continue
		}
		permanent := false
		for _, p := range view.ListObservationPlots(t.ObservationID) {
			if p.PlotID == t.PlotID {
				permanent = p.IsPermanent
				break
			}
		}
		if plot, ok := view.FindMonitoringPlot(t.PlotID); ok && plot.IsAdHoc {
			permanent = false
		}
		if permanent {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     ruleTemporaryPlotCounters,
			Severity: SeverityWarn,
			Message:  fmt.Sprintf("plot %s is not permanent in observation %s; permanent counters are ignored", t.PlotID, t.ObservationID),
			Entity:   domain.EntitySpeciesTotal,
			EntityID: t.RecordKey(),
		})
	}
	return res, nil
}
