package core

import (
	"context"
	"fmt"
	"plantingcore/pkg/domain"
)

const (
	ruleTerminalObservation     = "terminal_observation_immutable"
	ruleObservationCompletedAt  = "observation_completed_time"
	rulePlotCompletedAt         = "observation_plot_completed_time"
	ruleSpeciesTotalNonNegative = "species_total_non_negative"
	ruleTemporaryPlotCounters   = "temporary_plot_permanent_counters"
)

// changePayload extracts a typed value from a change's Before or After field.
func changePayload[T any](v any) (T, bool) {
	switch p := v.(type) {
	case T:
		return p, true
	case *T:
		if p != nil {
			return *p, true
		}
	}
	var zero T
	return zero, false
}

// NewTerminalObservationImmutableRule blocks edits to completed or abandoned
// observations, including new plot records and species increments against them.
// Once terminal, an observation feeds site history and its counts are final.
func NewTerminalObservationImmutableRule() Rule {
	return terminalObservationRule{}
}

type terminalObservationRule struct{}

func (terminalObservationRule) Name() string { return ruleTerminalObservation }

func (terminalObservationRule) Evaluate(_ context.Context, view domain.RuleView, changes []Change) (Result, error) {
	// State before this transaction for observations it touched.
	priorState := make(map[string]domain.ObservationState)
	res := Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityObservation {
			continue
		}
		after, ok := changePayload[domain.Observation](change.After)
		if !ok {
			continue
		}
		before, hadBefore := changePayload[domain.Observation](change.Before)
		if _, seen := priorState[after.ID]; !seen {
			if hadBefore {
				priorState[after.ID] = before.State
			} else {
				priorState[after.ID] = ""
			}
		}
		if !hadBefore || !before.State.Terminal() {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     ruleTerminalObservation,
			Severity: SeverityBlock,
			Message:  fmt.Sprintf("observation %s is %s and cannot be modified", after.ID, before.State),
			Entity:   domain.EntityObservation,
			EntityID: after.ID,
		})
	}

	terminalBefore := func(observationID string) bool {
		if state, ok := priorState[observationID]; ok {
			return state.Terminal()
		}
		obs, ok := view.FindObservation(observationID)
		return ok && obs.State.Terminal()
	}

	for _, change := range changes {
		var observationID, entityID string
		switch change.Entity {
		case domain.EntityObservationPlot:
			p, ok := changePayload[domain.ObservationPlot](change.After)
			if !ok {
				continue
			}
			observationID, entityID = p.ObservationID, p.Key()
		case domain.EntitySpeciesTotal:
			t, ok := changePayload[domain.SpeciesTotal](change.After)
			if !ok {
				continue
			}
			observationID, entityID = t.ObservationID, t.RecordKey()
		default:
			continue
		}
		if !terminalBefore(observationID) {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     ruleTerminalObservation,
			Severity: SeverityBlock,
			Message:  fmt.Sprintf("observation %s is closed; %s cannot change", observationID, change.Entity),
			Entity:   change.Entity,
			EntityID: entityID,
		})
	}
	return res, nil
}

// NewObservationCompletedTimeRule requires completed observations to carry a
// completion time, which orders them in site history.
func NewObservationCompletedTimeRule() Rule {
	return observationCompletedTimeRule{}
}

type observationCompletedTimeRule struct{}

func (observationCompletedTimeRule) Name() string { return ruleObservationCompletedAt }

func (observationCompletedTimeRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityObservation {
			continue
		}
		obs, ok := changePayload[domain.Observation](change.After)
		if !ok || obs.State != domain.ObservationStateCompleted || obs.CompletedTime != nil {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     ruleObservationCompletedAt,
			Severity: SeverityBlock,
			Message:  fmt.Sprintf("observation %s is completed without a completed time", obs.ID),
			Entity:   domain.EntityObservation,
			EntityID: obs.ID,
		})
	}
	return res, nil
}

// NewPlotCompletedTimeRule requires completed observation plots to carry a
// completion time. History picks each subzone's result by it.
func NewPlotCompletedTimeRule() Rule {
	return plotCompletedTimeRule{}
}

type plotCompletedTimeRule struct{}

func (plotCompletedTimeRule) Name() string { return rulePlotCompletedAt }

func (plotCompletedTimeRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityObservationPlot {
			continue
		}
		p, ok := changePayload[domain.ObservationPlot](change.After)
		if !ok || p.Status != domain.PlotStatusCompleted || p.CompletedTime != nil {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     rulePlotCompletedAt,
			Severity: SeverityBlock,
			Message:  fmt.Sprintf("plot %s of observation %s is completed without a completed time", p.PlotID, p.ObservationID),
			Entity:   domain.EntityObservationPlot,
			EntityID: p.Key(),
		})
	}
	return res, nil
}
