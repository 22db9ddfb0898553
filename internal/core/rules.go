package core

// NewDefaultRulesEngine builds a rules engine with the built-in write-time
// integrity rules for observations and species totals.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewTerminalObservationImmutableRule())
	engine.Register(NewObservationCompletedTimeRule())
	engine.Register(NewPlotCompletedTimeRule())
	engine.Register(NewSpeciesTotalNonNegativeRule())
	engine.Register(NewTemporaryPlotCountersRule())
	return engine
}
