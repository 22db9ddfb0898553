// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"plantingcore/pkg/domain"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// Store is an in-memory implementation of domain.PersistentStore. Every
// transaction runs against a clone of the state and is swapped in only when
// the rules engine raises no blocking violation.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the clock stamped onto created and updated records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// ListSites returns all sites outside of a transaction.
func (s *Store) ListSites() []domain.Site {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListSites()
}

// RunInTransaction applies fn to a cloned state, evaluates the registered
// rules over the recorded changes and commits when nothing blocks.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	return fn(newTransactionView(&snapshot))
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func byID[T any](id func(T) string) func(a, b T) int {
	return func(a, b T) int { return cmp.Compare(id(a), id(b)) }
}

func collect[V any](in map[string]V, keep func(V) bool, cloneFn func(V) V) []V {
	out := make([]V, 0, len(in))
	for _, v := range in {
		if keep == nil || keep(v) {
			out = append(out, cloneFn(v))
		}
	}
	return out
}

func (v transactionView) FindSite(id string) (domain.Site, bool) {
	s, ok := v.state.sites[id]
	return cloneSite(s), ok
}

// ListSites returns all sites ordered by ID.
func (v transactionView) ListSites() []domain.Site {
	out := collect(v.state.sites, nil, cloneSite)
	slices.SortFunc(out, byID(func(s domain.Site) string { return s.ID }))
	return out
}

func (v transactionView) ListZones(siteID string) []domain.PlantingZone {
	out := collect(v.state.zones, func(z domain.PlantingZone) bool { return z.SiteID == siteID }, cloneZone)
	slices.SortFunc(out, byID(func(z domain.PlantingZone) string { return z.ID }))
	return out
}

func (v transactionView) ListSubzones(siteID string) []domain.PlantingSubzone {
	out := collect(v.state.subzones, func(s domain.PlantingSubzone) bool { return s.SiteID == siteID }, cloneSubzone)
	slices.SortFunc(out, byID(func(s domain.PlantingSubzone) string { return s.ID }))
	return out
}

func (v transactionView) FindGeometryVersion(id string) (domain.SiteGeometryVersion, bool) {
	g, ok := v.state.geometries[id]
	if !ok {
		return domain.SiteGeometryVersion{}, false
	}
	return cloneGeometry(g), true
}

func (v transactionView) FindMonitoringPlot(id string) (domain.MonitoringPlot, bool) {
	p, ok := v.state.plots[id]
	if !ok {
		return domain.MonitoringPlot{}, false
	}
	return clonePlot(p), true
}

func (v transactionView) ListMonitoringPlots(siteID string) []domain.MonitoringPlot {
	out := collect(v.state.plots, func(p domain.MonitoringPlot) bool { return p.SiteID == siteID }, clonePlot)
	slices.SortFunc(out, func(a, b domain.MonitoringPlot) int {
		if c := cmp.Compare(a.PlotNumber, b.PlotNumber); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (v transactionView) ListPlotOverlaps() []domain.PlotOverlap {
	out := collect(v.state.overlaps, nil, identity[domain.PlotOverlap])
	slices.SortFunc(out, byID(overlapKey))
	return out
}

func (v transactionView) FindObservation(id string) (domain.Observation, bool) {
	o, ok := v.state.observations[id]
	if !ok {
		return domain.Observation{}, false
	}
	return cloneObservation(o), true
}

// ListObservations returns the observations of a site ordered by ID. An empty
// siteID lists every observation.
func (v transactionView) ListObservations(siteID string) []domain.Observation {
	out := collect(v.state.observations, func(o domain.Observation) bool { return siteID == "" || o.SiteID == siteID }, cloneObservation)
	slices.SortFunc(out, byID(func(o domain.Observation) string { return o.ID }))
	return out
}

func (v transactionView) ListObservationPlots(observationID string) []domain.ObservationPlot {
	out := collect(v.state.obsPlots, func(p domain.ObservationPlot) bool { return p.ObservationID == observationID }, cloneObservationPlot)
	slices.SortFunc(out, byID(domain.ObservationPlot.Key))
	return out
}

func (v transactionView) ListSpeciesTotals(observationID string) []domain.SpeciesTotal {
	out := collect(v.state.totals, func(t domain.SpeciesTotal) bool { return t.ObservationID == observationID }, cloneSpeciesTotal)
	slices.SortFunc(out, byID(domain.SpeciesTotal.RecordKey))
	return out
}

func (v transactionView) FindBiomassDetails(observationID string) (domain.BiomassDetails, bool) {
	b, ok := v.state.biomass[observationID]
	if !ok {
		return domain.BiomassDetails{}, false
	}
	return cloneBiomass(b), true
}

func overlapKey(o domain.PlotOverlap) string {
	return o.PlotID + "/" + o.OverlapsPlotID
}

// transaction represents a mutation set applied to a cloned store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) FindObservation(id string) (domain.Observation, bool) {
	return tx.Snapshot().FindObservation(id)
}

func (tx *transaction) FindMonitoringPlot(id string) (domain.MonitoringPlot, bool) {
	return tx.Snapshot().FindMonitoringPlot(id)
}

// CreateSite stores a new site.
func (tx *transaction) CreateSite(s domain.Site) (domain.Site, error) {
	if s.ID == "" {
		s.ID = tx.store.newID()
	}
	if _, exists := tx.state.sites[s.ID]; exists {
		return domain.Site{}, fmt.Errorf("site %q already exists", s.ID)
	}
	if err := validArea(s.AreaHa); err != nil {
		return domain.Site{}, fmt.Errorf("site %q: %w", s.ID, err)
	}
	s.CreatedAt = tx.now
	s.UpdatedAt = tx.now
	tx.state.sites[s.ID] = cloneSite(s)
	tx.recordChange(Change{Entity: domain.EntitySite, Action: domain.ActionCreate, After: cloneSite(s)})
	return cloneSite(s), nil
}

// UpdateSite mutates a site using the provided mutator function.
func (tx *transaction) UpdateSite(id string, mutator func(*domain.Site) error) (domain.Site, error) {
	current, ok := tx.state.sites[id]
	if !ok {
		return domain.Site{}, domain.ErrNotFound{Entity: domain.EntitySite, ID: id}
	}
	before := cloneSite(current)
	current = cloneSite(current)
	if err := mutator(&current); err != nil {
		return domain.Site{}, err
	}
	if err := validArea(current.AreaHa); err != nil {
		return domain.Site{}, fmt.Errorf("site %q: %w", id, err)
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.sites[id] = cloneSite(current)
	tx.recordChange(Change{Entity: domain.EntitySite, Action: domain.ActionUpdate, Before: before, After: cloneSite(current)})
	return cloneSite(current), nil
}

// CreateZone stores a new zone under an existing site.
func (tx *transaction) CreateZone(z domain.PlantingZone) (domain.PlantingZone, error) {
	if z.ID == "" {
		z.ID = tx.store.newID()
	}
	if _, exists := tx.state.zones[z.ID]; exists {
		return domain.PlantingZone{}, fmt.Errorf("zone %q already exists", z.ID)
	}
	if _, ok := tx.state.sites[z.SiteID]; !ok {
		return domain.PlantingZone{}, fmt.Errorf("site %q not found for zone", z.SiteID)
	}
	if err := validArea(z.AreaHa); err != nil {
		return domain.PlantingZone{}, fmt.Errorf("zone %q: %w", z.ID, err)
	}
	z.CreatedAt = tx.now
	z.UpdatedAt = tx.now
	tx.state.zones[z.ID] = cloneZone(z)
	tx.recordChange(Change{Entity: domain.EntityZone, Action: domain.ActionCreate, After: cloneZone(z)})
	return cloneZone(z), nil
}

// UpdateZone mutates a zone. The owning site cannot change.
func (tx *transaction) UpdateZone(id string, mutator func(*domain.PlantingZone) error) (domain.PlantingZone, error) {
	current, ok := tx.state.zones[id]
	if !ok {
		return domain.PlantingZone{}, domain.ErrNotFound{Entity: domain.EntityZone, ID: id}
	}
	before := cloneZone(current)
	current = cloneZone(current)
	if err := mutator(&current); err != nil {
		return domain.PlantingZone{}, err
	}
	if current.SiteID != before.SiteID {
		return domain.PlantingZone{}, fmt.Errorf("zone %q cannot move between sites", id)
	}
	if err := validArea(current.AreaHa); err != nil {
		return domain.PlantingZone{}, fmt.Errorf("zone %q: %w", id, err)
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.zones[id] = cloneZone(current)
	tx.recordChange(Change{Entity: domain.EntityZone, Action: domain.ActionUpdate, Before: before, After: cloneZone(current)})
	return cloneZone(current), nil
}

// CreateSubzone stores a new subzone. SiteID is taken from the parent zone.
func (tx *transaction) CreateSubzone(s domain.PlantingSubzone) (domain.PlantingSubzone, error) {
	if s.ID == "" {
		s.ID = tx.store.newID()
	}
	if _, exists := tx.state.subzones[s.ID]; exists {
		return domain.PlantingSubzone{}, fmt.Errorf("subzone %q already exists", s.ID)
	}
	zone, ok := tx.state.zones[s.ZoneID]
	if !ok {
		return domain.PlantingSubzone{}, fmt.Errorf("zone %q not found for subzone", s.ZoneID)
	}
	if s.SiteID != "" && s.SiteID != zone.SiteID {
		return domain.PlantingSubzone{}, fmt.Errorf("subzone %q site %q does not match zone site %q", s.ID, s.SiteID, zone.SiteID)
	}
	if err := validArea(s.AreaHa); err != nil {
		return domain.PlantingSubzone{}, fmt.Errorf("subzone %q: %w", s.ID, err)
	}
	s.SiteID = zone.SiteID
	s.CreatedAt = tx.now
	s.UpdatedAt = tx.now
	tx.state.subzones[s.ID] = cloneSubzone(s)
	tx.recordChange(Change{Entity: domain.EntitySubzone, Action: domain.ActionCreate, After: cloneSubzone(s)})
	return cloneSubzone(s), nil
}

// UpdateSubzone mutates a subzone, typically to set its planting completion marker.
func (tx *transaction) UpdateSubzone(id string, mutator func(*domain.PlantingSubzone) error) (domain.PlantingSubzone, error) {
	current, ok := tx.state.subzones[id]
	if !ok {
		return domain.PlantingSubzone{}, domain.ErrNotFound{Entity: domain.EntitySubzone, ID: id}
	}
	before := cloneSubzone(current)
	current = cloneSubzone(current)
	if err := mutator(&current); err != nil {
		return domain.PlantingSubzone{}, err
	}
	if current.SiteID != before.SiteID {
		return domain.PlantingSubzone{}, fmt.Errorf("subzone %q cannot move between sites", id)
	}
	if zone, ok := tx.state.zones[current.ZoneID]; !ok || zone.SiteID != current.SiteID {
		return domain.PlantingSubzone{}, fmt.Errorf("zone %q not found in site %q for subzone", current.ZoneID, current.SiteID)
	}
	if err := validArea(current.AreaHa); err != nil {
		return domain.PlantingSubzone{}, fmt.Errorf("subzone %q: %w", id, err)
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.subzones[id] = cloneSubzone(current)
	tx.recordChange(Change{Entity: domain.EntitySubzone, Action: domain.ActionUpdate, Before: before, After: cloneSubzone(current)})
	return cloneSubzone(current), nil
}

// CreateGeometryVersion freezes a site geometry. Versions are immutable once stored.
func (tx *transaction) CreateGeometryVersion(g domain.SiteGeometryVersion) (domain.SiteGeometryVersion, error) {
	if g.ID == "" {
		g.ID = tx.store.newID()
	}
	if _, exists := tx.state.geometries[g.ID]; exists {
		return domain.SiteGeometryVersion{}, fmt.Errorf("geometry version %q already exists", g.ID)
	}
	if _, ok := tx.state.sites[g.SiteID]; !ok {
		return domain.SiteGeometryVersion{}, fmt.Errorf("site %q not found for geometry version", g.SiteID)
	}
	seen := make(map[string]struct{})
	for _, z := range g.Zones {
		for _, s := range z.Subzones {
			if _, dup := seen[s.SubzoneID]; dup {
				return domain.SiteGeometryVersion{}, fmt.Errorf("geometry version %q lists subzone %q twice", g.ID, s.SubzoneID)
			}
			seen[s.SubzoneID] = struct{}{}
		}
	}
	if g.EffectiveTime.IsZero() {
		g.EffectiveTime = tx.now
	}
	g.CreatedAt = tx.now
	g.UpdatedAt = tx.now
	tx.state.geometries[g.ID] = cloneGeometry(g)
	tx.recordChange(Change{Entity: domain.EntityGeometryVersion, Action: domain.ActionCreate, After: cloneGeometry(g)})
	return cloneGeometry(g), nil
}

// CreateMonitoringPlot stores a new plot under an existing site.
func (tx *transaction) CreateMonitoringPlot(p domain.MonitoringPlot) (domain.MonitoringPlot, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.plots[p.ID]; exists {
		return domain.MonitoringPlot{}, fmt.Errorf("plot %q already exists", p.ID)
	}
	if _, ok := tx.state.sites[p.SiteID]; !ok {
		return domain.MonitoringPlot{}, fmt.Errorf("site %q not found for plot", p.SiteID)
	}
	if p.SizeMeters <= 0 {
		return domain.MonitoringPlot{}, fmt.Errorf("plot %q requires a positive size", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.plots[p.ID] = clonePlot(p)
	tx.recordChange(Change{Entity: domain.EntityMonitoringPlot, Action: domain.ActionCreate, After: clonePlot(p)})
	return clonePlot(p), nil
}

// AddPlotOverlap records an overlap relation. Adding an existing relation is a no-op.
func (tx *transaction) AddPlotOverlap(o domain.PlotOverlap) error {
	if o.PlotID == o.OverlapsPlotID {
		return errors.New("plot cannot overlap itself")
	}
	for _, id := range []string{o.PlotID, o.OverlapsPlotID} {
		if _, ok := tx.state.plots[id]; !ok {
			return fmt.Errorf("plot %q not found for overlap", id)
		}
	}
	key := overlapKey(o)
	if _, exists := tx.state.overlaps[key]; exists {
		return nil
	}
	tx.state.overlaps[key] = o
	tx.recordChange(Change{Entity: domain.EntityMonitoringPlot, Action: domain.ActionUpdate, After: o})
	return nil
}

// CreateObservation stores a new observation. State defaults to upcoming and
// type to monitoring.
func (tx *transaction) CreateObservation(o domain.Observation) (domain.Observation, error) {
	if o.ID == "" {
		o.ID = tx.store.newID()
	}
	if _, exists := tx.state.observations[o.ID]; exists {
		return domain.Observation{}, fmt.Errorf("observation %q already exists", o.ID)
	}
	if o.State == "" {
		o.State = domain.ObservationStateUpcoming
	}
	if o.Type == "" {
		o.Type = domain.ObservationTypeMonitoring
	}
	if err := tx.validateObservation(o); err != nil {
		return domain.Observation{}, err
	}
	o.CreatedAt = tx.now
	o.UpdatedAt = tx.now
	tx.state.observations[o.ID] = cloneObservation(o)
	tx.recordChange(Change{Entity: domain.EntityObservation, Action: domain.ActionCreate, After: cloneObservation(o)})
	return cloneObservation(o), nil
}

// UpdateObservation mutates an existing observation.
func (tx *transaction) UpdateObservation(id string, mutator func(*domain.Observation) error) (domain.Observation, error) {
	current, ok := tx.state.observations[id]
	if !ok {
		return domain.Observation{}, domain.ErrNotFound{Entity: domain.EntityObservation, ID: id}
	}
	before := cloneObservation(current)
	current = cloneObservation(current)
	if err := mutator(&current); err != nil {
		return domain.Observation{}, err
	}
	if current.SiteID != before.SiteID {
		return domain.Observation{}, fmt.Errorf("observation %q cannot move between sites", id)
	}
	current.ID = id
	if err := tx.validateObservation(current); err != nil {
		return domain.Observation{}, err
	}
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.observations[id] = cloneObservation(current)
	tx.recordChange(Change{Entity: domain.EntityObservation, Action: domain.ActionUpdate, Before: before, After: cloneObservation(current)})
	return cloneObservation(current), nil
}

func (tx *transaction) validateObservation(o domain.Observation) error {
	if _, ok := tx.state.sites[o.SiteID]; !ok {
		return fmt.Errorf("site %q not found for observation", o.SiteID)
	}
	switch o.State {
	case domain.ObservationStateUpcoming, domain.ObservationStateInProgress, domain.ObservationStateCompleted, domain.ObservationStateAbandoned:
	default:
		return fmt.Errorf("observation %q has unknown state %q", o.ID, o.State)
	}
	switch o.Type {
	case domain.ObservationTypeMonitoring, domain.ObservationTypeBiomass:
	default:
		return fmt.Errorf("observation %q has unknown type %q", o.ID, o.Type)
	}
	if !o.StartDate.IsZero() && !o.EndDate.IsZero() && o.EndDate.Before(o.StartDate) {
		return fmt.Errorf("observation %q ends before it starts", o.ID)
	}
	if o.SiteGeometryVersionID != nil {
		g, ok := tx.state.geometries[*o.SiteGeometryVersionID]
		if !ok {
			return fmt.Errorf("geometry version %q not found for observation", *o.SiteGeometryVersionID)
		}
		if g.SiteID != o.SiteID {
			return fmt.Errorf("geometry version %q belongs to site %q, not %q", g.ID, g.SiteID, o.SiteID)
		}
	}
	return nil
}

// PutObservationPlot creates or replaces the join record for an observation and plot.
func (tx *transaction) PutObservationPlot(p domain.ObservationPlot) (domain.ObservationPlot, error) {
	obs, ok := tx.state.observations[p.ObservationID]
	if !ok {
		return domain.ObservationPlot{}, fmt.Errorf("observation %q not found for observation plot", p.ObservationID)
	}
	plot, ok := tx.state.plots[p.PlotID]
	if !ok {
		return domain.ObservationPlot{}, fmt.Errorf("plot %q not found for observation plot", p.PlotID)
	}
	if plot.SiteID != obs.SiteID {
		return domain.ObservationPlot{}, fmt.Errorf("plot %q belongs to site %q, not %q", plot.ID, plot.SiteID, obs.SiteID)
	}
	if p.SubzoneID != nil {
		if _, ok := tx.state.subzones[*p.SubzoneID]; !ok {
			return domain.ObservationPlot{}, fmt.Errorf("subzone %q not found for observation plot", *p.SubzoneID)
		}
	}
	switch p.Status {
	case "":
		p.Status = domain.PlotStatusUnclaimed
	case domain.PlotStatusUnclaimed, domain.PlotStatusClaimed, domain.PlotStatusCompleted, domain.PlotStatusNotObserved:
	default:
		return domain.ObservationPlot{}, fmt.Errorf("observation plot %q has unknown status %q", p.Key(), p.Status)
	}

	key := p.Key()
	change := Change{Entity: domain.EntityObservationPlot, Action: domain.ActionCreate, After: cloneObservationPlot(p)}
	if before, exists := tx.state.obsPlots[key]; exists {
		change.Action = domain.ActionUpdate
		change.Before = cloneObservationPlot(before)
	}
	tx.state.obsPlots[key] = cloneObservationPlot(p)
	tx.recordChange(change)
	return cloneObservationPlot(p), nil
}

// IncrementSpeciesTotal adds the counters of t onto the stored bucket for its
// observation, plot and species, creating the bucket on first use.
func (tx *transaction) IncrementSpeciesTotal(t domain.SpeciesTotal) (domain.SpeciesTotal, error) {
	if _, ok := tx.state.obsPlots[t.ObservationID+"/"+t.PlotID]; !ok {
		return domain.SpeciesTotal{}, fmt.Errorf("observation plot %s/%s not found for species total", t.ObservationID, t.PlotID)
	}
	switch t.Certainty {
	case domain.CertaintyKnown:
		if t.SpeciesID == nil || *t.SpeciesID == "" {
			return domain.SpeciesTotal{}, errors.New("known species total requires a species id")
		}
	case domain.CertaintyOther:
		if t.SpeciesName == nil || *t.SpeciesName == "" {
			return domain.SpeciesTotal{}, errors.New("other species total requires a species name")
		}
	case domain.CertaintyUnknown:
		t.SpeciesID, t.SpeciesName = nil, nil
	default:
		return domain.SpeciesTotal{}, fmt.Errorf("unknown certainty %q", t.Certainty)
	}

	key := t.RecordKey()
	next := cloneSpeciesTotal(t)
	change := Change{Entity: domain.EntitySpeciesTotal, Action: domain.ActionCreate}
	if current, exists := tx.state.totals[key]; exists {
		change.Action = domain.ActionUpdate
		change.Before = cloneSpeciesTotal(current)
		next = cloneSpeciesTotal(current)
		next.TotalLive += t.TotalLive
		next.TotalDead += t.TotalDead
		next.TotalExisting += t.TotalExisting
		next.CumulativeDead += t.CumulativeDead
		next.PermanentLive += t.PermanentLive
	}
	change.After = cloneSpeciesTotal(next)
	tx.state.totals[key] = next
	tx.recordChange(change)
	return cloneSpeciesTotal(next), nil
}

// PutBiomassDetails creates or replaces the biomass summary of an observation.
func (tx *transaction) PutBiomassDetails(b domain.BiomassDetails) (domain.BiomassDetails, error) {
	if _, ok := tx.state.observations[b.ObservationID]; !ok {
		return domain.BiomassDetails{}, fmt.Errorf("observation %q not found for biomass details", b.ObservationID)
	}
	if _, ok := tx.state.plots[b.PlotID]; !ok {
		return domain.BiomassDetails{}, fmt.Errorf("plot %q not found for biomass details", b.PlotID)
	}
	change := Change{Entity: domain.EntityBiomassDetails, Action: domain.ActionCreate, After: cloneBiomass(b)}
	if before, exists := tx.state.biomass[b.ObservationID]; exists {
		change.Action = domain.ActionUpdate
		change.Before = cloneBiomass(before)
	}
	tx.state.biomass[b.ObservationID] = cloneBiomass(b)
	tx.recordChange(change)
	return cloneBiomass(b), nil
}

func validArea(area *float64) error {
	if area != nil && *area < 0 {
		return fmt.Errorf("negative area %v", *area)
	}
	return nil
}
