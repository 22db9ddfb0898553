package domain

import "context"

// Transaction exposes the write operations that the external collaborators
// (observation lifecycle, incremental totals, geometry import) need within an
// atomic scope. The statistics engine itself never opens one.
type Transaction interface {
	Snapshot() TransactionView
	CreateSite(Site) (Site, error)
	UpdateSite(id string, mutator func(*Site) error) (Site, error)
	CreateZone(PlantingZone) (PlantingZone, error)
	UpdateZone(id string, mutator func(*PlantingZone) error) (PlantingZone, error)
	CreateSubzone(PlantingSubzone) (PlantingSubzone, error)
	UpdateSubzone(id string, mutator func(*PlantingSubzone) error) (PlantingSubzone, error)
	CreateGeometryVersion(SiteGeometryVersion) (SiteGeometryVersion, error)
	CreateMonitoringPlot(MonitoringPlot) (MonitoringPlot, error)
	AddPlotOverlap(PlotOverlap) error
	CreateObservation(Observation) (Observation, error)
	UpdateObservation(id string, mutator func(*Observation) error) (Observation, error)
	PutObservationPlot(ObservationPlot) (ObservationPlot, error)
	IncrementSpeciesTotal(SpeciesTotal) (SpeciesTotal, error)
	PutBiomassDetails(BiomassDetails) (BiomassDetails, error)
	FindObservation(id string) (Observation, bool)
	FindMonitoringPlot(id string) (MonitoringPlot, bool)
}

// TransactionView provides read-only access to one consistent snapshot.
type TransactionView interface {
	FindSite(id string) (Site, bool)
	ListSites() []Site
	ListZones(siteID string) []PlantingZone
	ListSubzones(siteID string) []PlantingSubzone
	FindGeometryVersion(id string) (SiteGeometryVersion, bool)
	FindMonitoringPlot(id string) (MonitoringPlot, bool)
	ListMonitoringPlots(siteID string) []MonitoringPlot
	ListPlotOverlaps() []PlotOverlap
	FindObservation(id string) (Observation, bool)
	ListObservations(siteID string) []Observation
	ListObservationPlots(observationID string) []ObservationPlot
	ListSpeciesTotals(observationID string) []SpeciesTotal
	FindBiomassDetails(observationID string) (BiomassDetails, bool)
}

// PersistentStore is a minimal abstraction over durable backends. All reads
// for one computation happen inside a single View call.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
