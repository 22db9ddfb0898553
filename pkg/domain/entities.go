// Package domain defines the persistent monitoring entities, result trees,
// errors and rule evaluation primitives used by plantingcore.
package domain

import (
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntitySite identifies a planting site record.
	EntitySite EntityType = "planting_site"
	// EntityZone identifies a planting zone record.
	EntityZone EntityType = "planting_zone"
	// EntitySubzone identifies a planting subzone record.
	EntitySubzone EntityType = "planting_subzone"
	// EntityGeometryVersion identifies an as-of-observation site geometry snapshot.
	EntityGeometryVersion EntityType = "site_geometry_version"
	// EntityMonitoringPlot identifies a monitoring plot record.
	EntityMonitoringPlot EntityType = "monitoring_plot"
	// EntityObservation identifies an observation record.
	EntityObservation EntityType = "observation"
	// EntityObservationPlot identifies the observation × plot join record.
	EntityObservationPlot EntityType = "observation_plot"
	// EntitySpeciesTotal identifies an incremental per-plot species total.
	EntitySpeciesTotal EntityType = "species_total"
	// EntityBiomassDetails identifies a biomass measurement summary.
	EntityBiomassDetails EntityType = "biomass_details"
	// EntityOrganization identifies an organization; used by authorization errors only.
	EntityOrganization EntityType = "organization"
)

// ObservationState enumerates the observation lifecycle.
type ObservationState string

// Observation lifecycle states.
const (
	ObservationStateUpcoming   ObservationState = "upcoming"
	ObservationStateInProgress ObservationState = "in_progress"
	ObservationStateCompleted  ObservationState = "completed"
	ObservationStateAbandoned  ObservationState = "abandoned"
)

// Terminal reports whether the state is Completed or Abandoned.
func (s ObservationState) Terminal() bool {
	return s == ObservationStateCompleted || s == ObservationStateAbandoned
}

// ObservationType distinguishes plain monitoring from biomass measurement visits.
type ObservationType string

// Observation types.
const (
	ObservationTypeMonitoring ObservationType = "monitoring"
	ObservationTypeBiomass    ObservationType = "biomass_measurements"
)

// ObservationPlotStatus enumerates the per-plot fieldwork status within one observation.
type ObservationPlotStatus string

// Observation plot statuses.
const (
	PlotStatusUnclaimed   ObservationPlotStatus = "unclaimed"
	PlotStatusClaimed     ObservationPlotStatus = "claimed"
	PlotStatusCompleted   ObservationPlotStatus = "completed"
	PlotStatusNotObserved ObservationPlotStatus = "not_observed"
)

// Certainty is the confidence assigned to a species identification.
type Certainty string

// Species identification certainties. Unknown records never count as species.
const (
	CertaintyKnown   Certainty = "known"
	CertaintyOther   Certainty = "other"
	CertaintyUnknown Certainty = "unknown"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Site is a planting site with its current area.
type Site struct {
	Base
	OrganizationID string   `json:"organization_id"`
	Name           string   `json:"name"`
	AreaHa         *float64 `json:"area_ha,omitempty"`
}

// PlantingZone groups subzones within a site. AreaHa is the current area.
type PlantingZone struct {
	Base
	SiteID string   `json:"site_id"`
	Name   string   `json:"name"`
	AreaHa *float64 `json:"area_ha,omitempty"`
}

// PlantingSubzone is the smallest spatial unit that carries a planting completion marker.
type PlantingSubzone struct {
	Base
	SiteID                string     `json:"site_id"`
	ZoneID                string     `json:"zone_id"`
	Name                  string     `json:"name"`
	AreaHa                *float64   `json:"area_ha,omitempty"`
	PlantingCompletedTime *time.Time `json:"planting_completed_time,omitempty"`
}

// PlantingCompleted reports the stored completion marker.
func (s PlantingSubzone) PlantingCompleted() bool {
	return s.PlantingCompletedTime != nil
}

// SiteGeometryVersion is the spatial definition of a site frozen at a point in time.
// Observations reference the version in force when they ran.
type SiteGeometryVersion struct {
	Base
	SiteID        string         `json:"site_id"`
	AreaHa        float64        `json:"area_ha"`
	EffectiveTime time.Time      `json:"effective_time"`
	Zones         []ZoneGeometry `json:"zones"`
}

// ZoneGeometry is a zone's area within a SiteGeometryVersion.
type ZoneGeometry struct {
	ZoneID   string            `json:"zone_id"`
	Name     string            `json:"name"`
	AreaHa   float64           `json:"area_ha"`
	Subzones []SubzoneGeometry `json:"subzones"`
}

// SubzoneGeometry is a subzone's area within a SiteGeometryVersion.
type SubzoneGeometry struct {
	SubzoneID string  `json:"subzone_id"`
	Name      string  `json:"name"`
	AreaHa    float64 `json:"area_ha"`
}

// Point is a longitude/latitude pair.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// MonitoringPlot is a square sampling plot. A nil PermanentIndex marks a temporary plot.
type MonitoringPlot struct {
	Base
	SiteID         string  `json:"site_id"`
	PlotNumber     int64   `json:"plot_number"`
	SizeMeters     int     `json:"size_meters"`
	Boundary       []Point `json:"boundary,omitempty"`
	PermanentIndex *int    `json:"permanent_index,omitempty"`
	IsAdHoc        bool    `json:"is_ad_hoc"`
}

// AreaSquareMeters returns the plot area.
func (p MonitoringPlot) AreaSquareMeters() float64 {
	return float64(p.SizeMeters) * float64(p.SizeMeters)
}

// PlotOverlap records that PlotID overlaps OverlapsPlotID, usually because the
// newer plot re-stratifies ground an older one covered.
type PlotOverlap struct {
	PlotID         string `json:"plot_id"`
	OverlapsPlotID string `json:"overlaps_plot_id"`
}

// Observation is one scheduled visit to a site.
type Observation struct {
	Base
	SiteID                string           `json:"site_id"`
	State                 ObservationState `json:"state"`
	Type                  ObservationType  `json:"type"`
	StartDate             time.Time        `json:"start_date"`
	EndDate               time.Time        `json:"end_date"`
	CompletedTime         *time.Time       `json:"completed_time,omitempty"`
	IsAdHoc               bool             `json:"is_ad_hoc"`
	SiteGeometryVersionID *string          `json:"site_geometry_version_id,omitempty"`
}

// ObservationPlot joins an observation to one of its plots. SubzoneID is the
// plot's subzone as of the observation and is nil for ad-hoc plots.
type ObservationPlot struct {
	ObservationID string                `json:"observation_id"`
	PlotID        string                `json:"plot_id"`
	SubzoneID     *string               `json:"subzone_id,omitempty"`
	Status        ObservationPlotStatus `json:"status"`
	IsPermanent   bool                  `json:"is_permanent"`
	CompletedTime *time.Time            `json:"completed_time,omitempty"`
	ClaimedBy     *string               `json:"claimed_by,omitempty"`
}

// Key returns the composite identity of the join record.
func (p ObservationPlot) Key() string {
	return p.ObservationID + "/" + p.PlotID
}

// SpeciesTotal is a persisted per observation, plot and species bucket total,
// maintained incrementally as plots are completed.
type SpeciesTotal struct {
	ObservationID  string    `json:"observation_id"`
	PlotID         string    `json:"plot_id"`
	SpeciesID      *string   `json:"species_id,omitempty"`
	SpeciesName    *string   `json:"species_name,omitempty"`
	Certainty      Certainty `json:"certainty"`
	TotalLive      int64     `json:"total_live"`
	TotalDead      int64     `json:"total_dead"`
	TotalExisting  int64     `json:"total_existing"`
	CumulativeDead int64     `json:"cumulative_dead"`
	PermanentLive  int64     `json:"permanent_live"`
}

// SpeciesKey identifies a species-or-certainty bucket.
type SpeciesKey struct {
	Certainty   Certainty `json:"certainty"`
	SpeciesID   string    `json:"species_id,omitempty"`
	SpeciesName string    `json:"species_name,omitempty"`
}

// Key returns the species bucket this total belongs to.
func (t SpeciesTotal) Key() SpeciesKey {
	k := SpeciesKey{Certainty: t.Certainty}
	switch t.Certainty {
	case CertaintyUnknown:
	case CertaintyOther:
		if t.SpeciesName != nil {
			k.SpeciesName = *t.SpeciesName
		}
	default:
		if t.SpeciesID != nil {
			k.SpeciesID = *t.SpeciesID
		}
		if t.SpeciesName != nil {
			k.SpeciesName = *t.SpeciesName
		}
	}
	return k
}

// RecordKey returns the composite identity used by stores.
func (t SpeciesTotal) RecordKey() string {
	k := t.Key()
	return t.ObservationID + "/" + t.PlotID + "/" + string(k.Certainty) + "/" + k.SpeciesID + "/" + k.SpeciesName
}

// BiomassDetails summarises a biomass measurement visit, keyed by observation.
type BiomassDetails struct {
	ObservationID          string  `json:"observation_id"`
	PlotID                 string  `json:"plot_id"`
	ForestType             string  `json:"forest_type"`
	HerbaceousCoverPercent int     `json:"herbaceous_cover_percent"`
	SmallTreeCountLow      int     `json:"small_tree_count_low"`
	SmallTreeCountHigh     int     `json:"small_tree_count_high"`
	SoilAssessment         string  `json:"soil_assessment,omitempty"`
	Description            *string `json:"description,omitempty"`
}

// Change describes a mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
