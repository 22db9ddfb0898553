package domain

import "time"

// SpeciesResult is one merged species-or-certainty bucket at some level of a result tree.
type SpeciesResult struct {
	SpeciesKey
	TotalLive      int64 `json:"total_live"`
	TotalDead      int64 `json:"total_dead"`
	TotalExisting  int64 `json:"total_existing"`
	CumulativeDead int64 `json:"cumulative_dead"`
	PermanentLive  int64 `json:"permanent_live"`
	TotalPlants    int64 `json:"total_plants"`
	MortalityRate  *int  `json:"mortality_rate,omitempty"`
}

// Identified reports whether the bucket names a species rather than the unknown bucket.
func (s SpeciesResult) Identified() bool {
	return s.Certainty != CertaintyUnknown
}

// LevelStats holds the statistics shared by subzone, zone, site and rollup levels.
type LevelStats struct {
	Species               []SpeciesResult `json:"species"`
	TotalLive             int64           `json:"total_live"`
	TotalDead             int64           `json:"total_dead"`
	TotalExisting         int64           `json:"total_existing"`
	CumulativeDead        int64           `json:"cumulative_dead"`
	PermanentLive         int64           `json:"permanent_live"`
	TotalPlants           int64           `json:"total_plants"`
	TotalSpecies          int             `json:"total_species"`
	MortalityRate         *int            `json:"mortality_rate,omitempty"`
	MortalityRateStdDev   *float64        `json:"mortality_rate_std_dev,omitempty"`
	PlantingDensity       float64         `json:"planting_density"`
	PlantingDensityStdDev *float64        `json:"planting_density_std_dev,omitempty"`
	EstimatedPlants       *int64          `json:"estimated_plants,omitempty"`
	PlantingCompleted     bool            `json:"planting_completed"`
	CompletedTime         *time.Time      `json:"completed_time,omitempty"`
	CompletedPlots        int             `json:"completed_plots"`
}

// PlotResult is the leaf of an observation result tree.
type PlotResult struct {
	PlotID           string                `json:"plot_id"`
	PlotNumber       int64                 `json:"plot_number"`
	SubzoneID        *string               `json:"subzone_id,omitempty"`
	SizeMeters       int                   `json:"size_meters"`
	Boundary         []Point               `json:"boundary,omitempty"`
	IsPermanent      bool                  `json:"is_permanent"`
	IsAdHoc          bool                  `json:"is_ad_hoc"`
	Status           ObservationPlotStatus `json:"status"`
	CompletedTime    *time.Time            `json:"completed_time,omitempty"`
	ClaimedBy        *string               `json:"claimed_by,omitempty"`
	Overlaps         []string              `json:"overlaps,omitempty"`
	OverlappedBy     []string              `json:"overlapped_by,omitempty"`
	Species          []SpeciesResult       `json:"species"`
	TotalLive        int64                 `json:"total_live"`
	TotalDead        int64                 `json:"total_dead"`
	TotalExisting    int64                 `json:"total_existing"`
	CumulativeDead   int64                 `json:"cumulative_dead"`
	PermanentLive    int64                 `json:"permanent_live"`
	TotalPlants      int64                 `json:"total_plants"`
	TotalSpecies     int                   `json:"total_species"`
	MortalityRate    *int                  `json:"mortality_rate,omitempty"`
	PlantingDensity  float64               `json:"planting_density"`
	AreaSquareMeters float64               `json:"area_square_meters"`
}

// Completed reports whether the plot's fieldwork finished in this observation.
func (p PlotResult) Completed() bool {
	return p.Status == PlotStatusCompleted
}

// SubzoneResult aggregates the plots of one subzone.
type SubzoneResult struct {
	SubzoneID string  `json:"subzone_id"`
	ZoneID    string  `json:"zone_id"`
	Name      string  `json:"name"`
	AreaHa    float64 `json:"area_ha"`
	LevelStats
	Plots []PlotResult `json:"plots"`
}

// ZoneResult aggregates the subzones of one zone.
type ZoneResult struct {
	ZoneID string  `json:"zone_id"`
	Name   string  `json:"name"`
	AreaHa float64 `json:"area_ha"`
	LevelStats
	Subzones []SubzoneResult `json:"subzones"`
}

// ObservationResult is the full result tree for one observation. Ad-hoc
// observations carry AdHocPlot and no zones.
type ObservationResult struct {
	ObservationID         string           `json:"observation_id"`
	SiteID                string           `json:"site_id"`
	State                 ObservationState `json:"state"`
	Type                  ObservationType  `json:"type"`
	IsAdHoc               bool             `json:"is_ad_hoc"`
	StartDate             time.Time        `json:"start_date"`
	EndDate               time.Time        `json:"end_date"`
	ObservationCompleted  *time.Time       `json:"observation_completed_time,omitempty"`
	SiteGeometryVersionID *string          `json:"site_geometry_version_id,omitempty"`
	AreaHa                float64          `json:"area_ha"`
	LevelStats
	Zones     []ZoneResult `json:"zones"`
	AdHocPlot *PlotResult  `json:"ad_hoc_plot,omitempty"`
}

// SiteRollup is the "as of" summary of a site after one of its observations.
type SiteRollup struct {
	SiteID              string   `json:"site_id"`
	AreaHa              float64  `json:"area_ha"`
	LatestObservationID string   `json:"latest_observation_id"`
	ObservationIDs      []string `json:"observation_ids"`
	Depth               int      `json:"depth"`
	LevelStats
	Zones []ZoneResult `json:"zones"`
}
