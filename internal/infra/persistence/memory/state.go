package memory

import (
	"plantingcore/pkg/domain"
	"slices"
	"time"
)

type memoryState struct {
	sites        map[string]domain.Site
	zones        map[string]domain.PlantingZone
	subzones     map[string]domain.PlantingSubzone
	geometries   map[string]domain.SiteGeometryVersion
	plots        map[string]domain.MonitoringPlot
	overlaps     map[string]domain.PlotOverlap
	observations map[string]domain.Observation
	obsPlots     map[string]domain.ObservationPlot
	totals       map[string]domain.SpeciesTotal
	biomass      map[string]domain.BiomassDetails
}

// Snapshot captures a point-in-time clone of the store state. Keys match the
// in-memory maps: record IDs, ObservationPlot.Key, SpeciesTotal.RecordKey,
// and observation IDs for biomass details.
type Snapshot struct {
	Sites            map[string]domain.Site                `json:"sites"`
	Zones            map[string]domain.PlantingZone        `json:"zones"`
	Subzones         map[string]domain.PlantingSubzone     `json:"subzones"`
	GeometryVersions map[string]domain.SiteGeometryVersion `json:"geometry_versions"`
	Plots            map[string]domain.MonitoringPlot      `json:"plots"`
	Overlaps         map[string]domain.PlotOverlap         `json:"overlaps"`
	Observations     map[string]domain.Observation         `json:"observations"`
	ObservationPlots map[string]domain.ObservationPlot     `json:"observation_plots"`
	SpeciesTotals    map[string]domain.SpeciesTotal        `json:"species_totals"`
	Biomass          map[string]domain.BiomassDetails      `json:"biomass"`
}

// BucketNames lists the snapshot buckets in dependency order. Durable stores
// persist one row per bucket.
var BucketNames = []string{
	"sites",
	"zones",
	"subzones",
	"geometry_versions",
	"plots",
	"overlaps",
	"observations",
	"observation_plots",
	"species_totals",
	"biomass",
}

// Buckets returns pointers to each snapshot map keyed by bucket name, for
// encoding into and decoding out of durable storage.
func (s *Snapshot) Buckets() map[string]any {
	return map[string]any{
		"sites":             &s.Sites,
		"zones":             &s.Zones,
		"subzones":          &s.Subzones,
		"geometry_versions": &s.GeometryVersions,
		"plots":             &s.Plots,
		"overlaps":          &s.Overlaps,
		"observations":      &s.Observations,
		"observation_plots": &s.ObservationPlots,
		"species_totals":    &s.SpeciesTotals,
		"biomass":           &s.Biomass,
	}
}

func newMemoryState() memoryState {
	return memoryState{
		sites:        make(map[string]domain.Site),
		zones:        make(map[string]domain.PlantingZone),
		subzones:     make(map[string]domain.PlantingSubzone),
		geometries:   make(map[string]domain.SiteGeometryVersion),
		plots:        make(map[string]domain.MonitoringPlot),
		overlaps:     make(map[string]domain.PlotOverlap),
		observations: make(map[string]domain.Observation),
		obsPlots:     make(map[string]domain.ObservationPlot),
		totals:       make(map[string]domain.SpeciesTotal),
		biomass:      make(map[string]domain.BiomassDetails),
	}
}

func cloneMap[V any](in map[string]V, cloneFn func(V) V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = cloneFn(v)
	}
	return out
}

func identity[V any](v V) V { return v }

func (s memoryState) clone() memoryState {
	return memoryState{
		sites:        cloneMap(s.sites, cloneSite),
		zones:        cloneMap(s.zones, cloneZone),
		subzones:     cloneMap(s.subzones, cloneSubzone),
		geometries:   cloneMap(s.geometries, cloneGeometry),
		plots:        cloneMap(s.plots, clonePlot),
		overlaps:     cloneMap(s.overlaps, identity[domain.PlotOverlap]),
		observations: cloneMap(s.observations, cloneObservation),
		obsPlots:     cloneMap(s.obsPlots, cloneObservationPlot),
		totals:       cloneMap(s.totals, cloneSpeciesTotal),
		biomass:      cloneMap(s.biomass, cloneBiomass),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	c := state.clone()
	return Snapshot{
		Sites:            c.sites,
		Zones:            c.zones,
		Subzones:         c.subzones,
		GeometryVersions: c.geometries,
		Plots:            c.plots,
		Overlaps:         c.overlaps,
		Observations:     c.observations,
		ObservationPlots: c.obsPlots,
		SpeciesTotals:    c.totals,
		Biomass:          c.biomass,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	return memoryState{
		sites:        cloneMap(s.Sites, cloneSite),
		zones:        cloneMap(s.Zones, cloneZone),
		subzones:     cloneMap(s.Subzones, cloneSubzone),
		geometries:   cloneMap(s.GeometryVersions, cloneGeometry),
		plots:        cloneMap(s.Plots, clonePlot),
		overlaps:     cloneMap(s.Overlaps, identity[domain.PlotOverlap]),
		observations: cloneMap(s.Observations, cloneObservation),
		obsPlots:     cloneMap(s.ObservationPlots, cloneObservationPlot),
		totals:       cloneMap(s.SpeciesTotals, cloneSpeciesTotal),
		biomass:      cloneMap(s.Biomass, cloneBiomass),
	}
}

// migrateSnapshot initialises nil buckets and drops records whose parents are
// missing, so an imported snapshot never yields dangling references.
func migrateSnapshot(s Snapshot) Snapshot {
	if s.Sites == nil {
		s.Sites = map[string]domain.Site{}
	}
	if s.Zones == nil {
		s.Zones = map[string]domain.PlantingZone{}
	}
	if s.Subzones == nil {
		s.Subzones = map[string]domain.PlantingSubzone{}
	}
	if s.GeometryVersions == nil {
		s.GeometryVersions = map[string]domain.SiteGeometryVersion{}
	}
	if s.Plots == nil {
		s.Plots = map[string]domain.MonitoringPlot{}
	}
	if s.Overlaps == nil {
		s.Overlaps = map[string]domain.PlotOverlap{}
	}
	if s.Observations == nil {
		s.Observations = map[string]domain.Observation{}
	}
	if s.ObservationPlots == nil {
		s.ObservationPlots = map[string]domain.ObservationPlot{}
	}
	if s.SpeciesTotals == nil {
		s.SpeciesTotals = map[string]domain.SpeciesTotal{}
	}
	if s.Biomass == nil {
		s.Biomass = map[string]domain.BiomassDetails{}
	}

	for id, z := range s.Zones {
		if _, ok := s.Sites[z.SiteID]; !ok {
			delete(s.Zones, id)
		}
	}
	for id, sz := range s.Subzones {
		if _, ok := s.Zones[sz.ZoneID]; !ok {
			delete(s.Subzones, id)
		}
	}
	for id, g := range s.GeometryVersions {
		if _, ok := s.Sites[g.SiteID]; !ok {
			delete(s.GeometryVersions, id)
		}
	}
	for id, p := range s.Plots {
		if _, ok := s.Sites[p.SiteID]; !ok {
			delete(s.Plots, id)
		}
	}
	for key, o := range s.Overlaps {
		_, a := s.Plots[o.PlotID]
		_, b := s.Plots[o.OverlapsPlotID]
		if !a || !b {
			delete(s.Overlaps, key)
		}
	}
	for id, o := range s.Observations {
		if _, ok := s.Sites[o.SiteID]; !ok {
			delete(s.Observations, id)
		}
	}
	for key, op := range s.ObservationPlots {
		_, obs := s.Observations[op.ObservationID]
		_, plot := s.Plots[op.PlotID]
		if !obs || !plot {
			delete(s.ObservationPlots, key)
		}
	}
	for key, t := range s.SpeciesTotals {
		if _, ok := s.ObservationPlots[t.ObservationID+"/"+t.PlotID]; !ok {
			delete(s.SpeciesTotals, key)
		}
	}
	for key, b := range s.Biomass {
		if _, ok := s.Observations[b.ObservationID]; !ok {
			delete(s.Biomass, key)
		}
	}
	return s
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(t *time.Time) *time.Time { return clonePtr(t) }

func cloneSite(s domain.Site) domain.Site {
	s.AreaHa = clonePtr(s.AreaHa)
	return s
}

func cloneZone(z domain.PlantingZone) domain.PlantingZone {
	z.AreaHa = clonePtr(z.AreaHa)
	return z
}

func cloneSubzone(s domain.PlantingSubzone) domain.PlantingSubzone {
	s.AreaHa = clonePtr(s.AreaHa)
	s.PlantingCompletedTime = cloneTime(s.PlantingCompletedTime)
	return s
}

func cloneGeometry(g domain.SiteGeometryVersion) domain.SiteGeometryVersion {
	zones := make([]domain.ZoneGeometry, len(g.Zones))
	for i, z := range g.Zones {
		z.Subzones = slices.Clone(z.Subzones)
		zones[i] = z
	}
	g.Zones = zones
	return g
}

func clonePlot(p domain.MonitoringPlot) domain.MonitoringPlot {
	p.Boundary = slices.Clone(p.Boundary)
	p.PermanentIndex = clonePtr(p.PermanentIndex)
	return p
}

func cloneObservation(o domain.Observation) domain.Observation {
	o.CompletedTime = cloneTime(o.CompletedTime)
	o.SiteGeometryVersionID = clonePtr(o.SiteGeometryVersionID)
	return o
}

func cloneObservationPlot(p domain.ObservationPlot) domain.ObservationPlot {
	p.SubzoneID = clonePtr(p.SubzoneID)
	p.CompletedTime = cloneTime(p.CompletedTime)
	p.ClaimedBy = clonePtr(p.ClaimedBy)
	return p
}

func cloneSpeciesTotal(t domain.SpeciesTotal) domain.SpeciesTotal {
	t.SpeciesID = clonePtr(t.SpeciesID)
	t.SpeciesName = clonePtr(t.SpeciesName)
	return t
}

func cloneBiomass(b domain.BiomassDetails) domain.BiomassDetails {
	b.Description = clonePtr(b.Description)
	return b
}
