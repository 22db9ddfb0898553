// Package core is the read facade over the statistics engine. Every operation
// checks the caller's read permission, reads one consistent snapshot from the
// persistent store and assembles typed result trees with internal/rollup.
package core

import (
	"context"
	"errors"
	"slices"
	"time"

	"plantingcore/internal/rollup"
	"plantingcore/pkg/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	opGetObservationResult = "get_observation_result"
	opListSiteObservations = "list_site_observation_results"
	opListOrgObservations  = "list_organization_observation_results"
	opGetObservationPlot   = "get_observation_plot_result"
	opSiteHistory          = "site_history"
	opLatestSiteRollup     = "latest_site_rollup"
	opGetBiomassDetails    = "get_biomass_details"
	opArchiveSiteHistory   = "archive_site_history"
)

// ListOptions filters observation listings. A zero Limit returns every match;
// empty States matches every state.
type ListOptions struct {
	Limit  int
	States []domain.ObservationState
}

func (o ListOptions) matches(obs domain.Observation) bool {
	return len(o.States) == 0 || slices.Contains(o.States, obs.State)
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	authz   Authorizer
	clock   Clock
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		authz:   AllowAll,
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
}

// WithLogger sets the structured logger.
func WithLogger(l Logger) ServiceOption {
	return func(o *serviceOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(m MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the span source.
func WithTracer(t Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithAuthorizer sets the read permission gate.
func WithAuthorizer(a Authorizer) ServiceOption {
	return func(o *serviceOptions) {
		if a != nil {
			o.authz = a
		}
	}
}

// WithClock overrides the time source used for export timestamps.
func WithClock(c Clock) ServiceOption {
	return func(o *serviceOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// Service computes observation results, site history and rollups. It holds no
// mutable state and is safe for concurrent use.
type Service struct {
	store     PersistentStore
	assembler rollup.Assembler
	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
	authz     Authorizer
	clock     Clock
}

// NewService constructs a service reading from store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		store:   store,
		logger:  o.logger,
		metrics: o.metrics,
		tracer:  o.tracer,
		authz:   o.authz,
		clock:   o.clock,
	}
}

// Store returns the underlying persistent store.
func (s *Service) Store() PersistentStore { return s.store }

// run wraps an operation with tracing, metrics and inconsistency logging.
func (s *Service) run(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
	err := fn(ctx)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if errors.Is(err, domain.ErrInconsistentDataKind) {
		args := []any{"operation", op, "error", err}
		for _, a := range attrs {
			args = append(args, string(a.Key), a.Value.Emit())
		}
		s.logger.Warn("inconsistent data", args...)
	}
	return err
}

func (s *Service) assemble(view TransactionView, obs domain.Observation) (ObservationResult, error) {
	return s.assembler.Assemble(rollup.LoadObservationInput(view, obs))
}

// GetObservationResult assembles the full result tree of one observation.
func (s *Service) GetObservationResult(ctx context.Context, observationID string) (ObservationResult, error) {
	var result ObservationResult
	err := s.run(ctx, opGetObservationResult, []attribute.KeyValue{attribute.String("observation.id", observationID)}, func(ctx context.Context) error {
		if err := s.authorize(ctx, domain.EntityObservation, observationID); err != nil {
			return err
		}
		return s.store.View(ctx, func(view TransactionView) error {
			obs, ok := view.FindObservation(observationID)
			if !ok {
				return domain.ErrNotFound{Entity: domain.EntityObservation, ID: observationID}
			}
			var err error
			result, err = s.assemble(view, obs)
			return err
		})
	})
	if err != nil {
		return ObservationResult{}, err
	}
	s.logger.Debug("observation result assembled", "observation_id", observationID, "site_id", result.SiteID, "zones", len(result.Zones))
	return result, nil
}

// ListSiteObservationResults assembles the results of a site's observations,
// newest first.
func (s *Service) ListSiteObservationResults(ctx context.Context, siteID string, opts ListOptions) ([]ObservationResult, error) {
	var results []ObservationResult
	err := s.run(ctx, opListSiteObservations, []attribute.KeyValue{attribute.String("site.id", siteID)}, func(ctx context.Context) error {
		if err := s.authorize(ctx, domain.EntitySite, siteID); err != nil {
			return err
		}
		return s.store.View(ctx, func(view TransactionView) error {
			if _, ok := view.FindSite(siteID); !ok {
				return domain.ErrNotFound{Entity: domain.EntitySite, ID: siteID}
			}
			var err error
			results, err = s.assembleListing(view, view.ListObservations(siteID), opts)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("site observations assembled", "site_id", siteID, "observations", len(results))
	return results, nil
}

// ListOrganizationObservationResults assembles the results of every
// observation on the organization's sites, newest first. An organization with
// no sites yields an empty listing.
func (s *Service) ListOrganizationObservationResults(ctx context.Context, organizationID string, opts ListOptions) ([]ObservationResult, error) {
	var results []ObservationResult
	err := s.run(ctx, opListOrgObservations, []attribute.KeyValue{attribute.String("organization.id", organizationID)}, func(ctx context.Context) error {
		if err := s.authorize(ctx, domain.EntityOrganization, organizationID); err != nil {
			return err
		}
		return s.store.View(ctx, func(view TransactionView) error {
			var observations []domain.Observation
			for _, site := range view.ListSites() {
				if site.OrganizationID == organizationID {
					observations = append(observations, view.ListObservations(site.ID)...)
				}
			}
			var err error
			results, err = s.assembleListing(view, observations, opts)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("organization observations assembled", "organization_id", organizationID, "observations", len(results))
	return results, nil
}

// assembleListing filters, orders newest first and truncates before
// assembling so only returned observations are computed.
func (s *Service) assembleListing(view TransactionView, observations []domain.Observation, opts ListOptions) ([]ObservationResult, error) {
	matched := make([]domain.Observation, 0, len(observations))
	for _, obs := range observations {
		if opts.matches(obs) {
			matched = append(matched, obs)
		}
	}
	slices.SortStableFunc(matched, func(a, b domain.Observation) int {
		return -compareObservationRecords(a, b)
	})
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	results := make([]ObservationResult, 0, len(matched))
	for _, obs := range matched {
		r, err := s.assemble(view, obs)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// compareObservationRecords mirrors rollup.CompareObservations on raw records.
func compareObservationRecords(a, b domain.Observation) int {
	return rollup.CompareObservations(
		domain.ObservationResult{ObservationID: a.ID, ObservationCompleted: a.CompletedTime, EndDate: a.EndDate},
		domain.ObservationResult{ObservationID: b.ID, ObservationCompleted: b.CompletedTime, EndDate: b.EndDate},
	)
}

// GetObservationPlotResult returns one plot's leaf result within an observation.
func (s *Service) GetObservationPlotResult(ctx context.Context, observationID, plotID string) (PlotResult, error) {
	var plot PlotResult
	attrs := []attribute.KeyValue{attribute.String("observation.id", observationID), attribute.String("plot.id", plotID)}
	err := s.run(ctx, opGetObservationPlot, attrs, func(ctx context.Context) error {
		if err := s.authorize(ctx, domain.EntityObservation, observationID); err != nil {
			return err
		}
		return s.store.View(ctx, func(view TransactionView) error {
			obs, ok := view.FindObservation(observationID)
			if !ok {
				return domain.ErrNotFound{Entity: domain.EntityObservation, ID: observationID}
			}
			result, err := s.assemble(view, obs)
			if err != nil {
				return err
			}
			found, ok := findPlot(result, plotID)
			if !ok {
				return domain.ErrNotFound{Entity: domain.EntityObservationPlot, ID: observationID + "/" + plotID}
			}
			plot = found
			return nil
		})
	})
	if err != nil {
		return PlotResult{}, err
	}
	return plot, nil
}

func findPlot(result ObservationResult, plotID string) (PlotResult, bool) {
	if result.AdHocPlot != nil && result.AdHocPlot.PlotID == plotID {
		return *result.AdHocPlot, true
	}
	for _, z := range result.Zones {
		for _, sz := range z.Subzones {
			for _, p := range sz.Plots {
				if p.PlotID == plotID {
					return p, true
				}
			}
		}
	}
	return PlotResult{}, false
}

// SiteHistory reconstructs the site's "as of" rollups, newest first. A
// positive limit caps how many depths are examined.
func (s *Service) SiteHistory(ctx context.Context, siteID string, limit int) ([]SiteRollup, error) {
	var rollups []SiteRollup
	err := s.run(ctx, opSiteHistory, []attribute.KeyValue{attribute.String("site.id", siteID), attribute.Int("history.limit", limit)}, func(ctx context.Context) error {
		if err := s.authorize(ctx, domain.EntitySite, siteID); err != nil {
			return err
		}
		var err error
		rollups, err = s.history(ctx, siteID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("site history reconstructed", "site_id", siteID, "depths", len(rollups))
	return rollups, nil
}

// LatestSiteRollup returns the newest rollup of the site, or nil when the
// site has no completed observation with completed plots.
func (s *Service) LatestSiteRollup(ctx context.Context, siteID string) (*SiteRollup, error) {
	var latest *SiteRollup
	err := s.run(ctx, opLatestSiteRollup, []attribute.KeyValue{attribute.String("site.id", siteID)}, func(ctx context.Context) error {
		if err := s.authorize(ctx, domain.EntitySite, siteID); err != nil {
			return err
		}
		rollups, err := s.history(ctx, siteID, 1)
		if err != nil {
			return err
		}
		if len(rollups) > 0 {
			latest = &rollups[0]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

func (s *Service) history(ctx context.Context, siteID string, limit int) ([]SiteRollup, error) {
	var rollups []SiteRollup
	err := s.store.View(ctx, func(view TransactionView) error {
		site, ok := view.FindSite(siteID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntitySite, ID: siteID}
		}
		var results []ObservationResult
		for _, obs := range view.ListObservations(siteID) {
			if obs.IsAdHoc || !obs.State.Terminal() {
				continue
			}
			r, err := s.assemble(view, obs)
			if err != nil {
				return err
			}
			results = append(results, r)
		}
		current := rollup.CurrentGeometry{
			Site:     site,
			Zones:    view.ListZones(siteID),
			Subzones: view.ListSubzones(siteID),
		}
		var err error
		rollups, err = rollup.Reconstruct(results, current, limit)
		return err
	})
	return rollups, err
}

// GetBiomassDetails returns the biomass summary of a biomass observation.
func (s *Service) GetBiomassDetails(ctx context.Context, observationID string) (BiomassDetails, error) {
	var details BiomassDetails
	err := s.run(ctx, opGetBiomassDetails, []attribute.KeyValue{attribute.String("observation.id", observationID)}, func(ctx context.Context) error {
		if err := s.authorize(ctx, domain.EntityObservation, observationID); err != nil {
			return err
		}
		return s.store.View(ctx, func(view TransactionView) error {
			obs, ok := view.FindObservation(observationID)
			if !ok {
				return domain.ErrNotFound{Entity: domain.EntityObservation, ID: observationID}
			}
			if obs.Type != domain.ObservationTypeBiomass {
				return domain.ErrInvalidState{ObservationID: obs.ID, Type: obs.Type, Want: domain.ObservationTypeBiomass}
			}
			d, ok := view.FindBiomassDetails(observationID)
			if !ok {
				return domain.ErrNotFound{Entity: domain.EntityBiomassDetails, ID: observationID}
			}
			details = d
			return nil
		})
	})
	return details, err
}
