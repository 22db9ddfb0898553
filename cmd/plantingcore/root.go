package main

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io"
	"log/slog"

	"plantingcore/internal/config"
	"plantingcore/internal/core"
	"plantingcore/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

// app carries the state shared by subcommands for one invocation.
type app struct {
	configPath string
	out        io.Writer
	errOut     io.Writer

	cfg       config.Config
	logger    *slog.Logger
	store     core.PersistentStore
	closer    io.Closer
	svc       *core.Service
	telemetry *telemetry.Provider
	registry  *prometheus.Registry
	expvar    *core.ExpvarMetricsRecorder
}

// execute runs one CLI invocation. Telemetry, metrics and the store are
// released whether or not the command succeeds.
func execute(args []string, out, errOut io.Writer) error {
	a := &app{out: out, errOut: errOut}
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.Execute()
	return errors.Join(err, a.close(context.Background()))
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "plantingcore",
		Short:         "Observation rollups and site statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (PLANTINGCORE_* environment variables override it)")

	root.AddCommand(
		newObservationCmd(a),
		newSiteCmd(a),
		newOrganizationCmd(a),
		newHistoryCmd(a),
		newBiomassCmd(a),
		newArchiveCmd(a),
		newSeedCmd(a),
	)
	return root
}

func (a *app) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger, err = newLogger(a.errOut, cfg.Log)
	if err != nil {
		return err
	}

	a.telemetry, err = telemetry.Init(ctx, telemetry.Config{Exporter: cfg.Trace.Exporter, ServiceName: cfg.Trace.ServiceName, Writer: a.errOut})
	if err != nil {
		return err
	}

	opts := []core.ServiceOption{
		core.WithLogger(a.logger),
		core.WithTracer(core.NewOTelTracer(a.telemetry.Tracer("plantingcore/core"))),
	}
	switch cfg.Metrics.Exporter {
	case config.MetricsPrometheus:
		a.registry = prometheus.NewRegistry()
		opts = append(opts, core.WithMetricsRecorder(core.NewPrometheusMetricsRecorder(a.registry)))
	case config.MetricsExpvar:
		a.expvar = core.NewExpvarMetricsRecorder("")
		opts = append(opts, core.WithMetricsRecorder(a.expvar))
	}

	a.store, a.closer, err = core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	a.svc = core.NewService(a.store, opts...)
	a.logger.Debug("store opened", "driver", string(cfg.Storage.Driver))
	return nil
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.writeMetrics(); err != nil {
		errs = append(errs, err)
	}
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}

// writeMetrics dumps the collected metrics to errOut once the command is done.
func (a *app) writeMetrics() error {
	switch {
	case a.registry != nil:
		families, err := a.registry.Gather()
		if err != nil {
			return fmt.Errorf("gather metrics: %w", err)
		}
		enc := expfmt.NewEncoder(a.errOut, expfmt.NewFormat(expfmt.TypeTextPlain))
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				return fmt.Errorf("encode metrics: %w", err)
			}
		}
	case a.expvar != nil:
		if v := expvar.Get(a.expvar.Name()); v != nil {
			fmt.Fprintln(a.errOut, v.String())
		}
	}
	return nil
}

func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
