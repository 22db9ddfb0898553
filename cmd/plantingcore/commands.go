package main

import (
	"encoding/json"
	"fmt"
	"os"

	"plantingcore/internal/blob"
	"plantingcore/internal/core"
	"plantingcore/internal/infra/persistence/memory"
	"plantingcore/pkg/domain"

	"github.com/spf13/cobra"
)

func newObservationCmd(a *app) *cobra.Command {
	var plotID string
	cmd := &cobra.Command{
		Use:   "observation <observation-id>",
		Short: "Print the result tree of one observation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if plotID != "" {
				plot, err := a.svc.GetObservationPlotResult(cmd.Context(), args[0], plotID)
				if err != nil {
					return err
				}
				return a.printJSON(plot)
			}
			result, err := a.svc.GetObservationResult(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(result)
		},
	}
	cmd.Flags().StringVar(&plotID, "plot", "", "print only this plot's result")
	return cmd
}

type listFlags struct {
	limit  int
	states []string
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of observations (0 for all)")
	cmd.Flags().StringSliceVar(&f.states, "state", nil, "only observations in these states (upcoming, in_progress, completed, abandoned)")
}

func (f *listFlags) options() core.ListOptions {
	opts := core.ListOptions{Limit: f.limit}
	for _, s := range f.states {
		opts.States = append(opts.States, domain.ObservationState(s))
	}
	return opts
}

func newSiteCmd(a *app) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "site <site-id>",
		Short: "List observation results of a site, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.svc.ListSiteObservationResults(cmd.Context(), args[0], flags.options())
			if err != nil {
				return err
			}
			return a.printJSON(results)
		},
	}
	flags.register(cmd)
	return cmd
}

func newOrganizationCmd(a *app) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:     "organization <organization-id>",
		Aliases: []string{"org"},
		Short:   "List observation results across an organization's sites",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.svc.ListOrganizationObservationResults(cmd.Context(), args[0], flags.options())
			if err != nil {
				return err
			}
			return a.printJSON(results)
		},
	}
	flags.register(cmd)
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		latest bool
	)
	cmd := &cobra.Command{
		Use:   "history <site-id>",
		Short: "Reconstruct a site's rollup history, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if latest {
				rollup, err := a.svc.LatestSiteRollup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printJSON(rollup)
			}
			rollups, err := a.svc.SiteHistory(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return a.printJSON(rollups)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of rollups (0 for all)")
	cmd.Flags().BoolVar(&latest, "latest", false, "print only the current rollup")
	return cmd
}

func newBiomassCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "biomass <observation-id>",
		Short: "Print the biomass details of a biomass observation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := a.svc.GetBiomassDetails(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(details)
		},
	}
}

func newArchiveCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "archive <site-id>",
		Short: "Export a site's history to the configured blob store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blobs, err := blob.Open(cmd.Context(), a.cfg.Archive.Blob)
			if err != nil {
				return fmt.Errorf("open archive: %w", err)
			}
			archiver := core.NewArchiver(a.svc, blobs, core.WithArchiveConcurrency(a.cfg.Archive.Concurrency))
			report, err := archiver.ArchiveSiteHistory(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return a.printJSON(report)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of rollups to export (0 for all)")
	return cmd
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <snapshot.json>",
		Short: "Load a JSON snapshot into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			var snapshot memory.Snapshot
			if err := json.Unmarshal(raw, &snapshot); err != nil {
				return fmt.Errorf("decode snapshot %s: %w", args[0], err)
			}
			report, res, err := core.Seed(cmd.Context(), a.store, snapshot)
			if err != nil {
				return err
			}
			for _, v := range res.Violations {
				a.logger.Warn("seed rule violation", "rule", v.Rule, "severity", string(v.Severity), "entity", string(v.Entity), "id", v.EntityID, "message", v.Message)
			}
			return a.printJSON(report)
		},
	}
}
