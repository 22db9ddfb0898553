package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strconv"
	"time"

	"plantingcore/internal/blob"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	archiveContentType = "application/json"
	defaultArchiveJobs = 4
)

// Archiver exports reconstructed site history to a blob store. Each export
// writes sites/<site>/history.json plus one sites/<site>/rollups/<depth>.json
// per rollup, replacing earlier exports of the same site.
type Archiver struct {
	svc   *Service
	blobs blob.Store
	jobs  int
}

// ArchiveOption configures an Archiver.
type ArchiveOption func(*Archiver)

// WithArchiveConcurrency bounds the number of concurrent blob writes.
func WithArchiveConcurrency(n int) ArchiveOption {
	return func(a *Archiver) {
		if n > 0 {
			a.jobs = n
		}
	}
}

// NewArchiver binds a service to a blob store.
func NewArchiver(svc *Service, blobs blob.Store, opts ...ArchiveOption) *Archiver {
	a := &Archiver{svc: svc, blobs: blobs, jobs: defaultArchiveJobs}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ArchiveReport describes one completed export.
type ArchiveReport struct {
	SiteID     string    `json:"site_id"`
	ExportedAt time.Time `json:"exported_at"`
	Keys       []string  `json:"keys"`
	Removed    []string  `json:"removed,omitempty"`
}

// HistoryKey is the blob key of a site's full history export.
func HistoryKey(siteID string) string { return path.Join("sites", siteID, "history.json") }

// RollupKey is the blob key of one exported rollup.
func RollupKey(siteID string, depth int) string {
	return path.Join(rollupPrefix(siteID), strconv.Itoa(depth)+".json")
}

func rollupPrefix(siteID string) string { return path.Join("sites", siteID, "rollups") + "/" }

// ArchiveSiteHistory reconstructs the site's history and writes it out. A full
// export (limit <= 0) removes rollup blobs left over from a deeper earlier
// export; a limited one only overwrites the depths it writes.
func (a *Archiver) ArchiveSiteHistory(ctx context.Context, siteID string, limit int) (ArchiveReport, error) {
	var report ArchiveReport
	err := a.svc.run(ctx, opArchiveSiteHistory, []attribute.KeyValue{attribute.String("site.id", siteID)}, func(ctx context.Context) error {
		rollups, err := a.svc.SiteHistory(ctx, siteID, limit)
		if err != nil {
			return err
		}
		exportedAt := a.svc.clock.Now().UTC()
		md := map[string]string{"site_id": siteID, "exported_at": exportedAt.Format(time.RFC3339)}

		keys := make([]string, len(rollups)+1)
		keys[0] = HistoryKey(siteID)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.jobs)
		g.Go(func() error { return a.put(gctx, keys[0], rollups, md) })
		for i := range rollups {
			r := rollups[i]
			keys[i+1] = RollupKey(siteID, r.Depth)
			g.Go(func() error { return a.put(gctx, keys[i+1], r, md) })
		}
		if err := g.Wait(); err != nil {
			return err
		}

		var removed []string
		if limit <= 0 {
			if removed, err = a.pruneRollups(ctx, siteID, keys); err != nil {
				return err
			}
		}
		report = ArchiveReport{SiteID: siteID, ExportedAt: exportedAt, Keys: keys, Removed: removed}
		return nil
	})
	if err != nil {
		return ArchiveReport{}, err
	}
	a.svc.logger.Info("site history archived", "site_id", siteID, "blobs", len(report.Keys), "removed", len(report.Removed), "driver", string(a.blobs.Driver()))
	return report, nil
}

func (a *Archiver) put(ctx context.Context, key string, v any, md map[string]string) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if _, err := a.blobs.Put(ctx, key, bytes.NewReader(b), blob.PutOptions{ContentType: archiveContentType, Metadata: md}); err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}
	return nil
}

func (a *Archiver) pruneRollups(ctx context.Context, siteID string, keep []string) ([]string, error) {
	existing, err := a.blobs.List(ctx, rollupPrefix(siteID))
	if err != nil {
		return nil, fmt.Errorf("list archived rollups: %w", err)
	}
	var removed []string
	for _, info := range existing {
		if slices.Contains(keep, info.Key) {
			continue
		}
		if _, err := a.blobs.Delete(ctx, info.Key); err != nil {
			return removed, fmt.Errorf("remove stale rollup %s: %w", info.Key, err)
		}
		removed = append(removed, info.Key)
	}
	return removed, nil
}
