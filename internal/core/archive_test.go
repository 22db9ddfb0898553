package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"plantingcore/internal/blob"
	"plantingcore/pkg/domain"
)

func TestArchiveSiteHistoryWritesBlobs(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	fixed := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	logger := &captureLogger{}
	svc := NewService(seedWorld(t, nil), WithLogger(logger), WithClock(ClockFunc(func() time.Time { return fixed })))

	report, err := NewArchiver(svc, blobs, WithArchiveConcurrency(2)).ArchiveSiteHistory(ctx, "site-1", 0)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	want := []string{"sites/site-1/history.json", "sites/site-1/rollups/0.json"}
	if len(report.Keys) != len(want) || report.Keys[0] != want[0] || report.Keys[1] != want[1] {
		t.Fatalf("unexpected keys %v", report.Keys)
	}
	if !report.ExportedAt.Equal(fixed) || len(report.Removed) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	info, rc, err := blobs.Get(ctx, HistoryKey("site-1"))
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	defer rc.Close()
	if info.ContentType != "application/json" || info.Metadata["site_id"] != "site-1" || info.Metadata["exported_at"] != "2024-06-01T12:00:00Z" {
		t.Fatalf("unexpected blob info %+v", info)
	}
	raw, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	var rollups []domain.SiteRollup
	if err := json.Unmarshal(raw, &rollups); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(rollups) != 1 || rollups[0].LatestObservationID != "obs-1" || rollups[0].TotalLive != 14 {
		t.Fatalf("unexpected archived history %+v", rollups)
	}
	if logger.count("info") != 1 {
		t.Fatalf("expected archive info log, got %+v", logger.entries)
	}
}

func TestArchiveSiteHistoryPrunesStaleRollups(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	for _, key := range []string{RollupKey("site-1", 3), RollupKey("site-1", 7), RollupKey("site-2", 1)} {
		if _, err := blobs.Put(ctx, key, bytes.NewReader([]byte("{}")), blob.PutOptions{}); err != nil {
			t.Fatalf("seed blob %s: %v", key, err)
		}
	}
	svc := NewService(seedWorld(t, nil))
	report, err := NewArchiver(svc, blobs).ArchiveSiteHistory(ctx, "site-1", 0)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(report.Removed) != 2 || report.Removed[0] != RollupKey("site-1", 3) || report.Removed[1] != RollupKey("site-1", 7) {
		t.Fatalf("unexpected removed keys %v", report.Removed)
	}
	if _, _, err := blobs.Get(ctx, RollupKey("site-1", 3)); !errors.Is(err, blob.ErrNotExist) {
		t.Fatalf("expected stale rollup to be gone, got %v", err)
	}
	if _, rc, err := blobs.Get(ctx, RollupKey("site-2", 1)); err != nil {
		t.Fatalf("other sites must be untouched, got %v", err)
	} else {
		rc.Close()
	}
}

func TestLimitedArchiveKeepsDeeperRollups(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	deeper := RollupKey("site-1", 3)
	if _, err := blobs.Put(ctx, deeper, bytes.NewReader([]byte("{}")), blob.PutOptions{}); err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	report, err := NewArchiver(NewService(seedWorld(t, nil)), blobs).ArchiveSiteHistory(ctx, "site-1", 1)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(report.Removed) != 0 {
		t.Fatalf("limited export removed %v", report.Removed)
	}
	_, rc, err := blobs.Get(ctx, deeper)
	if err != nil {
		t.Fatalf("expected deeper rollup to survive, got %v", err)
	}
	rc.Close()
}

func TestArchiveSiteHistoryDeniedWritesNothing(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	metrics := &captureMetricsRecorder{}
	svc := NewService(seedWorld(t, nil), WithMetricsRecorder(metrics), WithAuthorizer(AuthorizerFunc(func(context.Context, domain.EntityType, string) bool {
		return false
	})))
	if _, err := NewArchiver(svc, blobs).ArchiveSiteHistory(ctx, "site-1", 0); !errors.Is(err, domain.ErrNotFoundKind) {
		t.Fatalf("expected denied site to be not found, got %v", err)
	}
	listed, err := blobs.List(ctx, "")
	if err != nil || len(listed) != 0 {
		t.Fatalf("expected no blobs, got %v %v", listed, err)
	}
	if !metrics.has(opArchiveSiteHistory, false) {
		t.Fatalf("expected failed archive metric, got %+v", metrics.calls)
	}
}

func TestArchiveKeys(t *testing.T) {
	if got := HistoryKey("s"); got != "sites/s/history.json" {
		t.Fatalf("history key %s", got)
	}
	if got := RollupKey("s", 12); got != "sites/s/rollups/12.json" {
		t.Fatalf("rollup key %s", got)
	}
}
