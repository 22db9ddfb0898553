package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"plantingcore/internal/blob/core"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	md := map[string]string{"site": "site-1"}
	info, err := s.Put(ctx, "sites/site-1/history.json", bytes.NewBufferString(`[]`), core.PutOptions{ContentType: "application/json", Metadata: md})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	md["site"] = "mutated"
	if info.Size != 2 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}

	got, rc, err := s.Get(ctx, "sites/site-1/history.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "[]" || got.Metadata["site"] != "site-1" {
		t.Fatalf("unexpected blob %q %+v", body, got)
	}
}

func TestMemoryStorePutReplaces(t *testing.T) {
	ctx := context.Background()
	s := New()
	first, err := s.Put(ctx, "k", bytes.NewBufferString("one"), core.PutOptions{})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	second, err := s.Put(ctx, "k", bytes.NewBufferString("three"), core.PutOptions{})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if first.ETag == second.ETag || second.Size != 5 {
		t.Fatalf("expected replaced content, got %+v then %+v", first, second)
	}
}

func TestMemoryStoreListDeleteAndMissing(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, k := range []string{"sites/b/history.json", "sites/a/history.json", "other"} {
		if _, err := s.Put(ctx, k, bytes.NewBufferString("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	list, err := s.List(ctx, "sites/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "sites/a/history.json" {
		t.Fatalf("unexpected list %+v", list)
	}
	if ok, _ := s.Delete(ctx, "other"); !ok {
		t.Fatalf("expected delete to report existing blob")
	}
	if ok, _ := s.Delete(ctx, "other"); ok {
		t.Fatalf("expected second delete to report missing blob")
	}
	if _, _, err := s.Get(ctx, "other"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryStoreRejectsInvalidKeys(t *testing.T) {
	s := New()
	for _, key := range []string{"", "/abs", "a/../b"} {
		if _, err := s.Put(context.Background(), key, bytes.NewBuffer(nil), core.PutOptions{}); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}
