package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/lanftp/indexer/internal/catalog"
	"github.com/lanftp/indexer/internal/ipset"
	"github.com/lanftp/indexer/internal/probe"
)

func newTestRunner(store catalog.Store) *Runner {
	cfg := DefaultConfig()
	cfg.Timeout = 100 * time.Millisecond
	addr, _ := ipset.ParseAddress("10.0.0.1")
	set := ipset.NewSet(ipset.NewRange(addr, addr))
	return NewRunner(cfg, set, store, nil)
}

func TestApplyProbeResultCreatesUnknownOnlineServer(t *testing.T) {
	store := catalog.NewMemoryStore(0)
	r := newTestRunner(store)

	err := r.applyProbeResult(context.Background(), probeResult("10.0.0.1", true))
	if err != nil {
		t.Fatalf("applyProbeResult: %v", err)
	}

	rec, err := store.GetServer(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("GetServer: %v", err)
	}
	if !rec.Online {
		t.Error("expected newly discovered server to be online")
	}
}

func TestApplyProbeResultIgnoresUnknownOffline(t *testing.T) {
	store := catalog.NewMemoryStore(0)
	r := newTestRunner(store)

	if err := r.applyProbeResult(context.Background(), probeResult("10.0.0.2", false)); err != nil {
		t.Fatalf("applyProbeResult: %v", err)
	}

	if _, err := store.GetServer(context.Background(), "10.0.0.2"); err != catalog.ErrNotFound {
		t.Errorf("expected no record to be created, got err=%v", err)
	}
}

func TestApplyProbeResultTransitionsKnownServerOffline(t *testing.T) {
	store := catalog.NewMemoryStore(0)
	store.InsertServerIfAbsent(context.Background(), &catalog.ServerRecord{
		Address: "10.0.0.3", Online: true, LastOnline: time.Now(),
	})
	r := newTestRunner(store)

	if err := r.applyProbeResult(context.Background(), probeResult("10.0.0.3", false)); err != nil {
		t.Fatalf("applyProbeResult: %v", err)
	}

	rec, err := store.GetServer(context.Background(), "10.0.0.3")
	if err != nil {
		t.Fatalf("GetServer: %v", err)
	}
	if rec.Online {
		t.Error("expected known online server to transition offline")
	}
}

func TestPruneDeletesStaleServers(t *testing.T) {
	store := catalog.NewMemoryStore(0)
	old := time.Now().Add(-10 * 24 * time.Hour)
	store.InsertServerIfAbsent(context.Background(), &catalog.ServerRecord{
		Address: "10.0.0.4", LastOnline: old,
	})
	store.InsertServerIfAbsent(context.Background(), &catalog.ServerRecord{
		Address: "10.0.0.5", LastOnline: time.Now(),
	})

	r := newTestRunner(store)
	r.cfg.PruneFTPTime = 24 * time.Hour

	deleted, err := r.prune(context.Background())
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deletion, got %d", deleted)
	}
	if _, err := store.GetServer(context.Background(), "10.0.0.5"); err != nil {
		t.Errorf("expected fresh server to survive, got %v", err)
	}
}

func TestScanPersistsLastScannedIP(t *testing.T) {
	store := catalog.NewMemoryStore(0)
	r := newTestRunner(store)
	r.cfg.ScanCount = 1

	if err := r.scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	val, found, err := store.GetParam(context.Background(), catalog.ParamLastScannedIP)
	if err != nil {
		t.Fatalf("GetParam: %v", err)
	}
	if !found {
		t.Fatal("expected last_scanned_ip to be persisted")
	}
	if val != "10.0.0.1" {
		t.Errorf("unexpected last_scanned_ip: %q", val)
	}
}

func probeResult(address string, online bool) probe.Result {
	return probe.Result{Address: address, Online: online}
}
