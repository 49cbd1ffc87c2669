// Package scheduler drives the indexer's time-based behavior (C7): a
// resumable range scan, a full liveness sweep, stale-server pruning, and an
// indexing pass, run in order on every Tick. Run wraps Tick in the
// teacher's ticker-loop idiom for the daemon ("cron") mode.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lanftp/indexer/internal/catalog"
	"github.com/lanftp/indexer/internal/dnsname"
	"github.com/lanftp/indexer/internal/ftpclient"
	"github.com/lanftp/indexer/internal/ipset"
	"github.com/lanftp/indexer/internal/logging"
	"github.com/lanftp/indexer/internal/probe"
	"github.com/lanftp/indexer/internal/walker"
)

// Config holds the timing knobs from INDEXER_SETTINGS (§6) that the
// scheduler itself consults.
type Config struct {
	ScanDelay    time.Duration
	IndexDelay   time.Duration
	ScanCount    int
	IndexCount   int
	PruneFTPTime time.Duration
	Timeout      time.Duration
	PoolSize     int
}

// DefaultConfig returns the spec-mandated timing defaults.
func DefaultConfig() Config {
	return Config{
		ScanDelay:    1800 * time.Second,
		IndexDelay:   7200 * time.Second,
		ScanCount:    200,
		IndexCount:   10,
		PruneFTPTime: 604800 * time.Second,
		Timeout:      2 * time.Second,
		PoolSize:     64,
	}
}

// Runner owns the scannable address space, the catalog store, and the
// collaborators (prober, resolver, reconciler) that each tick step needs.
type Runner struct {
	cfg          Config
	addresses    *ipset.Set
	store        catalog.Store
	prober       *probe.Prober
	resolver     *dnsname.Resolver
	reconciler   *catalog.Reconciler
	maxWalkDepth int
}

// NewRunner builds a Runner.
func NewRunner(cfg Config, addresses *ipset.Set, store catalog.Store, resolver *dnsname.Resolver) *Runner {
	return &Runner{
		cfg:          cfg,
		addresses:    addresses,
		store:        store,
		prober:       probe.NewProber(cfg.Timeout, 21),
		resolver:     resolver,
		reconciler:   catalog.NewReconciler(store, catalog.MaxFiles),
		maxWalkDepth: walker.MaxDepth,
	}
}

// Tick performs the four ordered steps of one scheduling cycle (§4.7).
func (r *Runner) Tick(ctx context.Context) error {
	if err := r.scan(ctx); err != nil {
		logging.Error("range scan failed", logging.Err(err))
	}

	if err := r.Sweep(ctx); err != nil {
		logging.Error("liveness sweep failed", logging.Err(err))
	}

	pruned, err := r.prune(ctx)
	if err != nil {
		logging.Error("prune failed", logging.Err(err))
	} else if pruned > 0 {
		logging.Info("pruned stale servers", logging.Count("pruned", pruned))
	}

	if err := r.index(ctx); err != nil {
		logging.Error("indexing pass failed", logging.Err(err))
	}

	return nil
}

// Run ticks every period until ctx is cancelled, mirroring the daemon's
// ticker-loop idiom.
func (r *Runner) Run(ctx context.Context, period time.Duration) error {
	if err := r.Tick(ctx); err != nil {
		logging.Error("initial tick failed", logging.Err(err))
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil {
				logging.Error("tick failed", logging.Err(err))
			}
		}
	}
}

// scan resumes from the persisted last_scanned_ip, emits up to ScanCount
// addresses from the cyclic iterator, probes them concurrently, and
// persists the most-recently emitted address when done.
func (r *Runner) scan(ctx context.Context) error {
	if r.addresses.Empty() {
		return nil
	}

	start, ok := r.addresses.First()
	if raw, found, err := r.store.GetParam(ctx, catalog.ParamLastScannedIP); err == nil && found {
		if addr, err := ipset.ParseAddress(raw); err == nil && r.addresses.Contains(addr) {
			start = addr
			ok = true
		}
	}
	if !ok {
		return nil
	}

	next := r.addresses.LoopFrom(start)
	first, _ := r.addresses.First()

	addrs := make([]string, 0, r.cfg.ScanCount)
	last := start

	for i := 0; i < r.cfg.ScanCount; i++ {
		addr, _ := next()

		if i > 0 && addr == first {
			if mayContinue, err := r.sweepDelayElapsed(ctx); err != nil {
				logging.Error("checking scan delay failed", logging.Err(err))
			} else if !mayContinue {
				logging.Info("scan delay not yet elapsed, stopping emission for this tick")
				break
			}
		}

		addrs = append(addrs, addr.String())
		last = addr
	}

	if len(addrs) > 0 {
		results := probe.ProbeAll(ctx, r.prober, addrs, r.cfg.PoolSize)
		for _, res := range results {
			if err := r.applyProbeResult(ctx, res); err != nil {
				logging.Error("applying probe result failed", logging.Server(res.Address), logging.Err(err))
			}
		}
	}

	if err := r.store.SetParam(ctx, catalog.ParamLastScannedIP, last.String()); err != nil {
		return fmt.Errorf("scheduler: persisting last_scanned_ip: %w", err)
	}
	return nil
}

// ScanRange probes every address in [first, last] once, applying the
// probe-update protocol to each result. Used by the `scan <first> [last]`
// CLI verb for an ad-hoc range scan outside the resumable tick cycle; unlike
// scan, it does not consult or persist last_scanned_ip.
func (r *Runner) ScanRange(ctx context.Context, first, last ipset.Address) error {
	rng := ipset.NewRange(first, last)
	size := rng.Len()
	if size == 0 {
		return nil
	}

	addrs := make([]string, 0, size)
	addr := first
	for {
		addrs = append(addrs, addr.String())
		if addr == last {
			break
		}
		addr = addr.Next()
	}

	results := probe.ProbeAll(ctx, r.prober, addrs, r.cfg.PoolSize)
	for _, res := range results {
		if err := r.applyProbeResult(ctx, res); err != nil {
			logging.Error("applying probe result failed", logging.Server(res.Address), logging.Err(err))
		}
	}
	return nil
}

// sweepDelayElapsed checks last_scan_first_ip against ScanDelay, updating it
// to now when enough time has elapsed. Returns whether scanning may
// continue emitting for this tick.
func (r *Runner) sweepDelayElapsed(ctx context.Context) (bool, error) {
	now := time.Now()

	raw, found, err := r.store.GetParam(ctx, catalog.ParamLastScanFirstIP)
	if err != nil {
		return false, err
	}

	if found {
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			last := time.Unix(sec, 0)
			if now.Sub(last) < r.cfg.ScanDelay {
				return false, nil
			}
		}
	}

	if err := r.store.SetParam(ctx, catalog.ParamLastScanFirstIP, strconv.FormatInt(now.Unix(), 10)); err != nil {
		return false, err
	}
	return true, nil
}

// Sweep concurrently probes every known ServerRecord, applying the
// probe-update protocol (§4.7) to each result.
func (r *Runner) Sweep(ctx context.Context) error {
	servers, err := r.store.ListServers(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: listing servers: %w", err)
	}
	if len(servers) == 0 {
		return nil
	}

	addrs := make([]string, len(servers))
	for i, s := range servers {
		addrs[i] = s.Address
	}

	results := probe.ProbeAll(ctx, r.prober, addrs, r.cfg.PoolSize)
	for _, res := range results {
		if err := r.applyProbeResult(ctx, res); err != nil {
			logging.Error("applying probe result failed", logging.Server(res.Address), logging.Err(err))
		}
	}
	return nil
}

// applyProbeResult implements the probe-update protocol shared by scan and
// sweep (§4.7).
func (r *Runner) applyProbeResult(ctx context.Context, res probe.Result) error {
	existing, err := r.store.GetServer(ctx, res.Address)
	known := err == nil
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return err
	}

	if !res.Online {
		if !known {
			logging.Debug("probe offline for unknown address, ignoring", logging.Server(res.Address))
			return nil
		}
		if existing.Online {
			logging.Warn("server went offline", logging.Server(res.Address))
			existing.Online = false
			return r.store.UpdateServer(ctx, existing)
		}
		logging.Debug("server still offline", logging.Server(res.Address))
		return nil
	}

	now := time.Now()
	if known {
		existing.Online = true
		existing.LastOnline = now
		return r.store.UpdateServer(ctx, existing)
	}

	name := res.Address
	if r.resolver != nil {
		name = r.resolver.Name(ctx, res.Address)
	}
	record := &catalog.ServerRecord{
		Address:    res.Address,
		Name:       name,
		Online:     true,
		LastOnline: now,
	}
	_, err = r.store.InsertServerIfAbsent(ctx, record)
	return err
}

// CheckStatus probes exactly the given addresses and applies the same
// probe-update protocol as Sweep, without touching scan or index state.
// Backs the `checkstatus <addr>…` CLI verb; `checkstatus --all` is served by
// Sweep directly, since its candidate set is already "every known server".
func (r *Runner) CheckStatus(ctx context.Context, addrs []string) error {
	if len(addrs) == 0 {
		return nil
	}
	results := probe.ProbeAll(ctx, r.prober, addrs, r.cfg.PoolSize)
	for _, res := range results {
		if err := r.applyProbeResult(ctx, res); err != nil {
			logging.Error("applying probe result failed", logging.Server(res.Address), logging.Err(err))
		}
	}
	return nil
}

// prune deletes every ServerRecord whose LastOnline predates PruneFTPTime.
func (r *Runner) prune(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-r.cfg.PruneFTPTime)
	return r.store.DeleteServersOlderThan(ctx, cutoff)
}

// index selects up to IndexCount due servers and runs the index pipeline
// against each in turn.
func (r *Runner) index(ctx context.Context) error {
	candidates, err := r.store.ListServersByLastIndexedAsc(ctx, r.cfg.IndexCount)
	if err != nil {
		return fmt.Errorf("scheduler: listing index candidates: %w", err)
	}

	cutoff := time.Now().Add(-r.cfg.IndexDelay)
	for _, server := range candidates {
		if server.LastIndexed != nil && server.LastIndexed.After(cutoff) {
			continue
		}
		if err := r.IndexOne(ctx, server.Address); err != nil {
			logging.Error("indexing server failed", logging.Server(server.Address), logging.Err(err))
		}
	}
	return nil
}

// IndexOne runs the full index pipeline for a single address: dial, login,
// walk, reconcile. Exposed directly for the `index <address>` CLI verb.
func (r *Runner) IndexOne(ctx context.Context, address string) error {
	return r.reconciler.IndexServer(ctx, address, func(ctx context.Context) (<-chan walker.Entry, <-chan error) {
		client, err := ftpclient.Dial(ctx, address, 21, r.cfg.Timeout)
		if err != nil {
			return failedWalk(err)
		}

		if err := client.Login(); err != nil {
			client.Close()
			return failedWalk(err)
		}

		entries, errc := walker.Walk(ctx, client, r.maxWalkDepth)
		return closeClientWhenDrained(ctx, client, entries, errc)
	})
}

// failedWalk returns a pair of already-closed channels carrying a single
// terminal error, for the connection-layer failures that happen before a
// walk can start.
func failedWalk(err error) (<-chan walker.Entry, <-chan error) {
	entries := make(chan walker.Entry)
	close(entries)
	errc := make(chan error, 1)
	errc <- err
	close(errc)
	return entries, errc
}

// closeClientWhenDrained relays entries and errc through pass-through
// channels, closing client only once the underlying walk has finished, so
// the control connection stays open for the whole traversal.
//
// ctx is the same context the walk itself was started with. If the
// consumer (Reconcile) stops reading before the walk is done, e.g. on the
// MAX_FILES abort, ctx is cancelled by the caller; the select below is what
// lets this goroutine notice that and stop forwarding instead of blocking
// forever on outEntries, so it can drain the walker's remaining output and
// reach the deferred client.Close().
func closeClientWhenDrained(ctx context.Context, client *ftpclient.Client, entries <-chan walker.Entry, errc <-chan error) (<-chan walker.Entry, <-chan error) {
	outEntries := make(chan walker.Entry)
	outErrc := make(chan error, 1)

	go func() {
		defer close(outEntries)
		defer close(outErrc)
		defer client.Close()

		for e := range entries {
			select {
			case outEntries <- e:
			case <-ctx.Done():
				for range entries {
				}
				<-errc
				return
			}
		}
		if err := <-errc; err != nil {
			outErrc <- err
		}
	}()

	return outEntries, outErrc
}
