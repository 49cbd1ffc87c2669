// Command indexer is the crawler/search-index engine's entry point (C15): a
// single binary dispatching to the scheduler's daemon loop or to one-shot
// maintenance verbs, following cmd/parser's flag-and-subcommand shape.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lanftp/indexer/internal/cache"
	"github.com/lanftp/indexer/internal/catalog"
	"github.com/lanftp/indexer/internal/config"
	"github.com/lanftp/indexer/internal/dnsname"
	"github.com/lanftp/indexer/internal/ipset"
	"github.com/lanftp/indexer/internal/logging"
	"github.com/lanftp/indexer/internal/scheduler"
	"github.com/lanftp/indexer/internal/version"
)

func main() {
	var (
		configPath  = flag.String("config", "config.yaml", "Path to configuration file")
		dbType      = flag.String("dbtype", "", "Database type: 'duckdb' or 'clickhouse' (overrides config)")
		dbPath      = flag.String("db", "", "Path to DuckDB file (overrides config)")
		chHost      = flag.String("ch-host", "", "ClickHouse host (overrides config)")
		period      = flag.Duration("period", time.Hour, "Tick interval for cron mode")
		showVersion = flag.Bool("version", false, "Show version information")
		all         = flag.Bool("all", false, "Apply the verb to every known server")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("lanftp indexer %s\n", version.GetFullVersionInfo())
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}
	if *dbType != "" {
		cfg.Database.Type = config.DatabaseType(*dbType)
	}
	if *dbPath != "" {
		if cfg.Database.DuckDB == nil {
			cfg.Database.DuckDB = config.DefaultDuckDBConfig()
		}
		cfg.Database.DuckDB.Path = *dbPath
	}
	if *chHost != "" {
		if cfg.Database.ClickHouse == nil {
			cfg.Database.ClickHouse = config.DefaultClickHouseConfig()
		}
		cfg.Database.ClickHouse.Host = *chHost
	}

	if err := logging.Initialize(logging.FromStruct(cfg.Logging)); err != nil {
		log.Fatalf("initializing logging: %v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: indexer [flags] <cron|scan|index|checkstatus> [args...]")
		flag.Usage()
		os.Exit(1)
	}
	verb, rest := args[0], args[1:]

	store, err := openStore(cfg)
	if err != nil {
		logging.Fatalf("opening catalog store: %v", err)
	}
	defer store.Close()

	addresses, err := ipset.ParseRanges(cfg.Indexer.IPRanges)
	if err != nil {
		logging.Fatalf("parsing ip_ranges: %v", err)
	}

	resolver := buildResolver(cfg)

	runner := scheduler.NewRunner(schedulerConfig(cfg), addresses, store, resolver)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch verb {
	case "cron":
		runCron(ctx, runner, *period)
	case "scan":
		runScan(ctx, runner, rest)
	case "index":
		runIndex(ctx, runner, store, rest, *all)
	case "checkstatus":
		runCheckStatus(ctx, runner, store, rest, *all)
	default:
		fmt.Fprintf(os.Stderr, "unknown verb %q\n", verb)
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (catalog.Store, error) {
	switch cfg.Database.Type {
	case config.DatabaseTypeClickHouse:
		ch := cfg.Database.ClickHouse
		if ch == nil {
			ch = config.DefaultClickHouseConfig()
		}
		return catalog.OpenClickHouse(catalog.ClickHouseConfig{
			Host:         ch.Host,
			Port:         ch.Port,
			Database:     ch.Database,
			Username:     ch.Username,
			Password:     ch.Password,
			UseSSL:       ch.UseSSL,
			MaxOpenConns: ch.MaxOpenConns,
			DialTimeout:  ch.DialTimeout,
			ReadTimeout:  ch.ReadTimeout,
			WriteTimeout: ch.WriteTimeout,
			Compression:  ch.Compression,
			BulkSize:     ch.BulkSize,
		})
	default:
		dd := cfg.Database.DuckDB
		if dd == nil {
			dd = config.DefaultDuckDBConfig()
		}
		return catalog.OpenDuckDB(dd.DSN(), dd.BulkSize)
	}
}

func buildResolver(cfg *config.Config) *dnsname.Resolver {
	suffix := ""
	if len(cfg.Indexer.HostnameStripSuffix) > 0 {
		suffix = cfg.Indexer.HostnameStripSuffix[0]
	}

	var c cache.Cache
	if cfg.Cache.Enabled {
		built, err := cache.New(&cache.Config{
			Enabled:              true,
			BadgerPath:           cfg.Cache.Path,
			BadgerMaxMemoryMB:    cfg.Cache.MaxMemoryMB,
			BadgerValueLogMaxMB:  cfg.Cache.ValueLogMaxMB,
			BadgerCompactL0:      true,
			BadgerNumGoroutines:  4,
			BadgerGCInterval:     10 * time.Minute,
			BadgerGCDiscardRatio: cfg.Cache.GCDiscardRatio,
		})
		if err != nil {
			logging.Warn("dnsname cache unavailable, resolving uncached", logging.Err(err))
		} else {
			c = built
		}
	}

	return dnsname.NewResolver(suffix, cfg.Indexer.Timeout, c)
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		ScanDelay:    cfg.Indexer.ScanDelay,
		IndexDelay:   cfg.Indexer.IndexDelay,
		ScanCount:    cfg.Indexer.ScanCount,
		IndexCount:   cfg.Indexer.IndexCount,
		PruneFTPTime: cfg.Indexer.PruneFTPTime,
		Timeout:      cfg.Indexer.Timeout,
		PoolSize:     64,
	}
}

func runCron(ctx context.Context, runner *scheduler.Runner, period time.Duration) {
	logging.Info("starting cron loop", "period", period.String())
	if err := runner.Run(ctx, period); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatalf("cron loop exited: %v", err)
	}
}

func runScan(ctx context.Context, runner *scheduler.Runner, args []string) {
	if len(args) == 0 {
		logging.Fatalf("scan requires <first> [last]")
	}

	first, err := ipset.ParseAddress(args[0])
	if err != nil {
		logging.Fatalf("invalid first address %q: %v", args[0], err)
	}
	last := first
	if len(args) > 1 {
		last, err = ipset.ParseAddress(args[1])
		if err != nil {
			logging.Fatalf("invalid last address %q: %v", args[1], err)
		}
	}

	if err := runner.ScanRange(ctx, first, last); err != nil {
		logging.Fatalf("scan failed: %v", err)
	}
}

func runIndex(ctx context.Context, runner *scheduler.Runner, store catalog.Store, args []string, all bool) {
	targets, err := resolveTargets(ctx, store, args, all)
	if err != nil {
		logging.Fatalf("resolving targets: %v", err)
	}
	for _, addr := range targets {
		if err := runner.IndexOne(ctx, addr); err != nil {
			logging.Error("indexing server failed", logging.Server(addr), logging.Err(err))
		}
	}
}

func runCheckStatus(ctx context.Context, runner *scheduler.Runner, store catalog.Store, args []string, all bool) {
	if all {
		if err := runner.Sweep(ctx); err != nil {
			logging.Fatalf("sweep failed: %v", err)
		}
	} else {
		if len(args) == 0 {
			logging.Fatalf("checkstatus requires --all or at least one address")
		}
		if err := runner.CheckStatus(ctx, args); err != nil {
			logging.Fatalf("checkstatus failed: %v", err)
		}
	}

	targets, err := resolveTargets(ctx, store, args, all)
	if err != nil {
		logging.Fatalf("resolving targets: %v", err)
	}
	report(ctx, store, targets)
}

func resolveTargets(ctx context.Context, store catalog.Store, args []string, all bool) ([]string, error) {
	if all {
		servers, err := store.ListServers(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(servers))
		for i, s := range servers {
			out[i] = s.Address
		}
		return out, nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("no target addresses given (use --all or pass addresses)")
	}
	return args, nil
}

func report(ctx context.Context, store catalog.Store, targets []string) {
	for _, addr := range targets {
		rec, err := store.GetServer(ctx, addr)
		if err != nil {
			fmt.Printf("%s: %v\n", addr, err)
			continue
		}
		status := "offline"
		if rec.Online {
			status = "online"
		}
		fmt.Printf("%-16s %-8s %s\n", rec.Address, status, strings.TrimSpace(rec.DisplayName()))
	}
}
