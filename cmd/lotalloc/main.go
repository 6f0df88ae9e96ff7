package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vsinha/lotalloc/pkg/application/services/allocation"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
	"github.com/vsinha/lotalloc/pkg/infrastructure/cache"
	"github.com/vsinha/lotalloc/pkg/infrastructure/config"
	"github.com/vsinha/lotalloc/pkg/infrastructure/events"
	"github.com/vsinha/lotalloc/pkg/infrastructure/lock"
	"github.com/vsinha/lotalloc/pkg/infrastructure/messaging"
	"github.com/vsinha/lotalloc/pkg/infrastructure/observability"
	"github.com/vsinha/lotalloc/pkg/interfaces/cli/commands"
)

var version = "dev"

func main() {
	// Command line flags
	var (
		scenarioDir = flag.String(
			"scenario",
			"",
			"Path to scenario directory containing lines.csv and lots.csv",
		)
		linesFile  = flag.String("lines", "", "Path to order lines CSV file")
		lotsFile   = flag.String("lots", "", "Path to lots CSV file")
		orderID    = flag.String("order", "", "Only allocate the lines of this order")
		dbPath     = flag.String("db", "", "SQLite ledger file (default: in-memory ledger)")
		commit     = flag.Bool("commit", false, "Commit proposed allocations as hard reservations")
		configFile = flag.String("config", "", "YAML configuration file")
		operator   = flag.String("operator", "", "Operator name used for line locks")
		outputDir  = flag.String("output", "", "Output directory for results (optional)")
		format     = flag.String("format", "text", "Output format: text, json, csv")
		serve      = flag.Bool("serve", false, "Serve the HTTP API")
		addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
		verbose    = flag.Bool("verbose", false, "Enable verbose output")
		help       = flag.Bool("help", false, "Show help message")
	)

	flag.Parse()

	if err := run(runOptions{
		command: commands.Config{
			ScenarioDir: *scenarioDir,
			LinesFile:   *linesFile,
			LotsFile:    *lotsFile,
			DBPath:      *dbPath,
			OrderID:     *orderID,
			Commit:      *commit,
			OutputDir:   *outputDir,
			Format:      *format,
			Verbose:     *verbose,
			Help:        *help,
		},
		configFile: *configFile,
		operator:   *operator,
		serve:      *serve,
		addr:       *addr,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type runOptions struct {
	command    commands.Config
	configFile string
	operator   string
	serve      bool
	addr       string
}

func run(opts runOptions) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	if opts.operator != "" {
		cfg.Operator = opts.operator
	}
	if cfg.Operator == "" {
		cfg.Operator = getenv("USER", "operator")
	}
	if opts.command.DBPath == "" {
		opts.command.DBPath = cfg.SQLite.Path
	}
	if opts.addr != "" {
		cfg.HTTP.Addr = opts.addr
	}

	logger := newLogger(cfg.LogLevel, opts.command.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewProvider(version)
	defer metrics.Shutdown(context.Background())
	recorder, err := metrics.Recorder()
	if err != nil {
		return err
	}

	snapshots, err := cache.NewSnapshotCache(cfg.Allocation.CacheSize)
	if err != nil {
		return err
	}

	locks, closeLocks, err := newLockAdvisor(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocks()

	store := events.NewInMemoryEventStoreWithLogger(logger)
	if cfg.AMQP.URL != "" {
		publisher, err := messaging.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		if err := store.Subscribe(nil, publisher); err != nil {
			return fmt.Errorf("subscribe event publisher: %w", err)
		}
		logger.Info().Str("exchange", cfg.AMQP.Exchange).Msg("publishing allocation events")
	}

	opts.command.Session = allocation.Config{
		Strategy:       cfg.Allocation.Strategy,
		CandidateLimit: cfg.Allocation.CandidateLimit,
		Operator:       cfg.Operator,
		Prefetch:       cfg.Allocation.Prefetch,
	}
	cmd := commands.NewAllocateCommand(opts.command, allocation.Deps{
		Locks:   locks,
		Cache:   snapshots,
		Events:  store,
		Metrics: recorder,
		Logger:  logger,
	})

	if opts.serve && !opts.command.Help {
		return cmd.Serve(ctx, cfg.HTTP.Addr)
	}
	if err := cmd.Execute(ctx); err != nil {
		return err
	}
	store.Wait()

	if opts.command.Verbose {
		totals, err := metrics.Totals(ctx)
		if err != nil {
			return err
		}
		for _, total := range totals {
			logger.Info().Str("metric", total.Name).Float64("value", total.Value).Msg("run total")
		}
	}
	return nil
}

func newLogger(level string, verbose bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if verbose && lvl > zerolog.DebugLevel {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// newLockAdvisor uses Redis when an address is configured and an in-process advisor otherwise
func newLockAdvisor(ctx context.Context, cfg config.Config, logger zerolog.Logger) (repositories.LockAdvisor, func() error, error) {
	if cfg.Redis.Addr == "" {
		return lock.NewMemoryAdvisor(cfg.Redis.LockTTL), func() error { return nil }, nil
	}

	advisor := lock.DialRedisAdvisor(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.LockTTL)
	if err := advisor.Ping(ctx); err != nil {
		_ = advisor.Close()
		return nil, nil, fmt.Errorf("connect to redis %s: %w", cfg.Redis.Addr, err)
	}
	logger.Debug().Str("addr", cfg.Redis.Addr).Msg("using redis line locks")
	return advisor, advisor.Close, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
