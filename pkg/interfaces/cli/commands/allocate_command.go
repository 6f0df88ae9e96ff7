package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vsinha/lotalloc/pkg/application/dto"
	"github.com/vsinha/lotalloc/pkg/application/services/allocation"
	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
	"github.com/vsinha/lotalloc/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/lotalloc/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/lotalloc/pkg/infrastructure/repositories/sqlite"
	"github.com/vsinha/lotalloc/pkg/interfaces/cli/output"
	apihttp "github.com/vsinha/lotalloc/pkg/interfaces/http"
)

// Config holds all CLI configuration options
type Config struct {
	ScenarioDir string
	LinesFile   string
	LotsFile    string
	// DBPath selects the SQLite ledger; the in-memory ledger is used when empty
	DBPath    string
	OrderID   string
	Commit    bool
	OutputDir string
	Format    string
	Verbose   bool
	Help      bool
	Session   allocation.Config
}

// Ledger is every port a store has to offer to back an allocation run
type Ledger interface {
	repositories.CandidateLotRepository
	repositories.AllocationGateway
	repositories.ReservationRepository
	repositories.OrderLineRepository
}

// AllocateCommand runs FEFO auto-allocation over a set of order lines
type AllocateCommand struct {
	config Config
	deps   allocation.Deps
	out    io.Writer
}

// NewAllocateCommand creates a new allocate command.
// deps carries the optional collaborators; the ledger ports are filled in by Execute.
func NewAllocateCommand(config Config, deps allocation.Deps) *AllocateCommand {
	return &AllocateCommand{config: config, deps: deps, out: os.Stdout}
}

// WithOutput redirects everything the command prints
func (c *AllocateCommand) WithOutput(w io.Writer) *AllocateCommand {
	c.out = w
	return c
}

// Execute runs the allocate command
func (c *AllocateCommand) Execute(ctx context.Context) error {
	if c.config.Help {
		c.showHelp()
		return nil
	}

	if err := c.validateInputs(); err != nil {
		return err
	}

	files, err := c.resolveInputFiles()
	if err != nil {
		return err
	}

	if c.config.Verbose {
		c.printHeader(files)
	}

	lines, lots, err := c.loadInputs(files)
	if err != nil {
		return err
	}

	ledger, closeLedger, err := c.openLedger(ctx, lines, lots)
	if err != nil {
		return err
	}
	defer closeLedger()

	startTime := time.Now()
	report, err := Run(ctx, c.sessionFor(ledger), entities.OrderID(c.config.OrderID), c.config.Commit)
	if err != nil {
		return err
	}
	runTime := time.Since(startTime)

	if c.config.Verbose {
		fmt.Fprintf(c.out, "✅ Allocation completed in %v\n\n", runTime)
	}

	outputConfig := output.Config{
		Format:     c.config.Format,
		OutputDir:  c.config.OutputDir,
		Verbose:    c.config.Verbose,
		RunTime:    runTime,
		InputFiles: files,
		Writer:     c.out,
	}

	if err := output.Generate(report, outputConfig); err != nil {
		return fmt.Errorf("error generating output: %w", err)
	}

	if c.config.Verbose {
		fmt.Fprintln(c.out, "🏁 Allocation run complete!")
	}
	return nil
}

// Run loads an order into the session, auto-allocates every line and, when
// commit is set, commits each non-empty draft. Per-line failures end up in
// the report; only a failure to load the order is returned as an error.
func Run(ctx context.Context, session *allocation.Session, orderID entities.OrderID, commit bool) (*dto.AllocationReport, error) {
	if err := session.LoadOrder(ctx, orderID); err != nil {
		return nil, err
	}

	report := dto.NewAllocationReport()

	results, _ := session.AutoAllocateAll(ctx)
	for _, id := range session.Lines() {
		if _, ok := results[id]; ok {
			continue
		}
		if view := session.Candidates(ctx, id); view.Err != nil {
			report.Failures[id] = view.Err.Error()
		} else {
			report.Failures[id] = "auto-allocation failed"
		}
	}

	if commit {
		for _, id := range session.Lines() {
			if _, failed := report.Failures[id]; failed {
				continue
			}
			result, err := session.Commit(ctx, id)
			if errors.Is(err, allocation.ErrNothingToCommit) {
				continue
			}
			if err != nil {
				report.Failures[id] = err.Error()
				continue
			}
			report.Commits = append(report.Commits, *result)
		}
	}

	report.Lines = session.Summaries(ctx)
	for _, line := range report.Lines {
		if draft := session.Draft(line.OrderLineID); len(draft) > 0 {
			report.Drafts[line.OrderLineID] = draft.Allocations()
		}
		if line.Remaining.IsPositive() {
			report.Shortages = append(report.Shortages, dto.Shortage{
				OrderLineID: line.OrderLineID,
				ProductKey:  line.ProductKey,
				Missing:     line.Remaining,
			})
		}
	}
	return report, nil
}

// Serve loads the optional input into the ledger and serves the HTTP API until ctx is done
func (c *AllocateCommand) Serve(ctx context.Context, addr string) error {
	var (
		lines []*entities.OrderLine
		lots  []entities.CandidateLot
	)
	switch {
	case c.config.ScenarioDir != "" || c.config.LinesFile != "" || c.config.LotsFile != "":
		if err := c.validateInputs(); err != nil {
			return err
		}
		files, err := c.resolveInputFiles()
		if err != nil {
			return err
		}
		if lines, lots, err = c.loadInputs(files); err != nil {
			return err
		}
	case c.config.DBPath == "":
		return fmt.Errorf("serving needs a -db ledger or input CSV files")
	}

	ledger, closeLedger, err := c.openLedger(ctx, lines, lots)
	if err != nil {
		return err
	}
	defer closeLedger()

	session := c.sessionFor(ledger)
	if err := session.LoadOrder(ctx, entities.OrderID(c.config.OrderID)); err != nil {
		return err
	}

	server := apihttp.NewServer(addr, session, c.deps.Logger)
	if err := server.Start(); err != nil {
		return fmt.Errorf("error starting HTTP server: %w", err)
	}
	c.deps.Logger.Info().Str("addr", addr).Int("lines", len(session.Lines())).Msg("serving allocation API")

	<-ctx.Done()
	return server.Stop()
}

func (c *AllocateCommand) loadInputs(files map[string]string) ([]*entities.OrderLine, []entities.CandidateLot, error) {
	loader := csv.NewLoader()
	if c.config.Verbose {
		fmt.Fprintln(c.out, "📥 Loading order lines and lots...")
	}

	lines, err := loader.LoadOrderLines(files["Lines"])
	if err != nil {
		return nil, nil, fmt.Errorf("error loading order lines: %w", err)
	}

	lots, err := loader.LoadLots(files["Lots"])
	if err != nil {
		return nil, nil, fmt.Errorf("error loading lots: %w", err)
	}

	if c.config.Verbose {
		fmt.Fprintf(c.out, "✅ Loaded %d order lines and %d lots\n\n", len(lines), len(lots))
	}
	return lines, lots, nil
}

func (c *AllocateCommand) sessionFor(ledger Ledger) *allocation.Session {
	deps := c.deps
	deps.Lots = ledger
	deps.Gateway = ledger
	deps.Reservations = ledger
	deps.Lines = ledger
	return allocation.NewSession(deps, c.config.Session)
}

// openLedger loads the input into the configured store
func (c *AllocateCommand) openLedger(
	ctx context.Context,
	lines []*entities.OrderLine,
	lots []entities.CandidateLot,
) (Ledger, func() error, error) {
	if c.config.DBPath == "" {
		store := memory.NewStore()
		if c.deps.Clock != nil {
			store.WithClock(c.deps.Clock)
		}
		if err := store.LoadOrderLines(lines); err != nil {
			return nil, nil, fmt.Errorf("error loading order lines: %w", err)
		}
		if err := store.LoadLots(lots); err != nil {
			return nil, nil, fmt.Errorf("error loading lots: %w", err)
		}
		return store, func() error { return nil }, nil
	}

	db, err := sqlite.OpenDB(c.config.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening ledger: %w", err)
	}
	if err := sqlite.ApplyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("error migrating ledger: %w", err)
	}

	store := sqlite.NewStore(db)
	if c.deps.Clock != nil {
		store.WithClock(c.deps.Clock)
	}
	if err := store.LoadOrderLines(ctx, lines); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("error loading order lines: %w", err)
	}
	if err := store.LoadLots(ctx, lots); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("error loading lots: %w", err)
	}
	if c.config.Verbose {
		fmt.Fprintf(c.out, "🗄️  Using SQLite ledger %s\n", c.config.DBPath)
	}
	return store, db.Close, nil
}

// validateInputs validates the command configuration
func (c *AllocateCommand) validateInputs() error {
	if c.config.ScenarioDir == "" && (c.config.LinesFile == "" || c.config.LotsFile == "") {
		return fmt.Errorf("must specify either -scenario directory or -lines and -lots CSV files")
	}
	return nil
}

// resolveInputFiles determines the actual file paths to use
func (c *AllocateCommand) resolveInputFiles() (map[string]string, error) {
	linesPath, lotsPath := c.config.LinesFile, c.config.LotsFile
	if c.config.ScenarioDir != "" {
		linesPath = filepath.Join(c.config.ScenarioDir, "lines.csv")
		lotsPath = filepath.Join(c.config.ScenarioDir, "lots.csv")
	}

	files := map[string]string{
		"Lines": linesPath,
		"Lots":  lotsPath,
	}

	for name, path := range files {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("%s file not found: %s", name, path)
		}
	}
	return files, nil
}

// printHeader prints the command header information
func (c *AllocateCommand) printHeader(files map[string]string) {
	fmt.Fprintf(c.out, "🚀 Lot Allocation CLI\n")
	fmt.Fprintf(c.out, "Input files:\n")
	fmt.Fprintf(c.out, "  Lines: %s\n", files["Lines"])
	fmt.Fprintf(c.out, "  Lots: %s\n", files["Lots"])
	if c.config.OrderID != "" {
		fmt.Fprintf(c.out, "Order: %s\n", c.config.OrderID)
	}
	fmt.Fprintf(c.out, "Commit: %t\n", c.config.Commit)
	fmt.Fprintf(c.out, "Output format: %s\n", c.config.Format)
	if c.config.OutputDir != "" {
		fmt.Fprintf(c.out, "Output directory: %s\n", c.config.OutputDir)
	}
	fmt.Fprintln(c.out)
}

// showHelp displays the help message
func (c *AllocateCommand) showHelp() {
	fmt.Fprintf(c.out, `Lot Allocation CLI - FEFO allocation of warehouse lots to order lines

USAGE:
    lotalloc -scenario <directory>             # Use scenario directory with CSV files
    lotalloc -lines <file> -lots <file>        # Use individual CSV files
    lotalloc -serve                            # Run the HTTP API

OPTIONS:
    -scenario <dir>     Path to scenario directory containing lines.csv and lots.csv
    -lines <file>       Path to order lines CSV file
    -lots <file>        Path to lots CSV file
    -order <id>         Only allocate the lines of this order
    -db <file>          SQLite ledger file (default: in-memory ledger)
    -commit             Commit every proposed allocation as hard reservations
    -config <file>      YAML configuration file
    -operator <name>    Operator name used for line locks
    -output <dir>       Output directory for results (optional)
    -format <fmt>       Output format: text, json, csv (default: text)
    -serve              Serve the HTTP API instead of running once
    -verbose            Enable verbose output
    -help               Show this help message

CSV FILE FORMATS:

lines.csv:
    id,order_id,product_key,order_quantity,allocated_quantity,unit,internal_unit,qty_per_internal_unit
    SO1-10,SO1,VACCINE-A,80,0,EA,EA,1

lots.csv:
    lot_id,product_key,warehouse_id,free_quantity,expiry_date
    VA-2030-06,VACCINE-A,COLD-1,50,2030-06-01

EXAMPLES:
    # Propose allocations for a scenario
    lotalloc -scenario examples/warehouse -verbose

    # Commit order SO1 into a SQLite ledger
    lotalloc -scenario examples/warehouse -order SO1 -commit -db ledger.db

    # Generate JSON output
    lotalloc -lines data/lines.csv -lots data/lots.csv -format json -output results/
`)
}
