package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vsinha/lotalloc/pkg/application/dto"
	"github.com/vsinha/lotalloc/pkg/domain/entities"
)

// Config holds configuration for output generation
type Config struct {
	Format     string
	OutputDir  string
	Verbose    bool
	RunTime    time.Duration
	InputFiles map[string]string
	// Writer receives stdout output; os.Stdout when nil
	Writer io.Writer
}

func (c Config) writer() io.Writer {
	if c.Writer == nil {
		return os.Stdout
	}
	return c.Writer
}

// Generate creates output in the specified format
func Generate(report *dto.AllocationReport, config Config) error {
	switch config.Format {
	case "", "text":
		return generateTextOutput(report, config)
	case "json":
		return generateJSONOutput(report, config)
	case "csv":
		return generateCSVOutput(report, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// generateTextOutput creates human-readable text output
func generateTextOutput(report *dto.AllocationReport, config Config) error {
	w := config.writer()

	fmt.Fprintf(w, "📊 Allocation Summary\n")
	fmt.Fprintf(w, "=====================\n\n")

	fmt.Fprintf(w, "Order Lines: %d\n", len(report.Lines))
	fmt.Fprintf(w, "Commits: %d\n", len(report.Commits))
	fmt.Fprintf(w, "Failures: %d\n", len(report.Failures))
	fmt.Fprintf(w, "Shortages: %d\n", len(report.Shortages))
	fmt.Fprintf(w, "Run Time: %v\n\n", config.RunTime)

	if len(report.Lines) > 0 {
		fmt.Fprintf(w, "📋 Order Lines:\n")
		fmt.Fprintf(w, "%-12s %-14s %-10s %-10s %-10s %-10s %-10s %-8s\n",
			"Line", "Product", "Required", "Committed", "Draft", "Remaining", "Status", "Hold")
		fmt.Fprintf(w, "%-12s %-14s %-10s %-10s %-10s %-10s %-10s %-8s\n",
			"------------", "--------------", "----------", "----------", "----------", "----------", "----------", "--------")

		for _, line := range report.Lines {
			fmt.Fprintf(w, "%-12s %-14s %-10s %-10s %-10s %-10s %-10s %-8s\n",
				line.OrderLineID,
				line.ProductKey,
				line.Required.String(),
				line.Committed.String(),
				line.Draft.String(),
				line.Remaining.String(),
				line.Status.String(),
				line.Reservation.String())
		}
		fmt.Fprintln(w)
	}

	if allocations := draftRows(report); len(allocations) > 0 {
		fmt.Fprintf(w, "📦 Proposed Allocations:\n")
		fmt.Fprintf(w, "%-12s %-16s %-10s\n", "Line", "Lot", "Quantity")
		fmt.Fprintf(w, "%-12s %-16s %-10s\n", "------------", "----------------", "----------")

		for _, row := range allocations {
			fmt.Fprintf(w, "%-12s %-16s %-10s\n", row[0], row[1], row[2])
		}
		fmt.Fprintln(w)
	}

	if len(report.Commits) > 0 {
		fmt.Fprintf(w, "✅ Committed Reservations:\n")
		fmt.Fprintf(w, "%-12s %-16s %-10s %-36s\n", "Line", "Lot", "Quantity", "Reservation")
		fmt.Fprintf(w, "%-12s %-16s %-10s %-36s\n",
			"------------", "----------------", "----------", "------------------------------------")

		for _, commit := range report.Commits {
			for _, res := range commit.Reservations {
				fmt.Fprintf(w, "%-12s %-16s %-10s %-36s\n", res.OrderLineID, res.LotID, res.Quantity.String(), res.ID)
			}
		}
		fmt.Fprintln(w)
	}

	if len(report.Failures) > 0 {
		fmt.Fprintf(w, "❌ Failures:\n")
		for _, id := range sortedIDs(report.Failures) {
			fmt.Fprintf(w, "  %s: %s\n", id, report.Failures[id])
		}
		fmt.Fprintln(w)
	}

	if len(report.Shortages) > 0 {
		fmt.Fprintf(w, "⚠️  Shortages:\n")
		fmt.Fprintf(w, "%-12s %-14s %-10s\n", "Line", "Product", "Missing")
		fmt.Fprintf(w, "%-12s %-14s %-10s\n", "------------", "--------------", "----------")

		for _, shortage := range report.Shortages {
			fmt.Fprintf(w, "%-12s %-14s %-10s\n", shortage.OrderLineID, shortage.ProductKey, shortage.Missing.String())
		}
		fmt.Fprintln(w)
	}

	return nil
}

// generateJSONOutput creates JSON output
func generateJSONOutput(report *dto.AllocationReport, config Config) error {
	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if config.OutputDir == "" {
		fmt.Fprintln(config.writer(), string(jsonData))
		return nil
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := filepath.Join(config.OutputDir, "allocation_report.json")
	if err := os.WriteFile(filename, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}

	if config.Verbose {
		fmt.Fprintf(config.writer(), "💾 JSON results saved to: %s\n", filename)
	}
	return nil
}

// generateCSVOutput writes one CSV file per report section
func generateCSVOutput(report *dto.AllocationReport, config Config) error {
	if config.OutputDir == "" {
		return fmt.Errorf("output directory required for CSV format")
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	linesFile := filepath.Join(config.OutputDir, "lines.csv")
	if err := writeLinesCSV(report.Lines, linesFile); err != nil {
		return fmt.Errorf("failed to write lines CSV: %w", err)
	}

	allocFile := filepath.Join(config.OutputDir, "allocations.csv")
	if err := writeAllocationsCSV(report, allocFile); err != nil {
		return fmt.Errorf("failed to write allocations CSV: %w", err)
	}

	shortageFile := filepath.Join(config.OutputDir, "shortages.csv")
	if err := writeShortagesCSV(report.Shortages, shortageFile); err != nil {
		return fmt.Errorf("failed to write shortages CSV: %w", err)
	}

	if config.Verbose {
		w := config.writer()
		fmt.Fprintf(w, "💾 CSV results saved to:\n")
		fmt.Fprintf(w, "  Lines: %s\n", linesFile)
		fmt.Fprintf(w, "  Allocations: %s\n", allocFile)
		fmt.Fprintf(w, "  Shortages: %s\n", shortageFile)
	}
	return nil
}

func writeLinesCSV(lines []dto.LineSummary, filename string) error {
	rows := [][]string{{"order_line_id", "order_id", "product_key", "required", "committed", "draft", "remaining", "status", "reservation"}}
	for _, line := range lines {
		rows = append(rows, []string{
			string(line.OrderLineID),
			string(line.OrderID),
			string(line.ProductKey),
			line.Required.String(),
			line.Committed.String(),
			line.Draft.String(),
			line.Remaining.String(),
			line.Status.String(),
			line.Reservation.String(),
		})
	}
	return writeCSV(filename, rows)
}

// writeAllocationsCSV writes committed reservations and uncommitted proposals in one table
func writeAllocationsCSV(report *dto.AllocationReport, filename string) error {
	rows := [][]string{{"order_line_id", "lot_id", "quantity", "state", "reservation_id"}}
	for _, row := range draftRows(report) {
		rows = append(rows, []string{row[0], row[1], row[2], "draft", ""})
	}
	for _, commit := range report.Commits {
		for _, res := range commit.Reservations {
			rows = append(rows, []string{
				string(res.OrderLineID),
				string(res.LotID),
				res.Quantity.String(),
				"committed",
				string(res.ID),
			})
		}
	}
	return writeCSV(filename, rows)
}

func writeShortagesCSV(shortages []dto.Shortage, filename string) error {
	rows := [][]string{{"order_line_id", "product_key", "missing"}}
	for _, s := range shortages {
		rows = append(rows, []string{string(s.OrderLineID), string(s.ProductKey), s.Missing.String()})
	}
	return writeCSV(filename, rows)
}

func writeCSV(filename string, rows [][]string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return file.Close()
}

// draftRows flattens the report's drafts into line, lot, quantity rows in line order
func draftRows(report *dto.AllocationReport) [][3]string {
	var rows [][3]string
	for _, id := range sortedIDs(report.Drafts) {
		for _, alloc := range report.Drafts[id] {
			rows = append(rows, [3]string{string(id), string(alloc.LotID), alloc.Quantity.String()})
		}
	}
	return rows
}

func sortedIDs[V any](m map[entities.OrderLineID]V) []entities.OrderLineID {
	ids := make([]entities.OrderLineID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
