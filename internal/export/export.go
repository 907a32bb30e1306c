package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/domain"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

var ErrNothingToExport = errors.New("no summaries match the export criteria")

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format     ExportFormat
	StartTime  time.Time
	EndTime    time.Time
	Operation  domain.Operation // empty exports all operations
	OnlyFailed bool             // keep only wallets that need attention
	OutputDir  string
}

// SummaryExporter writes sweep summaries to disk for operators.
type SummaryExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewSummaryExporter creates a new summary exporter
func NewSummaryExporter(logger *zap.Logger) *SummaryExporter {
	return &SummaryExporter{
		logger: logger.Named("export"),
		now:    time.Now,
	}
}

// Row is one wallet outcome flattened for export.
type Row struct {
	SummaryID string          `json:"summary_id"`
	Operation string          `json:"operation"`
	Mint      string          `json:"mint"`
	StartedAt time.Time       `json:"started_at"`
	Wallet    string          `json:"wallet"`
	Success   bool            `json:"success"`
	Kind      string          `json:"kind,omitempty"`
	Lamports  uint64          `json:"lamports"`
	SOL       decimal.Decimal `json:"sol"`
	Tokens    uint64          `json:"tokens"`
	Signature string          `json:"signature,omitempty"`
	BundleID  string          `json:"bundle_id,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// CSVHeaders returns the column names matching Row.csv.
func CSVHeaders() []string {
	return []string{
		"summary_id", "operation", "mint", "started_at", "wallet", "success", "kind",
		"lamports", "sol", "tokens", "signature", "bundle_id", "error",
	}
}

func (r Row) csv() []string {
	return []string{
		r.SummaryID,
		r.Operation,
		r.Mint,
		r.StartedAt.UTC().Format(time.RFC3339),
		r.Wallet,
		strconv.FormatBool(r.Success),
		r.Kind,
		strconv.FormatUint(r.Lamports, 10),
		r.SOL.String(),
		strconv.FormatUint(r.Tokens, 10),
		r.Signature,
		r.BundleID,
		r.Error,
	}
}

// ExportTotals contains aggregate statistics for exported rows
type ExportTotals struct {
	Summaries int             `json:"summaries"`
	Wallets   int             `json:"wallets"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	TotalSOL  decimal.Decimal `json:"total_sol"`
	Tokens    uint64          `json:"tokens"`
}

// ExportSummaries writes the matching outcomes and returns the file path.
func (e *SummaryExporter) ExportSummaries(summaries []*domain.Summary, options ExportOptions) (string, error) {
	filtered := e.filterSummaries(summaries, options)
	rows := Rows(filtered, options.OnlyFailed)
	if len(rows) == 0 {
		return "", ErrNothingToExport
	}

	outputPath := filepath.Join(options.OutputDir, e.generateFilename(options))
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch options.Format {
	case FormatCSV:
		err = exportToCSV(rows, outputPath)
	case FormatJSON:
		err = e.exportToJSON(rows, len(filtered), outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Summaries exported",
		zap.String("file", outputPath),
		zap.Int("rows", len(rows)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func (e *SummaryExporter) filterSummaries(summaries []*domain.Summary, options ExportOptions) []*domain.Summary {
	var filtered []*domain.Summary
	for _, s := range summaries {
		if s == nil {
			continue
		}
		if !options.StartTime.IsZero() && s.StartedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && s.StartedAt.After(options.EndTime) {
			continue
		}
		if options.Operation != "" && s.Operation != options.Operation {
			continue
		}
		filtered = append(filtered, s)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].StartedAt.Before(filtered[j].StartedAt)
	})
	return filtered
}

// Rows flattens summaries into one row per wallet outcome, in summary order.
func Rows(summaries []*domain.Summary, onlyFailed bool) []Row {
	var rows []Row
	for _, s := range summaries {
		for _, o := range s.Outcomes {
			if onlyFailed && o.Success() {
				continue
			}
			row := Row{
				SummaryID: s.ID,
				Operation: string(s.Operation),
				Mint:      s.Mint.String(),
				StartedAt: s.StartedAt,
				Wallet:    o.Wallet.String(),
				Success:   o.Success(),
				Kind:      o.Kind,
				Lamports:  o.Lamports,
				SOL:       domain.LamportsToSOL(o.Lamports),
				Tokens:    o.Tokens,
				BundleID:  o.BundleID,
				Error:     o.Error(),
			}
			if !o.Signature.IsZero() {
				row.Signature = o.Signature.String()
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// Totals sums rows; only successful rows count toward SOL and tokens.
func Totals(rows []Row, summaries int) ExportTotals {
	totals := ExportTotals{Summaries: summaries, Wallets: len(rows), TotalSOL: decimal.Zero}
	for _, r := range rows {
		if !r.Success {
			totals.Failed++
			continue
		}
		totals.Succeeded++
		totals.TotalSOL = totals.TotalSOL.Add(r.SOL)
		totals.Tokens += r.Tokens
	}
	return totals
}

func (e *SummaryExporter) generateFilename(options ExportOptions) string {
	timestamp := e.now().Format("20060102_150405")

	prefix := "summaries_all"
	if options.Operation != "" {
		prefix = "summaries_" + string(options.Operation)
	}
	if options.OnlyFailed {
		prefix += "_failed"
	}
	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

func exportToCSV(rows []Row, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row.csv()); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func (e *SummaryExporter) exportToJSON(rows []Row, summaries int, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime time.Time    `json:"export_time"`
		Totals     ExportTotals `json:"totals"`
		Rows       []Row        `json:"rows"`
	}{
		ExportTime: e.now().UTC(),
		Totals:     Totals(rows, summaries),
		Rows:       rows,
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
