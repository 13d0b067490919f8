package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

const (
	lamportsDecimals = 9
	tokenDecimals    = 6
)

// ParseFormat validates a format flag.
func ParseFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(s); f {
	case FormatCSV, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format      ExportFormat
	OutputDir   string
	OnlySuccess bool // пропускать mint'ы с ошибкой
	Now         func() time.Time
}

// ReleaseRow is one mint of a sweep.
type ReleaseRow struct {
	Mint         string `json:"mint"`
	Recipient    string `json:"recipient"`
	Signature    string `json:"signature,omitempty"`
	Slot         uint64 `json:"slot,omitempty"`
	LamportsSent uint64 `json:"lamports_sent"`
	TokensSent   uint64 `json:"tokens_sent"`
	Attempts     int    `json:"attempts"`
	Error        string `json:"error,omitempty"`
}

// Success reports whether the release went through.
func (r ReleaseRow) Success() bool {
	return r.Error == ""
}

// SOL formats lamports as SOL.
func SOL(lamports uint64) string {
	return decimal.NewFromUint64(lamports).Shift(-lamportsDecimals).StringFixed(lamportsDecimals)
}

// Tokens formats base units with the launch token decimals.
func Tokens(amount uint64) string {
	return decimal.NewFromUint64(amount).Shift(-tokenDecimals).StringFixed(tokenDecimals)
}

// CSVHeaders returns the release report columns.
func CSVHeaders() []string {
	return []string{"mint", "recipient", "signature", "slot", "lamports_sent", "sol_sent", "tokens_sent", "tokens_ui", "attempts", "error"}
}

// ToCSV renders the row in CSVHeaders order.
func (r ReleaseRow) ToCSV() []string {
	return []string{
		r.Mint,
		r.Recipient,
		r.Signature,
		strconv.FormatUint(r.Slot, 10),
		strconv.FormatUint(r.LamportsSent, 10),
		SOL(r.LamportsSent),
		strconv.FormatUint(r.TokensSent, 10),
		Tokens(r.TokensSent),
		strconv.Itoa(r.Attempts),
		r.Error,
	}
}

// ReleaseSummary contains totals for an exported sweep.
type ReleaseSummary struct {
	TotalMints    int    `json:"total_mints"`
	Succeeded     int    `json:"succeeded"`
	Failed        int    `json:"failed"`
	Empty         int    `json:"empty"`
	TotalLamports uint64 `json:"total_lamports"`
	TotalSOL      string `json:"total_sol"`
	TotalTokens   uint64 `json:"total_tokens"`
}

// Summarize totals rows.
func Summarize(rows []ReleaseRow) ReleaseSummary {
	var s ReleaseSummary
	s.TotalMints = len(rows)
	for _, r := range rows {
		if !r.Success() {
			s.Failed++
			continue
		}
		s.Succeeded++
		if r.LamportsSent == 0 && r.TokensSent == 0 {
			s.Empty++
		}
		s.TotalLamports += r.LamportsSent
		s.TotalTokens += r.TokensSent
	}
	s.TotalSOL = SOL(s.TotalLamports)
	return s
}

// ReleaseExporter writes sweep reports.
type ReleaseExporter struct {
	logger *zap.Logger
}

// NewReleaseExporter creates a new release exporter
func NewReleaseExporter(logger *zap.Logger) *ReleaseExporter {
	return &ReleaseExporter{logger: logger.Named("export")}
}

// ExportReleases writes rows sorted by mint and returns the file path.
func (re *ReleaseExporter) ExportReleases(rows []ReleaseRow, options ExportOptions) (string, error) {
	filtered := make([]ReleaseRow, 0, len(rows))
	for _, r := range rows {
		if options.OnlySuccess && !r.Success() {
			continue
		}
		filtered = append(filtered, r)
	}
	if len(filtered) == 0 {
		return "", fmt.Errorf("no releases match the export criteria")
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Mint < filtered[j].Mint })

	now := time.Now
	if options.Now != nil {
		now = options.Now
	}
	exportTime := now().UTC()
	outputPath := filepath.Join(options.OutputDir, fmt.Sprintf("release_report_%s.%s", exportTime.Format("20060102_150405"), options.Format))
	if err := os.MkdirAll(options.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch options.Format {
	case FormatCSV:
		err = re.exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = re.exportToJSON(filtered, exportTime, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	re.logger.Info("Release report exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

func (re *ReleaseExporter) exportToCSV(rows []ReleaseRow, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, r := range rows {
		if err := writer.Write(r.ToCSV()); err != nil {
			return fmt.Errorf("failed to write release: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (re *ReleaseExporter) exportToJSON(rows []ReleaseRow, exportTime time.Time, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime time.Time      `json:"export_time"`
		Count      int            `json:"count"`
		Releases   []ReleaseRow   `json:"releases"`
		Summary    ReleaseSummary `json:"summary"`
	}{
		ExportTime: exportTime,
		Count:      len(rows),
		Releases:   rows,
		Summary:    Summarize(rows),
	}
	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
