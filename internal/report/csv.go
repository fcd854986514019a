// Package report renders run results for external consumption. The
// strategy layer hands over flat rows plus a label; everything about the
// on-disk format lives here.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/pkg/logger"
)

// utf8BOM keeps spreadsheet applications from misreading CJK names.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVSink writes one CSV file per run into a fixed output directory.
// Writes are atomic: rows land in a temp file first and the final name
// only appears after a successful flush, so a failed run leaves nothing
// behind.
type CSVSink struct {
	outputDir string
	logger    *logger.Logger
}

// NewCSVSink creates a sink rooted at outputDir.
func NewCSVSink(outputDir string, log *logger.Logger) *CSVSink {
	return &CSVSink{outputDir: outputDir, logger: log}
}

// Write renders the report as {label}.csv and returns the final path.
func (s *CSVSink) Write(ctx context.Context, report *contracts.Report) (string, error) {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	final := filepath.Join(s.outputDir, report.Label+".csv")

	tmp, err := os.CreateTemp(s.outputDir, "."+report.Label+"-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.render(tmp, report); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("publish report: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"path": final,
		"rows": len(report.Rows),
	}).Info("report written")

	return final, nil
}

func (s *CSVSink) render(f *os.File, report *contracts.Report) error {
	if _, err := f.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(report.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range report.Rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
