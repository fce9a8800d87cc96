// Package export writes optimization reports to CSV files and SQLite
// databases.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/signalsfoundry/production-optimizer/core"
)

// Header returns the result-table columns for rep: one per decision position,
// then Profit, Revenue and Cost.
func Header(rep *core.OptimizationReport) []string {
	return append(rep.Layout.Names(), "Profit", "Revenue", "Cost")
}

// WriteCSV writes every row of rep in table order. Floats keep full
// precision.
func WriteCSV(w io.Writer, rep *core.OptimizationReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(rep)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, 0, len(rep.Layout)+3)
	for i, ev := range rep.Results {
		row = row[:0]
		for _, flag := range ev.Decisions {
			row = append(row, boolCell(flag))
		}
		row = append(row,
			formatFloat(ev.Result.Profit),
			formatFloat(ev.Result.Revenue),
			formatFloat(ev.Result.Cost),
		)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes rep to path through a temporary file in the same
// directory, so readers never see a partial table.
func WriteCSVFile(path string, rep *core.OptimizationReport) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = WriteCSV(tmp, rep); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

func boolCell(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
