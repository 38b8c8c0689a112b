package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/vrbourque/prediction-metrics/domain/dataset"
	apperrors "github.com/vrbourque/prediction-metrics/internal/errors"
	"github.com/vrbourque/prediction-metrics/ports"
)

// SheetName is the worksheet read from and written to XLSX files.
const SheetName = "Sheet1"

// FileStore reads and writes tables as CSV or XLSX, chosen by extension.
type FileStore struct {
	logger *zap.Logger
}

var (
	_ ports.TableReader = (*FileStore)(nil)
	_ ports.TableWriter = (*FileStore)(nil)
)

// NewFileStore creates a file-backed table store
func NewFileStore(logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{logger: logger}
}

func fileType(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return "csv", nil
	case ".xlsx":
		return "xlsx", nil
	default:
		return "", apperrors.InvalidArgumentf("unsupported table file extension %q (want .csv or .xlsx)", ext)
	}
}

// ReadTable loads a table. Columns whose cells all parse as numbers (empty
// and "NaN" cells count as missing) become numeric; the rest stay strings.
func (s *FileStore) ReadTable(path string) (*dataset.Table, error) {
	kind, err := fileType(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, apperrors.IOError(fmt.Sprintf("%s file not found: %s", strings.ToUpper(kind), path), err)
	}

	start := time.Now()
	var rows [][]string
	switch kind {
	case "csv":
		rows, err = readCSV(path)
	case "xlsx":
		rows, err = readXLSX(path)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.InvalidArgumentf("%s has no header row", path)
	}

	table, err := buildTable(rows)
	if err != nil {
		return nil, apperrors.Wrapf(err, "parsing %s", path)
	}
	s.logger.Debug("table read",
		zap.String("path", path),
		zap.Int("columns", len(table.Names())),
		zap.Int("rows", table.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return table, nil
}

// WriteTable stores a table, creating parent directories as needed.
// Missing values are written as empty cells.
func (s *FileStore) WriteTable(path string, table *dataset.Table) error {
	kind, err := fileType(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.IOError("creating output directory", err)
		}
	}

	switch kind {
	case "csv":
		err = writeCSV(path, table)
	case "xlsx":
		err = writeXLSX(path, table)
	}
	if err != nil {
		return err
	}
	s.logger.Info("table written",
		zap.String("path", path),
		zap.Int("rows", table.Len()))
	return nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.IOError("failed to open CSV file", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.IOError("failed to read CSV file", err)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.IOError("failed to open Excel file", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.IOError(fmt.Sprintf("failed to read %s", SheetName), err)
	}
	return rows, nil
}

func buildTable(rows [][]string) (*dataset.Table, error) {
	header := rows[0]
	body := rows[1:]

	columns := make([]dataset.Column, len(header))
	for j, raw := range header {
		name := strings.TrimSpace(raw)
		cells := make([]string, len(body))
		for i, row := range body {
			if j < len(row) {
				cells[i] = strings.TrimSpace(row[j])
			}
		}
		if floats, ok := parseFloats(cells); ok {
			columns[j] = dataset.FloatColumn(name, floats)
		} else {
			columns[j] = dataset.StringColumn(name, cells)
		}
	}
	return dataset.NewTable(columns...)
}

func parseFloats(cells []string) ([]float64, bool) {
	out := make([]float64, len(cells))
	for i, c := range cells {
		if c == "" || strings.EqualFold(c, "nan") {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func formatCell(col dataset.Column, i int) string {
	if col.Kind == dataset.KindString {
		return col.Strings[i]
	}
	v := col.Floats[i]
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCSV(path string, table *dataset.Table) error {
	file, err := os.Create(path)
	if err != nil {
		return apperrors.IOError("failed to create CSV file", err)
	}
	if err := encodeCSV(file, table); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return apperrors.IOError("failed to close CSV file", err)
	}
	return nil
}

func encodeCSV(out io.Writer, table *dataset.Table) error {
	w := csv.NewWriter(out)
	columns := table.Columns()
	if err := w.Write(table.Names()); err != nil {
		return apperrors.IOError("failed to write CSV header", err)
	}
	record := make([]string, len(columns))
	for i := 0; i < table.Len(); i++ {
		for j, col := range columns {
			record[j] = formatCell(col, i)
		}
		if err := w.Write(record); err != nil {
			return apperrors.IOError("failed to write CSV row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apperrors.IOError("failed to flush CSV file", err)
	}
	return nil
}

func writeXLSX(path string, table *dataset.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, 0, len(table.Names()))
	for _, name := range table.Names() {
		header = append(header, name)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return apperrors.IOError("failed to write Excel header", err)
	}

	columns := table.Columns()
	row := make([]interface{}, len(columns))
	for i := 0; i < table.Len(); i++ {
		for j, col := range columns {
			switch {
			case col.Kind == dataset.KindString:
				row[j] = col.Strings[i]
			case math.IsNaN(col.Floats[i]):
				row[j] = nil
			default:
				row[j] = col.Floats[i]
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return apperrors.IOError("computing Excel cell", err)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return apperrors.IOError("failed to write Excel row", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return apperrors.IOError("failed to save Excel file", err)
	}
	return nil
}
