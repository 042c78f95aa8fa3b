package statement

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column names the uploaded statement must carry. Matching is
// case-sensitive; these are the exact headers banks export.
const (
	ColDate       = "Date"
	ColNarration  = "Narration"
	ColWithdrawal = "Withdrawal"
	ColDeposit    = "Deposit"
)

// RequiredColumns lists the headers a statement upload must contain.
var RequiredColumns = []string{ColDate, ColNarration, ColWithdrawal, ColDeposit}

// Table is a parsed tabular statement: one header row plus data rows.
// Cell access is by header name so column order in the upload does not matter.
type Table struct {
	columns map[string]int // header name -> column index
	rows    [][]string
}

// ReadTable reads an uploaded statement into a Table, choosing the reader by
// file extension: .csv goes through the CSV reader, everything else is treated
// as an Excel workbook.
func ReadTable(r io.Reader, filename string) (*Table, error) {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return ReadCSV(r)
	}
	return ReadWorkbook(r)
}

// ReadWorkbook reads the first sheet of an XLSX workbook into a Table.
func ReadWorkbook(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	return newTable(rows)
}

// ReadCSV reads a comma-separated statement into a Table.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // banks pad or truncate trailing cells

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	return newTable(rows)
}

func newTable(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("statement is empty")
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[strings.TrimSpace(name)] = i
	}

	return &Table{columns: columns, rows: rows[1:]}, nil
}

// RequireColumns checks that every required header is present and returns a
// SchemaError naming all missing ones at once.
func (t *Table) RequireColumns(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := t.columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Cell returns the value of the named column in data row i, or "" when the
// row is shorter than the header.
func (t *Table) Cell(i int, name string) string {
	col, ok := t.columns[name]
	if !ok || col >= len(t.rows[i]) {
		return ""
	}
	return t.rows[i][col]
}
