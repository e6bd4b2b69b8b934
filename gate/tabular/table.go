// Package tabular implements the data-table checks of the import gate: the
// quality scan (duplicate columns, empty columns, duplicate rows, non-numeric
// measurement values) and the row-volume policy check.
package tabular

import (
	"bufio"
	"encoding/csv"
	"os"
	"strings"

	"github.com/tablegate/tablegate/errors"
)

// Table is a parsed data table.
type Table struct {
	Path   string
	Header []string
	Rows   [][]string
}

// ReadTable parses the CSV at path. Rows with a different field count than
// the header are tolerated (short rows read as empty trailing cells) so the
// quality checks can still report on ragged input.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open data table %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parse data table %s", path)
	}
	if len(records) == 0 {
		return nil, errors.Newf("data table has no header row: %s", path)
	}

	return &Table{
		Path:   path,
		Header: records[0],
		Rows:   records[1:],
	}, nil
}

// Cell returns the value of column col in row, or empty string when the row
// is shorter than the header.
func (t *Table) Cell(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}

// CountDataRows counts non-blank lines minus the header. Returns 0 for a
// missing or empty file; volume policy does not own existence errors, the
// preflight stage does.
func CountDataRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "open data table %s", path)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.Wrapf(err, "read data table %s", path)
	}

	if count == 0 {
		return 0, nil
	}
	return count - 1, nil
}

func isEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}
