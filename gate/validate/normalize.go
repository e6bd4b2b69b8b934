package validate

import (
	"encoding/csv"
	"os"
	"regexp"
	"strings"

	"github.com/tablegate/tablegate/errors"
)

// bareYearPattern matches a cell holding only a four-digit year.
var bareYearPattern = regexp.MustCompile(`^\d{4}$`)

// normalizeSummaryDates copies the summary artifact to dst, rewriting bare
// years in date columns to full dates (2020 becomes 2020-01-01). The engine's
// date parsing rejects bare years even though the generation tool emits them
// for annual series.
func normalizeSummaryDates(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "opening summary %s", src)
	}
	defer in.Close()

	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return errors.Wrapf(err, "reading summary %s", src)
	}
	if len(records) == 0 {
		return os.WriteFile(dst, nil, 0o644)
	}

	dateCols := make(map[int]bool)
	for i, name := range records[0] {
		if strings.HasSuffix(strings.ToLower(strings.TrimSpace(name)), "date") {
			dateCols[i] = true
		}
	}

	for r := 1; r < len(records); r++ {
		for c := range records[r] {
			if dateCols[c] && bareYearPattern.MatchString(strings.TrimSpace(records[r][c])) {
				records[r][c] = strings.TrimSpace(records[r][c]) + "-01-01"
			}
		}
	}

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "creating normalized summary %s", dst)
	}
	writer := csv.NewWriter(out)
	if err := writer.WriteAll(records); err != nil {
		out.Close()
		return errors.Wrapf(err, "writing normalized summary %s", dst)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		out.Close()
		return errors.Wrapf(err, "writing normalized summary %s", dst)
	}
	return out.Close()
}
