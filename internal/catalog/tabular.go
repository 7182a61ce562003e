package catalog

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Tabular catalogs carry a header row naming the columns. Column order is
// free; rank, name and state are required.
var columnAliases = map[string]string{
	"rank":        "rank",
	"priority":    "rank",
	"name":        "name",
	"suburb":      "name",
	"suburb_name": "name",
	"state":       "state",
	"postcode":    "postcode",
	"region":      "region",
}

func readCSV(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "catalog: read csv row")
		}
		rows = append(rows, record)
	}
	return fromRows(rows)
}

// readXLSX reads the first sheet of a workbook.
func readXLSX(path string) ([]Entry, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("catalog: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) ([]Entry, error) {
	if len(rows) == 0 {
		return nil, eris.New("catalog: no header row")
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		if key, ok := columnAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			cols[key] = i
		}
	}
	for _, required := range []string{"rank", "name", "state"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("catalog: header is missing a %s column", required)
		}
	}

	cell := func(row []string, key string) string {
		i, ok := cols[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	entries := make([]Entry, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		rank, err := strconv.Atoi(cell(row, "rank"))
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: row %d rank", n+2)
		}
		entries = append(entries, Entry{
			Rank:     rank,
			Name:     cell(row, "name"),
			State:    cell(row, "state"),
			Postcode: cell(row, "postcode"),
			Region:   cell(row, "region"),
		})
	}
	return validate(entries)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
