package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"playstore-etl/models"
)

var (
	intCellRegexp     = regexp.MustCompile(`^-?\d+$`)
	decimalCellRegexp = regexp.MustCompile(`^-?\d*\.\d+$`)
)

// LoadCSV reads a supplemental tabular source. The header row supplies the keys
// and each cell is inferred: integers and decimals become numbers, NULL, NONE
// and empty cells become nil, anything else stays a string.
func LoadCSV(path string) ([]models.Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage: load %q: %w", path, ErrSourceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: csv header %q: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var records []models.Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: csv row %q: %w", path, err)
		}
		rec := make(models.Record, len(header))
		for i, key := range header {
			if key == "" {
				continue
			}
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			rec[key] = inferCell(cell)
		}
		records = append(records, rec)
	}
	return records, nil
}

func inferCell(raw string) any {
	s := strings.TrimSpace(raw)
	switch strings.ToUpper(s) {
	case "", "NULL", "NONE":
		return nil
	}
	if intCellRegexp.MatchString(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	if decimalCellRegexp.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}
