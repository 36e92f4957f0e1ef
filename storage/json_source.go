package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"playstore-etl/models"
	"playstore-etl/utils"
)

// ErrSourceNotFound is returned when a requested input file does not exist.
// Callers may treat it as "no data available".
var ErrSourceNotFound = errors.New("source not found")

// maxLineBytes bounds a single JSONL line; review bodies can be long.
const maxLineBytes = 16 << 20

// LoadRecords reads raw records from path. The file may hold a JSON array, a
// single JSON object, or newline-delimited JSON; the latter is tried when the
// whole file does not parse as one document. Invalid JSONL lines are skipped.
func LoadRecords(path string, logger *utils.Logger) ([]models.Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage: load %q: %w", path, ErrSourceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load %q: %w", path, err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err == nil {
		switch v := doc.(type) {
		case []any:
			records := make([]models.Record, 0, len(v))
			for i, item := range v {
				obj, ok := item.(map[string]any)
				if !ok {
					logger.Warn("[source] %s: skipping non-object element %d", path, i)
					continue
				}
				records = append(records, models.Record(obj))
			}
			return records, nil
		case map[string]any:
			return []models.Record{models.Record(v)}, nil
		}
	}

	return loadJSONLines(path, data, logger)
}

func loadJSONLines(path string, data []byte, logger *utils.Logger) ([]models.Record, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var records []models.Record
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(text, &obj); err != nil || obj == nil {
			logger.Warn("[source] %s:%d: skipping invalid JSON line", path, line)
			continue
		}
		records = append(records, models.Record(obj))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("storage: read %q: %w", path, err)
	}
	return records, nil
}
