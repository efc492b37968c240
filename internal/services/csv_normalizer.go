package services

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/datasight/backend/internal/logger"
)

// ErrNoUsableData means no rows or no columns survived normalization.
// Callers must treat this as a terminal ingestion failure, not a retry.
var ErrNoUsableData = errors.New("no usable data after normalization")

// NormalizedDataset is the rectangular, header-clean output of NormalizeCSV.
// Every record has exactly the keys in Headers.
type NormalizedDataset struct {
	Headers     []string                 `json:"headers"`
	Records     []map[string]interface{} `json:"records"`
	RowCount    int                      `json:"rowCount"`
	ColumnCount int                      `json:"columnCount"`
}

// MarshalRecords serializes the cleaned record set for blob persistence.
func (ds *NormalizedDataset) MarshalRecords() ([]byte, error) {
	return json.Marshal(ds.Records)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeCSV parses raw CSV text into a cleaned record set:
// header whitespace (including embedded newlines) collapsed, cell values
// type-inferred, fully empty rows dropped, columns empty across every
// surviving row dropped, then rows re-filtered against the reduced
// column set. Malformed lines are logged and skipped.
func NormalizeCSV(raw string) (*NormalizedDataset, error) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	reader := csv.NewReader(strings.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headerRow, err := readNextRow(reader)
	if err != nil {
		return nil, ErrNoUsableData
	}

	// Duplicate header names are suffixed _1, _2, ... so every record
	// keeps one key per column.
	headers := make([]string, len(headerRow))
	seen := make(map[string]bool, len(headerRow))
	for i, h := range headerRow {
		name := strings.TrimSpace(whitespaceRun.ReplaceAllString(h, " "))
		if name != "" && seen[name] {
			base := name
			for n := 1; seen[name]; n++ {
				name = fmt.Sprintf("%s_%d", base, n)
			}
		}
		if name != "" {
			seen[name] = true
		}
		headers[i] = name
	}

	var rows [][]interface{}
	for {
		row, err := readNextRow(reader)
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("Skipping malformed CSV line", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		values := make([]interface{}, len(headers))
		empty := true
		for i := range headers {
			if i < len(row) {
				values[i] = inferValue(row[i])
				if values[i] != nil {
					empty = false
				}
			}
		}
		if !empty {
			rows = append(rows, values)
		}
	}

	// Drop columns that are empty across every surviving row.
	keep := make([]int, 0, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		for _, row := range rows {
			if row[i] != nil {
				keep = append(keep, i)
				break
			}
		}
	}
	if len(keep) == 0 {
		return nil, ErrNoUsableData
	}

	cleanHeaders := make([]string, len(keep))
	for j, i := range keep {
		cleanHeaders[j] = headers[i]
	}

	// Column pruning can leave a row with nothing in the kept columns,
	// so rows are filtered a second time.
	var records []map[string]interface{}
	for _, row := range rows {
		record := make(map[string]interface{}, len(keep))
		empty := true
		for j, i := range keep {
			record[cleanHeaders[j]] = row[i]
			if row[i] != nil {
				empty = false
			}
		}
		if !empty {
			records = append(records, record)
		}
	}
	if len(records) == 0 {
		return nil, ErrNoUsableData
	}

	return &NormalizedDataset{
		Headers:     cleanHeaders,
		Records:     records,
		RowCount:    len(records),
		ColumnCount: len(cleanHeaders),
	}, nil
}

// readNextRow advances past fully empty lines and returns the next
// non-empty CSV record.
func readNextRow(reader *csv.Reader) ([]string, error) {
	for {
		row, err := reader.Read()
		if err != nil {
			return nil, err
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		return row, nil
	}
}

// inferValue maps a raw cell to nil (empty), bool, float64 or string.
func inferValue(cell string) interface{} {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}
	// ParseFloat accepts NaN/Inf literals, which json.Marshal cannot
	// serialize. Those cells stay strings.
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return n
	}
	return trimmed
}
