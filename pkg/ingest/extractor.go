// Package ingest turns uploaded tabular files into normalized feedback rows.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/crowdpulse/feedback-engine/pkg/apperrors"
)

// Row is one normalized input row. Index is assigned over the usable rows
// only: blank rows are dropped before indexing and never count toward a
// batch's total.
type Row struct {
	Index   int
	Text    string
	Product string
}

// textColumns are the header names recognized as the feedback text column,
// matched case-insensitively in order.
var textColumns = []string{"text", "review", "comment"}

// productColumns are the header names recognized as the optional product label.
var productColumns = []string{"product", "product_name"}

// Extract parses an uploaded file into an ordered sequence of rows. It is a
// single pass over the content with no side effects. Supported formats are
// CSV and JSON (array of objects), chosen by file extension.
func Extract(fileName string, r io.Reader) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return extractCSV(r)
	case ".json":
		return extractJSON(r)
	}
	return nil, fmt.Errorf("%w: unsupported file type %q", apperrors.ErrNoTextColumn, filepath.Ext(fileName))
}

func extractCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // tolerate ragged rows

	header, err := reader.Read()
	if err == io.EOF {
		return nil, apperrors.ErrNoTextColumn
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	textIdx := findColumn(header, textColumns)
	if textIdx < 0 {
		return nil, apperrors.ErrNoTextColumn
	}
	productIdx := findColumn(header, productColumns)

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		if textIdx >= len(record) {
			continue
		}

		text := strings.TrimSpace(record[textIdx])
		if text == "" {
			continue
		}

		row := Row{Index: len(rows), Text: text}
		if productIdx >= 0 && productIdx < len(record) {
			row.Product = strings.TrimSpace(record[productIdx])
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func extractJSON(r io.Reader) ([]Row, error) {
	var records []map[string]any
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode JSON array: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Column resolution against the first record's keys, mirroring a CSV header.
	textKey := findKey(records[0], textColumns)
	if textKey == "" {
		return nil, apperrors.ErrNoTextColumn
	}
	productKey := findKey(records[0], productColumns)

	var rows []Row
	for _, record := range records {
		text := strings.TrimSpace(stringValue(record[textKey]))
		if text == "" {
			continue
		}

		row := Row{Index: len(rows), Text: text}
		if productKey != "" {
			row.Product = strings.TrimSpace(stringValue(record[productKey]))
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// findColumn returns the index of the first header matching any candidate
// name, scanning candidates in priority order.
func findColumn(header []string, candidates []string) int {
	for _, want := range candidates {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), want) {
				return i
			}
		}
	}
	return -1
}

func findKey(record map[string]any, candidates []string) string {
	for _, want := range candidates {
		for k := range record {
			if strings.EqualFold(k, want) {
				return k
			}
		}
	}
	return ""
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
