// Package ingest reads catalog inputs: the card source list used to build
// the index and card metadata exports.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yksoni-monk/poke/domain/catalog"
)

// Source list columns.
const (
	ColumnName     = "card name"
	ColumnID       = "card id"
	ColumnNumber   = "card number"
	ColumnImageURL = "card image url"
)

// RowError reports a source list row that cannot be used.
type RowError struct {
	Line   int
	Reason string
}

// Error implements error.
func (e *RowError) Error() string {
	return fmt.Sprintf("%s: line %d: %s", catalog.ErrInvalidSource, e.Line, e.Reason)
}

// Is matches catalog.ErrInvalidSource.
func (e *RowError) Is(target error) bool {
	return target == catalog.ErrInvalidSource
}

// ReadCSVFile reads the source list at path.
func ReadCSVFile(path string) ([]catalog.SourceRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source list: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadCSV(f)
}

// ReadCSV reads a source list with a header naming the card name, card id,
// card number and card image url columns. Values are trimmed. Rows missing
// an id or image URL fail the read with a RowError.
func ReadCSV(r io.Reader) ([]catalog.SourceRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &RowError{Line: 1, Reason: "missing header"}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{ColumnID, ColumnImageURL} {
		if _, ok := columns[required]; !ok {
			return nil, &RowError{Line: 1, Reason: fmt.Sprintf("missing column %q", required)}
		}
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []catalog.SourceRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read source list: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		id := field(record, ColumnID)
		if id == "" {
			return nil, &RowError{Line: line, Reason: "missing card id"}
		}
		imageURL := field(record, ColumnImageURL)
		if imageURL == "" {
			return nil, &RowError{Line: line, Reason: fmt.Sprintf("card %q missing image url", id)}
		}

		rows = append(rows, catalog.NewSourceRow(
			len(rows),
			id,
			imageURL,
			field(record, ColumnName),
			field(record, ColumnNumber),
		))
	}
	return rows, nil
}
