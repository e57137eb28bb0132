// Package fileparse decodes uploaded roster files (CSV, XLSX) into a
// normalized table of raw string cells. Structural failures here are fatal
// to the whole batch; cell-level problems are left for row validation.
package fileparse

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrStructural marks failures of the file as a whole (no header row,
	// undecodable payload). Callers fail the batch rather than any one row.
	ErrStructural = errors.New("structural parse error")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// Row is one data row of the source file with its 1-based source position.
type Row struct {
	Number int
	Cells  map[string]string
}

// Table is the normalized form of an uploaded file.
type Table struct {
	Headers    []string
	RawHeaders []string
	Rows       []Row
	Kind       string
}

// Parse decodes the payload according to the file extension.
func Parse(fileName string, payload []byte) (Table, error) {
	if len(payload) == 0 {
		return Table{}, fmt.Errorf("%w: file is empty", ErrStructural)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return Table{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte) (Table, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("%w: failed to read csv: %v", ErrStructural, err)
	}

	table, err := normalizeTable(records)
	if err != nil {
		return Table{}, err
	}
	table.Kind = "csv"
	return table, nil
}

func parseExcel(payload []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return Table{}, fmt.Errorf("%w: failed to open xlsx: %v", ErrStructural, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, fmt.Errorf("%w: excel file has no sheets", ErrStructural)
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("%w: failed to read rows from xlsx: %v", ErrStructural, err)
	}

	table, err := normalizeTable(records)
	if err != nil {
		return Table{}, err
	}
	table.Kind = "xlsx"
	return table, nil
}

func normalizeTable(records [][]string) (Table, error) {
	if len(records) == 0 {
		return Table{}, fmt.Errorf("%w: no rows found in file", ErrStructural)
	}

	var headerRow []string
	var dataRows [][]string
	for _, record := range records {
		if len(cleanRow(record)) == 0 {
			continue
		}
		if headerRow == nil {
			headerRow = record
			continue
		}
		dataRows = append(dataRows, record)
	}

	if headerRow == nil {
		return Table{}, fmt.Errorf("%w: header row could not be detected", ErrStructural)
	}

	headers := sanitizeHeaders(headerRow)
	rawHeaders := make([]string, len(headerRow))
	for i, value := range headerRow {
		rawHeaders[i] = strings.TrimSpace(value)
	}

	rows := make([]Row, 0, len(dataRows))
	for i, record := range dataRows {
		record = padRow(record, len(headers))
		cells := make(map[string]string, len(headers))
		empty := true
		for col, header := range headers {
			value := strings.TrimSpace(record[col])
			cells[header] = value
			if value != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		rows = append(rows, Row{Number: i + 1, Cells: cells})
	}

	return Table{Headers: headers, RawHeaders: rawHeaders, Rows: rows}, nil
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.ToLower(strings.TrimSpace(value))
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
