package parsers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// CSVParser parses entries from CSV with a header row.
// Expected columns: date, content; optional: time, id.
type CSVParser struct{}

// Parse reads CSV from the reader and returns raw entries, one per row.
func (p *CSVParser) Parse(r io.Reader) ([]RawEntry, error) {
	reader := csv.NewReader(r)

	header, colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, header, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) ([]string, map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[col] = i
	}

	requiredCols := []string{"date", "content"}
	for _, col := range requiredCols {
		if _, ok := colIndex[col]; !ok {
			return nil, nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	return header, colIndex, nil
}

// readRecords reads all data rows and converts them to raw entries.
func (p *CSVParser) readRecords(reader *csv.Reader, header []string, colIndex map[string]int) ([]RawEntry, error) {
	var entries []RawEntry
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		entry := make(RawEntry, len(header))
		for _, col := range header {
			entry[col] = getColumn(record, colIndex, col)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// removeDateCSV rewrites CSV data without the rows dated date.
func removeDateCSV(data []byte, date string) ([]byte, int, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	p := &CSVParser{}
	header, colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, 0, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, 0, fmt.Errorf("writing CSV header: %w", err)
	}

	kept := 0
	for lineNum := 2; ; lineNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if getColumn(record, colIndex, "date") == date {
			continue
		}
		if err := w.Write(record); err != nil {
			return nil, 0, fmt.Errorf("writing CSV row: %w", err)
		}
		kept++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, 0, fmt.Errorf("writing CSV: %w", err)
	}
	return buf.Bytes(), kept, nil
}

// getColumn safely retrieves a column value from a record.
func getColumn(record []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(record) {
		return record[idx]
	}
	return ""
}
