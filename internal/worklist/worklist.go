// Package worklist supplies the ordered ticker list a run processes. Sources
// parse CSV and project a single column; business input stays decoupled from
// the robot via a Google Sheet export or a local file.
package worklist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultColumn is the worklist column holding tickers.
const DefaultColumn = "Company Ticker"

// ParseTickers reads CSV from r and projects the named column, preserving
// source order and duplicates. The first record is the header.
func ParseTickers(r io.Reader, column string) ([]string, error) {
	if column == "" {
		column = DefaultColumn
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("worklist is empty")
		}
		return nil, fmt.Errorf("read worklist header: %w", err)
	}

	columnIdx := -1
	for i, name := range header {
		if strings.TrimSpace(name) == column {
			columnIdx = i
			break
		}
	}
	if columnIdx < 0 {
		return nil, fmt.Errorf("worklist has no %q column", column)
	}

	var tickers []string
	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read worklist row %d: %w", row+1, err)
		}
		row++
		ticker := strings.TrimSpace(record[columnIdx])
		if ticker == "" {
			return nil, fmt.Errorf("worklist row %d has an empty %q cell", row, column)
		}
		tickers = append(tickers, ticker)
	}
	return tickers, nil
}
