// Package importexport moves device rows between the registry and
// semicolon-separated CSV or XLSX files.
package importexport

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format is a dataset file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" and "xlsx" in any case; empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

const sheetName = "Sheet1"

var bom = []byte("\xef\xbb\xbf")

// Dataset is a table of string cells under one header row.
type Dataset struct {
	Headers []string
	Rows    [][]string
}

func NewDataset(headers []string) *Dataset {
	return &Dataset{Headers: headers}
}

// Append adds a row given by column name. Unknown columns are dropped.
func (d *Dataset) Append(values map[string]string) {
	row := make([]string, len(d.Headers))
	for i, h := range d.Headers {
		row[i] = values[h]
	}
	d.Rows = append(d.Rows, row)
}

// Has reports whether the dataset carries column h.
func (d *Dataset) Has(h string) bool {
	for _, header := range d.Headers {
		if header == h {
			return true
		}
	}
	return false
}

// Record returns row i keyed by column name.
func (d *Dataset) Record(i int) map[string]string {
	out := make(map[string]string, len(d.Headers))
	for j, h := range d.Headers {
		if j < len(d.Rows[i]) {
			out[h] = d.Rows[i][j]
		} else {
			out[h] = ""
		}
	}
	return out
}

// Read parses a dataset in format f.
func Read(f Format, r io.Reader) (*Dataset, error) {
	if f == FormatXLSX {
		return ReadXLSX(r)
	}
	return ReadCSV(r)
}

// Write renders d in format f.
func (d *Dataset) Write(f Format, w io.Writer) error {
	if f == FormatXLSX {
		return d.WriteXLSX(w)
	}
	return d.WriteCSV(w)
}

// ReadCSV parses semicolon-separated UTF-8, with or without a byte order
// mark. Blank lines are skipped.
func ReadCSV(r io.Reader) (*Dataset, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(bom)); err == nil && bytes.Equal(head, bom) {
		_, _ = br.Discard(len(bom))
	}
	cr := csv.NewReader(br)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return fromRecords(records)
}

// WriteCSV writes d semicolon-separated, without a byte order mark.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(d.Headers); err != nil {
		return err
	}
	if err := cw.WriteAll(d.Rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// ReadXLSX reads the first sheet of a workbook.
func ReadXLSX(r io.Reader) (*Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse XLSX: %w", err)
	}
	defer f.Close()

	name := f.GetSheetName(0)
	if name == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return fromRecords(rows)
}

// WriteXLSX writes d as a single-sheet workbook. Every cell is stored as
// text so identifiers and codes keep their exact form.
func (d *Dataset) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet writer: %w", err)
	}
	write := func(rowNum int, cells []string) error {
		values := make([]interface{}, len(cells))
		for i, c := range cells {
			values[i] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		return sw.SetRow(cell, values)
	}
	if err := write(1, d.Headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range d.Rows {
		if err := write(i+2, row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func fromRecords(records [][]string) (*Dataset, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("file has no header row")
	}
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}
	d := NewDataset(headers)
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make([]string, len(headers))
		copy(row, rec)
		d.Rows = append(d.Rows, row)
	}
	return d, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
