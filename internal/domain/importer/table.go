// Package importer loads clients and appointment history from the legacy
// spreadsheets (CSV or XLSX) into the practice database.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a sheet with normalised header names. Rows keep their sheet
// order, blank ones included, so Rows[i] is sheet row i+2.
type Table struct {
	Header []string
	Rows   [][]string
}

var accents = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e", "í", "i",
	"ó", "o", "ô", "o", "õ", "o", "ú", "u", "ç", "c",
)

// normalizeHeader lowercases, drops accents and joins words with "_", so
// "Data Nascimento" and "data_nascimento" match the same alias.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = accents.Replace(strings.ToLower(strings.TrimSpace(h)))
	return strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.'
	}), "_")
}

// column returns the index of the first header matching one of aliases,
// or -1.
func (t *Table) column(aliases ...string) int {
	for _, a := range aliases {
		for i, h := range t.Header {
			if h == a {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ReadTable parses a CSV or XLSX file, picking the format from the file
// name. Only the first worksheet of a workbook is read.
func ReadTable(name string, r io.Reader) (*Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		rows, err = readCSV(r)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("unsupported file type %q: want .csv or .xlsx", filepath.Ext(name))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s is empty", name)
	}

	t := &Table{Header: make([]string, len(rows[0]))}
	for i, h := range rows[0] {
		t.Header[i] = normalizeHeader(h)
	}
	t.Rows = rows[1:]
	return t, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// readCSV accepts comma or semicolon separated files; spreadsheet exports
// with a Portuguese locale use ";".
func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	firstLine := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		firstLine = data[:i]
	}
	cr := csv.NewReader(bytes.NewReader(data))
	if bytes.Count(firstLine, []byte{';'}) > bytes.Count(firstLine, []byte{','}) {
		cr.Comma = ';'
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("no worksheet found")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read worksheet %s: %w", sheet, err)
	}
	return rows, nil
}
