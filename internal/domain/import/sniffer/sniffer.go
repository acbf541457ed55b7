// Package sniffer guesses the file format and a starting column mapping for
// delimited files. Its output is a convenience seed for a user-editable
// configuration, never an authoritative mapping.
package sniffer

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/xuri/excelize/v2"

	"github.com/rmassis/fiflow/internal/domain/import/normalizer"
	"github.com/rmassis/fiflow/internal/domain/import/parser"
)

// sampleLines is how many leading lines the detector inspects.
const sampleLines = 5

// xlsxMagic is the ZIP local-file header every xlsx workbook starts with.
var xlsxMagic = []byte{0x50, 0x4B, 0x03, 0x04}

// DetectFormat infers the statement format from the filename extension and
// the leading bytes of the content. Content wins over extension when the two
// disagree.
func DetectFormat(filename string, data []byte) parser.Format {
	if bytes.HasPrefix(data, xlsxMagic) {
		return parser.FormatExcel
	}
	if bytes.Contains(bytes.ToUpper(head(data, 4096)), []byte("<STMTTRN")) {
		return parser.FormatOFX
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return parser.FormatExcel
	case ".ofx", ".qfx":
		return parser.FormatOFX
	case ".pdf", ".txt":
		return parser.FormatDocument
	default:
		return parser.FormatCSV
	}
}

// roleKeywords map header spellings to column roles. Matching is substring
// first, fuzzy as a fallback for slightly mangled headers.
var roleKeywords = map[string][]string{
	"date":        {"data", "date", "dia", "lancamento", "lançamento", "mov"},
	"description": {"descricao", "descrição", "description", "historico", "histórico", "memo", "detalhe"},
	"amount":      {"valor", "amount", "montante", "quantia"},
	"type":        {"tipo", "type", "natureza", "d/c", "deb/cred"},
}

// Detect samples the leading lines of a delimited file and returns a
// best-guess column mapping.
func Detect(data []byte) *parser.Config {
	lines := Sample(data, sampleLines)
	if len(lines) == 0 {
		return defaultConfig()
	}

	delimiter := detectDelimiter(lines[0])
	header := splitCells(lines[0], delimiter)

	cfg := defaultConfig()
	cfg.Delimiter = delimiter
	cfg.HasHeaders = looksLikeHeader(header)

	if cfg.HasHeaders {
		assignRoles(cfg, header)
	}
	if cfg.DateCol < 0 || cfg.DescCol < 0 || cfg.AmountCol < 0 {
		inferPositional(cfg, lines, delimiter)
	}
	return cfg
}

func defaultConfig() *parser.Config {
	return &parser.Config{
		Delimiter: ',',
		DateCol:   -1,
		DescCol:   -1,
		AmountCol: -1,
		TypeCol:   -1,
	}
}

// Sample returns up to n non-empty leading lines after encoding cleanup.
func Sample(data []byte, n int) []string {
	var lines []string
	for _, line := range strings.Split(string(parser.DecodeText(data, "")), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}
	return lines
}

// detectDelimiter tries each candidate on the first line and keeps the one
// producing the most columns.
func detectDelimiter(line string) rune {
	best := ','
	bestCount := 1
	for _, d := range parser.Delimiters {
		if n := len(splitCells(line, d)); n > bestCount {
			best = d
			bestCount = n
		}
	}
	return best
}

func splitCells(line string, delimiter rune) []string {
	cells := strings.Split(line, string(delimiter))
	for i, c := range cells {
		cells[i] = strings.TrimSpace(strings.Trim(strings.TrimSpace(c), `"`))
	}
	return cells
}

// looksLikeHeader reports whether the first row reads as column titles: no
// cell parses as a date or an amount.
func looksLikeHeader(cells []string) bool {
	for _, c := range cells {
		if c == "" {
			continue
		}
		if _, err := normalizer.ParseDate(c); err == nil {
			return false
		}
		if _, err := normalizer.ParseAmount(c); err == nil {
			return false
		}
	}
	return true
}

// assignRoles matches header cells against role keywords; the first matching
// header wins the role.
func assignRoles(cfg *parser.Config, header []string) {
	for i, cell := range header {
		role := matchRole(strings.ToLower(cell))
		switch role {
		case "date":
			if cfg.DateCol < 0 {
				cfg.DateCol = i
			}
		case "description":
			if cfg.DescCol < 0 {
				cfg.DescCol = i
			}
		case "amount":
			if cfg.AmountCol < 0 {
				cfg.AmountCol = i
			}
		case "type":
			if cfg.TypeCol < 0 {
				cfg.TypeCol = i
			}
		}
	}
}

func matchRole(cell string) string {
	if cell == "" {
		return ""
	}
	for _, role := range []string{"date", "description", "amount", "type"} {
		for _, kw := range roleKeywords[role] {
			if strings.Contains(cell, kw) {
				return role
			}
		}
	}
	// Fuzzy pass catches truncated or misspelled headers ("descr", "vlor").
	for _, role := range []string{"date", "description", "amount", "type"} {
		for _, kw := range roleKeywords[role] {
			if len(cell) >= 3 && fuzzy.MatchNormalizedFold(cell, kw) {
				return role
			}
		}
	}
	return ""
}

// inferPositional fills missing roles by probing the first data row: the
// first cell parsing as a date takes the date role, the last cell parsing as
// an amount takes the amount role, and the longest remaining cell becomes
// the description.
func inferPositional(cfg *parser.Config, lines []string, delimiter rune) {
	start := 0
	if cfg.HasHeaders {
		start = 1
	}
	if start >= len(lines) {
		return
	}
	inferFromCells(cfg, splitCells(lines[start], delimiter))
}

func inferFromCells(cfg *parser.Config, cells []string) {
	if cfg.DateCol < 0 {
		for i, c := range cells {
			if _, err := normalizer.ParseDate(c); err == nil {
				cfg.DateCol = i
				break
			}
		}
	}
	if cfg.AmountCol < 0 {
		for i := len(cells) - 1; i >= 0; i-- {
			if i == cfg.DateCol {
				continue
			}
			if _, err := normalizer.ParseAmount(cells[i]); err == nil {
				cfg.AmountCol = i
				break
			}
		}
	}
	if cfg.DescCol < 0 {
		longest, longestLen := -1, 0
		for i, c := range cells {
			if i == cfg.DateCol || i == cfg.AmountCol {
				continue
			}
			if len(c) > longestLen {
				longest, longestLen = i, len(c)
			}
		}
		cfg.DescCol = longest
	}
}

// DetectExcel opens a workbook and suggests a column mapping from the leading
// rows of its first sheet, the spreadsheet counterpart of Detect. The second
// return value is a short preview of those rows with cells joined by ";".
func DetectExcel(data []byte) (*parser.Config, []string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	var cellRows [][]string
	var samples []string
	for _, row := range rows {
		cells := make([]string, len(row))
		blank := true
		for i, c := range row {
			cells[i] = strings.TrimSpace(c)
			if cells[i] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		cellRows = append(cellRows, cells)
		samples = append(samples, strings.Join(cells, ";"))
		if len(cellRows) == sampleLines {
			break
		}
	}
	if len(cellRows) == 0 {
		return defaultConfig(), nil, nil
	}

	cfg := defaultConfig()
	cfg.HasHeaders = looksLikeHeader(cellRows[0])
	if cfg.HasHeaders {
		assignRoles(cfg, cellRows[0])
	}
	if cfg.DateCol < 0 || cfg.DescCol < 0 || cfg.AmountCol < 0 {
		start := 0
		if cfg.HasHeaders {
			start = 1
		}
		if start < len(cellRows) {
			inferFromCells(cfg, cellRows[start])
		}
	}
	return cfg, samples, nil
}

func head(data []byte, n int) []byte {
	if len(data) > n {
		return data[:n]
	}
	return data
}
