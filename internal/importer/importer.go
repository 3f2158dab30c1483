package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	enc "github.com/MrJamesThe3rd/treevu/internal/encoding"
	"github.com/MrJamesThe3rd/treevu/internal/expense"
)

var ErrUnknownFormat = errors.New("no matching receipt format found: expected a purchase register, a treevu export or a card statement")

// Result is the outcome of parsing one file.
type Result struct {
	Profile    string
	Encoding   string
	Candidates []expense.Candidate
	// Skipped counts data rows that carried no expense: footers, credits,
	// blank or unparseable dates.
	Skipped int
}

// Parser reads receipt CSV exports and produces expense candidates. The
// layout is auto-detected by matching column headers against known
// profiles; both ';' and ',' delimited files are accepted.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader) (*Result, error) {
	utf8r, charset, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	data, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	for _, comma := range []rune{';', ','} {
		rows, err := readRows(data, comma)
		if err != nil {
			continue
		}

		profile, cols, headerIdx := detectProfile(rows)
		if profile == nil {
			continue
		}

		res, err := parseRows(profile, cols, rows[headerIdx+1:], headerIdx+1)
		if err != nil {
			return nil, err
		}

		res.Encoding = charset

		return res, nil
	}

	return nil, ErrUnknownFormat
}

func readRows(data []byte, comma rune) ([][]string, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	return rows, nil
}

// colIndex maps normalized column names to their index in the row.
type colIndex map[string]int

func (c colIndex) get(name string) int {
	if name == "" {
		return -1
	}

	idx, ok := c[normalizeHeader(name)]
	if !ok {
		return -1
	}

	return idx
}

// detectProfile scans rows for a header that matches a known profile.
func detectProfile(rows [][]string) (*Profile, colIndex, int) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			if name := normalizeHeader(cell); name != "" {
				cols[name] = i
			}
		}

		for i := range profiles {
			if matchesProfile(&profiles[i], cols) {
				return &profiles[i], cols, rowIdx
			}
		}
	}

	return nil, nil, 0
}

func matchesProfile(p *Profile, cols colIndex) bool {
	for _, name := range p.requiredCols() {
		if cols.get(name) < 0 {
			return false
		}
	}

	return true
}

// parseRows extracts candidates from the data rows following the header.
// headerRowNum is the 0-based index of the header (for error messages).
func parseRows(p *Profile, cols colIndex, rows [][]string, headerRowNum int) (*Result, error) {
	res := &Result{Profile: p.Name}

	dateIdx := cols.get(p.DateCol)
	merchantIdx := cols.get(p.MerchantCol)
	categoryIdx := cols.get(p.CategoryCol)
	formalIdx := cols.get(p.FormalCol)

	for i, row := range rows {
		rowNum := headerRowNum + i + 2

		if blankRow(row) {
			continue
		}

		date, ok := parseDate(cellValue(row, dateIdx))
		if !ok {
			res.Skipped++
			continue
		}

		amount, ok, err := p.amount(cols, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}

		if !ok {
			res.Skipped++
			continue
		}

		merchant := cellValue(row, merchantIdx)
		if merchant == "" {
			return nil, fmt.Errorf("row %d: missing merchant", rowNum)
		}

		c := expense.Candidate{
			Merchant: merchant,
			Amount:   amount,
			Date:     date,
			Source:   expense.SourceImport,
		}

		formalKnown := p.Formal != formalUnknown
		if p.Formal == formalColumn {
			c.IsFormal = p.FormalValue(cellValue(row, formalIdx))
		}

		category, confidence := classify(cellValue(row, categoryIdx), merchant)
		if category == "" && !formalKnown {
			res.Candidates = append(res.Candidates, expense.ManualFallback(c))
			continue
		}

		if category == "" {
			category = expense.CategoryOther
		}

		c.Category = category
		c.Confidence = confidence

		res.Candidates = append(res.Candidates, c)
	}

	return res, nil
}

var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"02-01-2006",
	"02/01/06",
}

// parseDate returns false for empty or unparseable cells (footers and the like).
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), "\ufeff"))
}

// amount extracts the expense amount according to the profile's mode.
// ok is false when the row carries no expense (zero, credit-only).
func (p *Profile) amount(cols colIndex, row []string) (decimal.Decimal, bool, error) {
	switch p.AmountMode {
	case amountSingle:
		s := cellValue(row, cols.get(p.AmountCol))
		if s == "" {
			return decimal.Zero, false, nil
		}

		v, err := parseAmount(s)
		if err != nil {
			return decimal.Zero, false, err
		}

		if v.IsZero() {
			return decimal.Zero, false, nil
		}

		return v.Abs(), true, nil

	case amountSplit:
		s := cellValue(row, cols.get(p.DebitCol))
		if s == "" {
			return decimal.Zero, false, nil
		}

		v, err := parseAmount(s)
		if err != nil {
			return decimal.Zero, false, err
		}

		if v.IsZero() {
			return decimal.Zero, false, nil
		}

		return v.Abs(), true, nil
	}

	return decimal.Zero, false, nil
}
