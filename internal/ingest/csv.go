package ingest

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgersync/internal/ledger"
)

// CSVDateLayout is the card export date format (MM/dd/yyyy).
const CSVDateLayout = "01/02/2006"

// Columns maps the fields the importer needs to CSV column indexes.
type Columns struct {
	Date        int
	Description int
	Type        int
	Amount      int
}

// DefaultColumns is the positional card export layout:
// Transaction Date, Clearing Date, Description, Merchant, Category, Type, Amount.
var DefaultColumns = Columns{Date: 0, Description: 2, Type: 5, Amount: 6}

var headerNames = map[string]string{
	"transaction date": "date",
	"date":             "date",
	"description":      "description",
	"type":             "type",
	"amount":           "amount",
	"amount (usd)":     "amount",
}

// ResolveColumns maps a header row to column indexes. Every field must be
// present or a ValidationError is returned.
func ResolveColumns(header []string) (Columns, error) {
	found := map[string]int{}
	for i, h := range header {
		name, ok := headerNames[strings.ToLower(strings.TrimSpace(h))]
		if !ok {
			continue
		}
		if _, dup := found[name]; !dup {
			found[name] = i
		}
	}
	for _, want := range []string{"date", "description", "type", "amount"} {
		if _, ok := found[want]; !ok {
			return Columns{}, ledger.Invalid("header", "missing %q column", want)
		}
	}
	return Columns{
		Date:        found["date"],
		Description: found["description"],
		Type:        found["type"],
		Amount:      found["amount"],
	}, nil
}

func (c Columns) width() int {
	return max(c.Date, c.Description, c.Type, c.Amount) + 1
}

// ParseCSV reads a card export. The first row is treated as a header when it
// names the columns, otherwise DefaultColumns apply and it is read as data.
// Rows that fail to parse are returned as errors and do not stop the read.
func ParseCSV(r io.Reader, source string, loc *time.Location) ([]Row, []error, error) {
	if loc == nil {
		loc = time.UTC
	}
	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1

	var (
		rows []Row
		errs []error
		cols = DefaultColumns
	)
	line := 0
	for {
		line++
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if line == 1 && looksLikeHeader(rec) {
			c, err := ResolveColumns(rec)
			if err != nil {
				return nil, nil, err
			}
			cols = c
			continue
		}
		if len(rec) < cols.width() {
			errs = append(errs, fmt.Errorf("line %d: expected %d columns", line, cols.width()))
			continue
		}
		row, err := parseRow(rec, cols, loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		row.Line = line
		row.Source = source
		rows = append(rows, row)
	}
	return rows, errs, nil
}

func looksLikeHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, ok := headerNames[strings.ToLower(strings.TrimSpace(rec[0]))]
	return ok
}

func parseRow(rec []string, cols Columns, loc *time.Location) (Row, error) {
	date, err := time.ParseInLocation(CSVDateLayout, strings.TrimSpace(rec[cols.Date]), loc)
	if err != nil {
		return Row{}, fmt.Errorf("date: %w", err)
	}
	amount, err := ParseAmount(rec[cols.Amount])
	if err != nil {
		return Row{}, fmt.Errorf("amount: %w", err)
	}
	typ := strings.TrimSpace(rec[cols.Type])
	return Row{
		Date:        ledger.CalendarDay(date, loc),
		Description: rec[cols.Description],
		Type:        typ,
		Amount:      SignedAmount(typ, amount),
	}, nil
}

// SignedAmount normalizes the sign by transaction type: credits and payments
// are positive, everything else negative.
func SignedAmount(typ string, amount decimal.Decimal) decimal.Decimal {
	switch typ {
	case "Credit", "Payment":
		return amount.Abs()
	default:
		return amount.Abs().Neg()
	}
}

// ParseAmount parses a money string, tolerating thousands separators and a
// leading currency sign.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.Replace(s, "$", "", 1)
	return decimal.NewFromString(s)
}
