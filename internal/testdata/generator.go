// Package testdata builds synthetic card statements for tests.
package testdata

import (
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CardHeader is the first line of a card statement export.
const CardHeader = "Transaction Date,Clearing Date,Description,Merchant,Category,Type,Amount (USD),Purchased By"

// Row is one purchase on a generated statement. Amount is positive, as the
// card export writes purchases.
type Row struct {
	Date        time.Time
	Description string
	Category    string
	Amount      decimal.Decimal
}

var merchants = []struct {
	desc, category string
}{
	{"UBER EATS* SUSHI", "Restaurants"},
	{"AMAZON.COM*XYZ", "Shopping"},
	{"WOOLWORTHS", "Grocery"},
	{"SPOTIFY", "Entertainment"},
	{"SHELL FUEL", "Gas"},
	{"VENMO PAYMENT", "Other"},
}

// Rows returns n purchases dated up to days before end. The same seed gives
// the same rows; merchants repeat so fingerprints can collide.
func Rows(seed int64, n, days int, end time.Time) []Row {
	r := rand.New(rand.NewSource(seed))
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	rows := make([]Row, 0, n)
	for i := 0; i < n; i++ {
		m := merchants[r.Intn(len(merchants))]
		cents := int64(r.Intn(20000) + 100)
		rows = append(rows, Row{
			Date:        end.AddDate(0, 0, -r.Intn(days+1)),
			Description: m.desc,
			Category:    m.category,
			Amount:      decimal.New(cents, -2),
		})
	}
	return rows
}

// CardCSV renders rows as a card statement export.
func CardCSV(rows []Row) string {
	var b strings.Builder
	b.WriteString(CardHeader)
	b.WriteString("\n")
	for _, row := range rows {
		fields := []string{
			row.Date.Format("01/02/2006"),
			row.Date.AddDate(0, 0, 1).Format("01/02/2006"),
			row.Description,
			row.Description,
			row.Category,
			"Purchase",
			row.Amount.StringFixed(2),
			"Jo",
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteString("\n")
	}
	return b.String()
}
