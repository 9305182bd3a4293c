package ingest

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/jask/ledgersync/internal/ledger"
)

// ParseOFX reads an OFX/QFX bank or credit card statement. Amounts keep the
// sign the institution reported.
func ParseOFX(r io.Reader, source string, loc *time.Location) ([]Row, error) {
	if loc == nil {
		loc = time.UTC
	}
	resp, err := ofxgo.ParseResponse(r)
	if err != nil {
		return nil, fmt.Errorf("parse ofx: %w", err)
	}

	var txns []ofxgo.Transaction
	switch {
	case len(resp.CreditCard) > 0:
		stmt, ok := resp.CreditCard[0].(*ofxgo.CCStatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected credit card response type %T", resp.CreditCard[0])
		}
		if stmt.BankTranList != nil {
			txns = stmt.BankTranList.Transactions
		}
	case len(resp.Bank) > 0:
		stmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected bank response type %T", resp.Bank[0])
		}
		if stmt.BankTranList != nil {
			txns = stmt.BankTranList.Transactions
		}
	default:
		return nil, fmt.Errorf("no bank or credit card statement in %s", source)
	}

	rows := make([]Row, 0, len(txns))
	for i, txn := range txns {
		posted := txn.DtPosted.Time
		if txn.DtUser != nil && !txn.DtUser.IsZero() {
			posted = txn.DtUser.Time
		}
		rows = append(rows, Row{
			Line:        i + 1,
			Date:        ledger.CalendarDay(posted, loc),
			Description: strings.TrimSpace(txn.Name.String()),
			Memo:        strings.TrimSpace(txn.Memo.String()),
			Type:        txn.TrnType.String(),
			Amount:      decimal.NewFromBigRat(&txn.TrnAmt.Rat, 2),
			Source:      source,
		})
	}
	return rows, nil
}
