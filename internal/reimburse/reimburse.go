// Package reimburse adjusts owed amounts when part of an expense is paid back.
package reimburse

import (
	"github.com/shopspring/decimal"

	"github.com/jask/ledgersync/internal/ledger"
)

// Apply sets the reimbursed amount on s and recomputes s.Shares.
//
// The first non-zero reimbursement snapshots the current shares into
// s.Original. Every later call computes from that snapshot, so repeated
// edits do not compound. The reimbursement is split in proportion to the
// original shares: when the local side owed anything it grows by the remote
// portion, otherwise the remote side shrinks by the local portion. Signs of
// the original values are kept. A zero amount restores the snapshot and
// clears it. The resulting shares are returned.
func Apply(s *ledger.Settlement, amount decimal.Decimal) ledger.Owed {
	m := amount.Abs()
	if m.IsZero() {
		if s.Original != nil {
			s.Shares = *s.Original
			s.Original = nil
		}
		s.Reimbursed = decimal.Zero
		return s.Shares
	}

	if s.Original == nil {
		orig := s.Shares
		s.Original = &orig
	}
	s.Reimbursed = amount
	orig := *s.Original

	absL := orig.Local.Abs()
	absR := orig.Remote.Abs()
	total := absL.Add(absR)
	if total.IsZero() {
		return s.Shares
	}
	pctL := absL.Div(total)
	pctR := absR.Div(total)

	shares := orig
	if absL.IsPositive() {
		shares.Local = withSign(orig.Local, absL.Add(m.Mul(pctR)))
	} else {
		shares.Remote = withSign(orig.Remote, absR.Sub(m.Mul(pctL)))
	}
	s.Shares = shares
	return shares
}

// withSign gives v the sign of ref, rounded to cents.
func withSign(ref, v decimal.Decimal) decimal.Decimal {
	v = v.Round(2)
	if ref.IsNegative() {
		return v.Neg()
	}
	return v
}
