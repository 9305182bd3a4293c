package ledger

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Split is the ownership split of a record in percent. An unset side is
// derived as 100 minus the other side.
type Split struct {
	Local  decimal.NullDecimal
	Remote decimal.NullDecimal
}

// NewSplit builds a split from the local percentage, clamped to [0, 100].
func NewSplit(local decimal.Decimal) Split {
	local = clampPercent(local)
	return Split{
		Local:  decimal.NewNullDecimal(local),
		Remote: decimal.NewNullDecimal(hundred.Sub(local)),
	}
}

// NewRemoteSplit builds a split from the remote percentage, clamped to [0, 100].
func NewRemoteSplit(remote decimal.Decimal) Split {
	remote = clampPercent(remote)
	return Split{
		Local:  decimal.NewNullDecimal(hundred.Sub(remote)),
		Remote: decimal.NewNullDecimal(remote),
	}
}

// IsSet reports whether either side carries a value.
func (s Split) IsSet() bool { return s.Local.Valid || s.Remote.Valid }

// Normalize fills missing sides. When neither side is set, the remote side
// takes defaultRemote.
func (s Split) Normalize(defaultRemote decimal.Decimal) Split {
	switch {
	case s.Local.Valid && s.Remote.Valid:
		return s
	case s.Local.Valid:
		return Split{Local: s.Local, Remote: decimal.NewNullDecimal(hundred.Sub(s.Local.Decimal))}
	case s.Remote.Valid:
		return Split{Local: decimal.NewNullDecimal(hundred.Sub(s.Remote.Decimal)), Remote: s.Remote}
	default:
		return NewRemoteSplit(defaultRemote)
	}
}

// RemotePercent returns the remote side, derived or defaulted as needed.
func (s Split) RemotePercent(defaultRemote decimal.Decimal) decimal.Decimal {
	return s.Normalize(defaultRemote).Remote.Decimal
}

// Balanced reports whether both sides are set and sum to 100 after rounding.
func (s Split) Balanced() bool {
	if !s.Local.Valid || !s.Remote.Valid {
		return false
	}
	return s.Local.Decimal.Add(s.Remote.Decimal).Round(0).Equal(hundred)
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}

// Owed holds the owed amounts of a record. Local is what the local party owes
// the remote party; Remote is what the remote party owes the local party and
// is stored negated.
type Owed struct {
	Local  decimal.Decimal
	Remote decimal.Decimal
}

// IsZero reports whether both amounts are zero.
func (o Owed) IsZero() bool { return o.Local.IsZero() && o.Remote.IsZero() }

// Settlement tracks owed amounts and the reimbursement applied to them.
// Original is the snapshot taken before the first reimbursement.
type Settlement struct {
	Shares     Owed
	Original   *Owed
	Reimbursed decimal.Decimal
}

// SharesFor derives owed amounts from an amount and split: the local share is
// |amount|*local% and the remote share is -(|amount|*remote%).
func SharesFor(amount decimal.Decimal, split Split, defaultRemote decimal.Decimal) Owed {
	s := split.Normalize(defaultRemote)
	abs := amount.Abs()
	return Owed{
		Local:  abs.Mul(s.Local.Decimal).Div(hundred).Round(2),
		Remote: abs.Mul(s.Remote.Decimal).Div(hundred).Round(2).Neg(),
	}
}
