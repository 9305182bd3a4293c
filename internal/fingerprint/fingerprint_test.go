package fingerprint

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/ledgersync/internal/ledger"
)

func TestKey(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "2025-03-01|COFFEE SHOP|-5", Key(day, nil, "COFFEE SHOP", decimal.RequireFromString("-5.00")))
	require.Equal(t,
		Key(day, nil, "COFFEE SHOP", decimal.NewFromInt(-5)),
		Key(day.Add(13*time.Hour), nil, "COFFEE SHOP", decimal.RequireFromString("-5.0")),
	)
	require.NotEqual(t,
		Key(day, nil, "COFFEE SHOP", decimal.NewFromInt(-5)),
		Key(day, nil, "coffee shop", decimal.NewFromInt(-5)),
	)
}

func TestKeyTimezoneStable(t *testing.T) {
	t.Parallel()

	mel, err := time.LoadLocation("Australia/Melbourne")
	require.NoError(t, err)
	local := time.Date(2025, 3, 1, 0, 30, 0, 0, mel)
	require.Equal(t, "2025-03-01|X|1", Key(local, mel, "X", decimal.NewFromInt(1)))
	require.Equal(t, "2025-02-28|X|1", Key(local, time.UTC, "X", decimal.NewFromInt(1)))
}

func TestTally(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	recs := []ledger.Record{
		{Date: day, Description: "COFFEE SHOP", Amount: decimal.NewFromInt(-5)},
		{Date: day, Description: "COFFEE SHOP", Amount: decimal.RequireFromString("-5.00")},
		{Date: day, Description: "BAKERY", Amount: decimal.NewFromInt(-3)},
	}
	c := Tally(recs, nil)
	require.Equal(t, 2, c.Get("2025-03-01|COFFEE SHOP|-5"))
	require.Equal(t, 1, c.Get("2025-03-01|BAKERY|-3"))
	require.Equal(t, 0, c.Get("missing"))
}
