package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledgersync/internal/database/repository"
)

func TestAutomationRunner(t *testing.T) {
	t.Parallel()
	db, ctx := setupServiceTest(t)
	log := repository.NewSyncLogRepo(db)

	var order []string
	flaky := 0
	runner := &AutomationRunner{
		Backoff: 0,
		Log:     log,
		Funcs: map[string]StepFunc{
			"ingest": func(context.Context) (string, error) {
				order = append(order, "ingest")
				return "", nil
			},
			"export": func(context.Context) (string, error) {
				order = append(order, "export")
				flaky++
				if flaky < 3 {
					return "", errors.New("shared ledger busy")
				}
				return "Appended: 2", nil
			},
			"import": func(context.Context) (string, error) {
				order = append(order, "import")
				return "", errors.New("offline")
			},
		},
	}

	results := runner.Run(ctx, []Step{
		{Name: "Push", Func: "export", Order: 2, Retries: 2},
		{Name: "Pull", Func: "import", Order: 3, Retries: 1},
		{Func: "ingest", Order: 1},
		{Name: "Report", Func: "report", Order: 4},
	})
	require.Len(t, results, 4)

	require.Equal(t, StepResult{Step: "ingest", Success: true, Detail: "Done", Attempts: 1}, results[0])
	require.Equal(t, StepResult{Step: "Push", Success: true, Detail: "Appended: 2", Attempts: 3}, results[1])
	require.Equal(t, StepResult{Step: "Pull", Error: "offline", Attempts: 2}, results[2])
	require.Equal(t, StepResult{Step: "Report", Error: "Function not found"}, results[3])
	require.Equal(t, []string{"ingest", "export", "export", "export", "import", "import"}, order)

	entries, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	require.Equal(t, "automation", entries[0].Operation)
	require.Contains(t, entries[0].Detail, "step=Report success=NO")
	require.Contains(t, entries[3].Detail, "step=ingest success=YES Done")
}

func TestAutomationStopsOnCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	runner := &AutomationRunner{Funcs: map[string]StepFunc{
		"sync": func(context.Context) (string, error) {
			calls++
			cancel()
			return "", errors.New("interrupted")
		},
	}}

	results := runner.Run(ctx, []Step{{Func: "sync", Retries: 5}})
	require.Len(t, results, 1)
	require.False(t, results[0].Success)
	require.Equal(t, 1, calls)
}
