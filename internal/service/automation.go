package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jask/ledgersync/internal/database/repository"
	"github.com/jask/ledgersync/internal/retry"
)

// StepFunc is one unit of scheduled work. The returned string is a short
// human-readable result.
type StepFunc func(ctx context.Context) (string, error)

// Step is a configured automation step. Retries counts the extra attempts
// after the first.
type Step struct {
	Name    string
	Func    string
	Order   int
	Retries int
}

// StepResult is the outcome of one step.
type StepResult struct {
	Step     string
	Success  bool
	Detail   string
	Error    string
	Attempts int
}

// AutomationRunner runs steps in order. A failing step is reported and the
// following steps still run.
type AutomationRunner struct {
	Funcs   map[string]StepFunc
	Backoff time.Duration
	Log     *repository.SyncLogRepo
	Logger  *slog.Logger
	Now     func() time.Time
}

// Run executes steps sorted by Order.
func (a *AutomationRunner) Run(ctx context.Context, steps []Step) []StepResult {
	log := loggerOr(a.Logger)
	ordered := append([]Step(nil), steps...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	results := make([]StepResult, 0, len(ordered))
	for _, step := range ordered {
		name := step.Name
		if name == "" {
			name = step.Func
		}
		fn, ok := a.Funcs[step.Func]
		if !ok {
			results = append(results, StepResult{Step: name, Error: "Function not found"})
			log.Error("automation step missing", "step", name, "func", step.Func)
			continue
		}
		var detail string
		policy := retry.Policy{MaxAttempts: step.Retries + 1, Backoff: a.Backoff}
		attempts, err := retry.Do(ctx, policy, func(ctx context.Context) error {
			var err error
			detail, err = fn(ctx)
			return err
		}, func(attempt int, err error) {
			log.Warn("automation step failed, retrying", "step", name, "attempt", attempt, "err", err)
		})
		res := StepResult{Step: name, Success: err == nil, Attempts: attempts}
		if err != nil {
			res.Error = err.Error()
			log.Error("automation step failed", "step", name, "attempts", attempts, "err", err)
		} else {
			if detail == "" {
				detail = "Done"
			}
			res.Detail = detail
			log.Info("automation step done", "step", name, "detail", detail)
		}
		results = append(results, res)
	}
	a.record(ctx, results)
	return results
}

func (a *AutomationRunner) record(ctx context.Context, results []StepResult) {
	if a.Log == nil {
		return
	}
	now := clockOr(a.Now)()
	entries := make([]repository.SyncLogEntry, 0, len(results))
	for _, r := range results {
		status := "YES"
		if !r.Success {
			status = "NO"
		}
		detail := strings.TrimSpace(fmt.Sprintf("step=%s success=%s %s %s", r.Step, status, r.Detail, r.Error))
		entries = append(entries, repository.SyncLogEntry{Operation: "automation", Detail: detail, CreatedAt: now})
	}
	if err := a.Log.Add(ctx, entries...); err != nil {
		loggerOr(a.Logger).Warn("write automation log", "err", err)
	}
}
