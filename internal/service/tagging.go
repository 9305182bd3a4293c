package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jask/ledgersync/internal/database/repository"
	"github.com/jask/ledgersync/internal/ledger"
	"github.com/jask/ledgersync/internal/rules"
)

// TaggingService applies the tag rule table to the local ledger.
type TaggingService struct {
	Ledger *repository.LedgerRepo
	Rules  *repository.RuleRepo
	Lock   *Locker

	// RuleFile, when set, is read instead of the stored rule table.
	RuleFile string
	MaxLog   int
	Logger   *slog.Logger
	Now      func() time.Time
}

// LoadRules returns the active rule table.
func (s *TaggingService) LoadRules(ctx context.Context) ([]rules.Rule, error) {
	if s.RuleFile != "" {
		return rules.LoadFile(s.RuleFile)
	}
	return s.Rules.List(ctx)
}

// ImportRules replaces the stored rule table with the rules in path.
func (s *TaggingService) ImportRules(ctx context.Context, path string) (int, error) {
	rs, err := rules.LoadFile(path)
	if err != nil {
		return 0, err
	}
	if err := s.Rules.Replace(ctx, rs); err != nil {
		return 0, fmt.Errorf("store rules: %w", err)
	}
	return len(rs), nil
}

// Apply tags every record matched by the rules. A record whose tags change
// is touched, so a newly shared record becomes eligible for export.
func (s *TaggingService) Apply(ctx context.Context) (ledger.Summary, error) {
	sum := ledger.Summary{Operation: "tag"}
	rs, err := s.LoadRules(ctx)
	if err != nil {
		return sum, fmt.Errorf("load rules: %w", err)
	}
	maxLog := s.MaxLog
	if maxLog == 0 {
		maxLog = rules.DefaultMaxLog
	}
	log := loggerOr(s.Logger)
	err = s.Lock.Run(ctx, func(ctx context.Context) error {
		now := clockOr(s.Now)()
		n, err := s.Ledger.ModifyAll(ctx, func(rec *ledger.Record) bool {
			sum.Processed++
			res := rules.Evaluate(*rec, rs, now)
			if !rules.Apply(rec, res, maxLog) {
				sum.Skip("no match", "")
				return false
			}
			rec.Touch(now)
			log.Debug("tagged record", "id", rec.Ref(), "tags", res.TagsToAdd)
			return true
		})
		sum.Updated = n
		return err
	})
	if err != nil {
		return sum, err
	}
	log.Info("tag rules applied", "summary", sum.String())
	return sum, nil
}
