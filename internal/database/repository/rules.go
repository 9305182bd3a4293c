package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jask/ledgersync/internal/ledger"
	"github.com/jask/ledgersync/internal/rules"
)

// RuleRepo stores the ordered tag rule table.
type RuleRepo struct {
	db *sql.DB
}

func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

// List returns rules in table order.
func (r *RuleRepo) List(ctx context.Context) ([]rules.Rule, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT name, tags, description_contains, account_contains, institution_contains,
	 min_amount, max_amount, exclude_if_contains
	FROM tag_rules ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []rules.Rule
	for rows.Next() {
		var (
			rule          rules.Rule
			tags, exclude string
			lo, hi        decimal.NullDecimal
		)
		if err := rows.Scan(&rule.Name, &tags, &rule.DescriptionContains, &rule.AccountContains,
			&rule.InstitutionContains, &lo, &hi, &exclude); err != nil {
			return nil, err
		}
		rule.Tags = ledger.ParseTags(tags)
		if lo.Valid {
			rule.MinAmount = &lo.Decimal
		}
		if hi.Valid {
			rule.MaxAmount = &hi.Decimal
		}
		if exclude != "" {
			rule.ExcludeIfContains = strings.Split(exclude, "\n")
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// Count returns the number of stored rules.
func (r *RuleRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tag_rules`).Scan(&n)
	return n, err
}

// Replace swaps the whole table for rs, keeping their order. Rule ids are
// derived from position and label so a re-seed yields the same ids.
func (r *RuleRepo) Replace(ctx context.Context, rs []rules.Rule) error {
	for _, rule := range rs {
		if err := rules.Validate(rule); err != nil {
			return err
		}
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tag_rules`); err != nil {
			return err
		}
		for i, rule := range rs {
			id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("rule:%d:%s", i, rule.Label()))).String()
			var lo, hi decimal.NullDecimal
			if rule.MinAmount != nil {
				lo = decimal.NewNullDecimal(*rule.MinAmount)
			}
			if rule.MaxAmount != nil {
				hi = decimal.NewNullDecimal(*rule.MaxAmount)
			}
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO tag_rules(id, position, name, tags, description_contains, account_contains,
			 institution_contains, min_amount, max_amount, exclude_if_contains)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, i, rule.Name, ledger.TagSet(rule.Tags).String(), rule.DescriptionContains,
				rule.AccountContains, rule.InstitutionContains, lo, hi,
				strings.Join(rule.ExcludeIfContains, "\n")); err != nil {
				return err
			}
		}
		return nil
	})
}
