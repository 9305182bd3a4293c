// Package rules evaluates tag rules against ledger records.
package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgersync/internal/ledger"
)

// DefaultMaxLog is how many tag log lines a record keeps.
const DefaultMaxLog = 3

// Rule adds Tags to every record that satisfies all of its predicates. An
// empty predicate always holds. Substring tests ignore case; tags do not.
type Rule struct {
	Name                string
	Tags                []string
	DescriptionContains string
	AccountContains     string
	InstitutionContains string
	MinAmount           *decimal.Decimal
	MaxAmount           *decimal.Decimal
	ExcludeIfContains   []string
}

// Label names the rule in tag logs.
func (r Rule) Label() string {
	switch {
	case r.DescriptionContains != "":
		return r.DescriptionContains
	case r.Name != "":
		return r.Name
	default:
		return "[any]"
	}
}

// Matches reports whether rec satisfies every predicate of r.
func (r Rule) Matches(rec ledger.Record) bool {
	desc := strings.ToUpper(rec.Description)
	if !containsFold(desc, r.DescriptionContains) ||
		!containsFold(strings.ToUpper(rec.Account), r.AccountContains) ||
		!containsFold(strings.ToUpper(rec.Institution), r.InstitutionContains) {
		return false
	}
	if r.MinAmount != nil && rec.Amount.LessThan(*r.MinAmount) {
		return false
	}
	if r.MaxAmount != nil && rec.Amount.GreaterThan(*r.MaxAmount) {
		return false
	}
	for _, word := range r.ExcludeIfContains {
		word = strings.ToUpper(strings.TrimSpace(word))
		if word != "" && strings.Contains(desc, word) {
			return false
		}
	}
	return true
}

func containsFold(upperField, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(upperField, strings.ToUpper(needle))
}

// LogEntry records a tag added by a rule.
type LogEntry struct {
	Tag  string
	Rule string
	At   time.Time
}

func (e LogEntry) String() string {
	return fmt.Sprintf("%q from rule: %q @ %s", e.Tag, e.Rule, e.At.Format("2006-01-02 15:04:05"))
}

// Result is the outcome of evaluating a rule table against one record.
type Result struct {
	TagsToAdd []string
	Log       []LogEntry
}

// Evaluate unions the tags of every matching rule, in table order, leaving
// out tags the record already carries. It does not modify rec.
func Evaluate(rec ledger.Record, rules []Rule, at time.Time) Result {
	var res Result
	tags := rec.Tags.Clone()
	for _, r := range rules {
		if len(r.Tags) == 0 || !r.Matches(rec) {
			continue
		}
		var added []string
		tags, added = tags.Add(r.Tags...)
		for _, tag := range added {
			res.TagsToAdd = append(res.TagsToAdd, tag)
			res.Log = append(res.Log, LogEntry{Tag: tag, Rule: r.Label(), At: at})
		}
	}
	return res
}

// Apply merges res into rec and trims the tag log to the newest maxLog
// lines. It reports whether the tags changed.
func Apply(rec *ledger.Record, res Result, maxLog int) bool {
	if len(res.TagsToAdd) == 0 {
		return false
	}
	rec.Tags, _ = rec.Tags.Add(res.TagsToAdd...)
	for _, e := range res.Log {
		rec.TagLog = append(rec.TagLog, e.String())
	}
	if maxLog > 0 && len(rec.TagLog) > maxLog {
		rec.TagLog = append([]string(nil), rec.TagLog[len(rec.TagLog)-maxLog:]...)
	}
	return true
}
