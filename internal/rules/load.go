package rules

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/jask/ledgersync/internal/ledger"
)

//go:embed defaults.yaml
var embeddedRules []byte

// fileRule is the YAML form of a rule. Amounts are read as strings so that
// both quoted and bare numbers are accepted.
type fileRule struct {
	Name                string   `yaml:"name"`
	Tags                []string `yaml:"tags"`
	DescriptionContains string   `yaml:"description_contains"`
	AccountContains     string   `yaml:"account_contains"`
	InstitutionContains string   `yaml:"institution_contains"`
	MinAmount           string   `yaml:"min_amount"`
	MaxAmount           string   `yaml:"max_amount"`
	ExcludeIfContains   []string `yaml:"exclude_if_contains"`
}

// RuleSet is the top-level YAML document.
type RuleSet struct {
	Rules []fileRule `yaml:"rules"`
}

// Parse reads and validates a YAML rule table.
func Parse(data []byte) ([]Rule, error) {
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse rules yaml: %w", err)
	}
	out := make([]Rule, 0, len(set.Rules))
	for i, fr := range set.Rules {
		r := Rule{
			Name:                fr.Name,
			DescriptionContains: fr.DescriptionContains,
			AccountContains:     fr.AccountContains,
			InstitutionContains: fr.InstitutionContains,
			Tags:                ledger.ParseTags(strings.Join(fr.Tags, ",")),
			ExcludeIfContains:   fr.ExcludeIfContains,
		}
		var err error
		if r.MinAmount, err = parseBound(fr.MinAmount); err != nil {
			return nil, fmt.Errorf("rule %d (%s): min_amount: %w", i, fr.Name, err)
		}
		if r.MaxAmount, err = parseBound(fr.MaxAmount); err != nil {
			return nil, fmt.Errorf("rule %d (%s): max_amount: %w", i, fr.Name, err)
		}
		if err := Validate(r); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, fr.Name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Validate checks a single rule.
func Validate(r Rule) error {
	if len(r.Tags) == 0 {
		return ledger.Invalid("tags", "rule adds no tags")
	}
	if r.MinAmount != nil && r.MaxAmount != nil && r.MinAmount.GreaterThan(*r.MaxAmount) {
		return ledger.Invalid("min_amount", "%s exceeds max_amount %s", r.MinAmount, r.MaxAmount)
	}
	return nil
}

func parseBound(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Defaults returns the embedded starter rule table.
func Defaults() ([]Rule, error) {
	rs, err := Parse(embeddedRules)
	if err != nil {
		return nil, fmt.Errorf("load embedded rules: %w", err)
	}
	return rs, nil
}

// LoadFile reads a rule table from path.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load rules from %q: %w", path, err)
	}
	return rs, nil
}
