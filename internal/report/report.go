// Package report renders batch outcomes for the terminal.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/shopspring/decimal"

	"github.com/jask/ledgersync/internal/ledger"
	"github.com/jask/ledgersync/internal/reconcile"
	"github.com/jask/ledgersync/internal/service"
)

// Catppuccin Mocha
const (
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorRed      lipgloss.Color = "#f38ba8"
	colorYellow   lipgloss.Color = "#f9e2af"
	colorPink     lipgloss.Color = "#f5c2e7"
	colorOverlay1 lipgloss.Color = "#7f849c"
	colorSurface1 lipgloss.Color = "#45475a"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(colorPink).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(colorGreen)
	errStyle    = lipgloss.NewStyle().Foreground(colorRed)
	warnStyle   = lipgloss.NewStyle().Foreground(colorYellow)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorOverlay1)
	headerStyle = lipgloss.NewStyle().Foreground(colorPink).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// DescriptionWidth caps description columns.
const DescriptionWidth = 40

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorSurface1)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func clip(s string) string { return ansi.Truncate(s, DescriptionWidth, "…") }

// Summary renders one batch summary: a title line, the counts and the skip
// breakdown, followed by per-item reasons when verbose is set.
func Summary(s ledger.Summary, verbose bool) string {
	var b strings.Builder
	title := s.Operation
	if title == "" {
		title = "summary"
	}
	b.WriteString(titleStyle.Render(strings.ToUpper(title[:1]) + title[1:]))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Processed %d  ", s.Processed)
	b.WriteString(okStyle.Render(fmt.Sprintf("Updated %d  Appended %d", s.Updated, s.Appended)))
	fmt.Fprintf(&b, "  Skipped %d", s.Skipped)
	if s.Failed > 0 {
		b.WriteString("  ")
		b.WriteString(errStyle.Render(fmt.Sprintf("Failed %d", s.Failed)))
	}
	b.WriteString("\n")

	keys := make([]string, 0, len(s.SkipCounts))
	for k := range s.SkipCounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  skipped (%s): %d", k, s.SkipCounts[k])))
		b.WriteString("\n")
	}
	if verbose {
		for _, r := range s.Reasons {
			style := mutedStyle
			if strings.HasPrefix(r, "failed ") {
				style = errStyle
			}
			b.WriteString(style.Render("  - " + r))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Conflicts renders records edited locally after their last inbound sync.
func Conflicts(cs []reconcile.Conflict) string {
	if len(cs) == 0 {
		return okStyle.Render("No conflicts.") + "\n"
	}
	t := newTable("ID", "Date", "Description", "Modified", "Synced in")
	for _, c := range cs {
		t.Row(c.ID, ledger.DayKey(c.Date, nil), clip(c.Description),
			c.LastModified.Format("2006-01-02 15:04"), c.LastSyncedIn.Format("2006-01-02 15:04"))
	}
	return warnStyle.Render(fmt.Sprintf("%d conflicting record(s)", len(cs))) + "\n" + t.Render() + "\n"
}

// Steps renders automation step outcomes.
func Steps(results []service.StepResult) string {
	t := newTable("Step", "Success", "Attempts", "Detail")
	for _, r := range results {
		status, detail := okStyle.Render("YES"), r.Detail
		if !r.Success {
			status, detail = errStyle.Render("NO"), r.Error
		}
		t.Row(r.Step, status, strconv.Itoa(r.Attempts), clip(detail))
	}
	return t.Render() + "\n"
}

// Ingest renders per-file import results.
func Ingest(results []service.IngestResult) string {
	if len(results) == 0 {
		return mutedStyle.Render("No new statement files.") + "\n"
	}
	t := newTable("File", "Added", "Skipped", "Errors", "Archived")
	for _, r := range results {
		errs := strconv.Itoa(len(r.Errors))
		if len(r.Errors) > 0 {
			errs = errStyle.Render(errs)
		}
		t.Row(r.File, strconv.Itoa(r.Imported), strconv.Itoa(r.Skipped), errs, r.Archived)
	}
	return t.Render() + "\n"
}

// Records renders ledger rows, as listed before a destructive step.
func Records(recs []ledger.Record) string {
	t := newTable("ID", "Date", "Description", "Amount", "Split", "Tags")
	for _, r := range recs {
		t.Row(r.Ref(), r.DayKey(nil), clip(r.Description), r.Amount.StringFixed(2), split(r.Split), r.Tags.String())
	}
	return t.Render() + "\n"
}

// split renders local/remote percentages, or a dash when unset.
func split(s ledger.Split) string {
	if !s.IsSet() {
		return "-"
	}
	side := func(d decimal.NullDecimal) string {
		if !d.Valid {
			return "?"
		}
		return d.Decimal.String()
	}
	return side(s.Local) + "/" + side(s.Remote)
}

// NearDuplicates renders look-alike pairs for manual review.
func NearDuplicates(pairs []service.NearDuplicate) string {
	if len(pairs) == 0 {
		return okStyle.Render("No near duplicates.") + "\n"
	}
	t := newTable("First", "Second", "Amount", "Days", "Similarity")
	for _, p := range pairs {
		t.Row(
			p.A.DayKey(nil)+" "+clip(p.A.Description),
			p.B.DayKey(nil)+" "+clip(p.B.Description),
			p.A.Amount.StringFixed(2),
			strconv.Itoa(p.DaysApart),
			fmt.Sprintf("%.0f%%", p.Similarity*100),
		)
	}
	return t.Render() + "\n"
}
