package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jask/ledgersync/internal/ledger"
	"github.com/jask/ledgersync/internal/report"
	"github.com/jask/ledgersync/internal/review"
	"github.com/jask/ledgersync/internal/service"
)

// run opens the app for one command and closes it afterwards.
func (e *cliEnv) run(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := e.open(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); err == nil {
				err = cerr
			}
		}()
		return fn(cmd.Context(), a, cmd, args)
	}
}

func (e *cliEnv) print(s string) {
	fmt.Fprintln(e.out, s)
}

func (e *cliEnv) summary(s ledger.Summary) {
	e.print(report.Summary(s, *e.verbose))
}

// confirmer asks on the terminal unless yes is set.
func (e *cliEnv) confirmer(yes bool, rows []ledger.Record) service.Confirmer {
	if yes {
		return service.ConfirmFunc(func(string) (bool, error) { return true, nil })
	}
	return review.Confirmer{Rows: rows, Input: e.in, Output: e.out}
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ledger.Invalid(field, "%q is not a number", s)
	}
	return d, nil
}

func newIngestCmd(e *cliEnv) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Import statement files, or every file in the inbox",
		RunE: e.run(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			var (
				results []service.IngestResult
				err     error
			)
			if len(args) > 0 {
				results, err = a.ingest.Process(ctx, args, reset)
			} else {
				results, err = a.ingest.ProcessInbox(ctx, a.cfg.Ingest.Inbox, reset)
			}
			if len(results) > 0 || err == nil {
				e.print(report.Ingest(results))
			}
			return err
		}),
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "re-import files already marked processed")
	return cmd
}

func newTagCmd(e *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "tag",
		Short: "Apply the tag rules to the local ledger",
		Args:  cobra.NoArgs,
		RunE: e.run(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			sum, err := a.tagging.Apply(ctx)
			if err != nil {
				return err
			}
			e.summary(sum)
			return nil
		}),
	}
}

func newRulesCmd(e *cliEnv) *cobra.Command {
	cmd := &cobra.Command{Use: "rules", Short: "Manage the stored tag rules"}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Replace the stored rules with a YAML rule file",
		Args:  cobra.ExactArgs(1),
		RunE: e.run(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			n, err := a.tagging.ImportRules(ctx, args[0])
			if err != nil {
				return err
			}
			e.print(fmt.Sprintf("Imported %d rules.", n))
			return nil
		}),
	})
	return cmd
}

func newExportCmd(e *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Push shared local records to the shared ledger",
		Args:  cobra.NoArgs,
		RunE: e.run(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			sum, err := a.sync.Export(ctx)
			if err != nil {
				return err
			}
			e.summary(sum)
			return nil
		}),
	}
}

func newImportCmd(e *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Pull the other party's records from the shared ledger",
		Args:  cobra.NoArgs,
		RunE: e.run(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			sum, err := a.sync.Import(ctx)
			if err != nil {
				return err
			}
			e.summary(sum)
			return nil
		}),
	}
}

func newSyncCmd(e *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Import then export",
		Args:  cobra.NoArgs,
		RunE: e.run(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			sums, err := a.sync.Sync(ctx)
			for _, s := range sums {
				e.summary(s)
			}
			return err
		}),
	}
}

func newConflictsCmd(e *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List imported records edited locally since they were pulled",
		Args:  cobra.NoArgs,
		RunE: e.run(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			cs, err := a.sync.Conflicts(ctx)
			if err != nil {
				return err
			}
			e.print(report.Conflicts(cs))
			return nil
		}),
	}
}

func newMarkCmd(e *cliEnv) *cobra.Command {
	var (
		all bool
		tag string
	)
	cmd := &cobra.Command{
		Use:   "mark [ids...]",
		Short: "Flag records for the next export",
		RunE: e.run(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			if all {
				n, err := a.edit.MarkAllForSync(ctx, tag)
				if err != nil {
					return err
				}
				e.print(fmt.Sprintf("Marked %d records.", n))
				return nil
			}
			if len(args) == 0 {
				return ledger.Invalid("ids", "give record ids or --all")
			}
			sum, err := a.edit.MarkForSync(ctx, args...)
			if err != nil {
				return err
			}
			e.summary(sum)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "mark every record")
	cmd.Flags().StringVar(&tag, "tag", "", "with --all, only records carrying this tag")
	return cmd
}

func newSplitCmd(e *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:     "split <id> <local|remote> <percent>",
		Short:   "Set one side's share of a record",
		Example: "  ledgersync split tx-1 remote 70",
		Args:    cobra.ExactArgs(3),
		RunE: e.run(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			side, err := service.ParseSplitSide(args[1])
			if err != nil {
				return err
			}
			pct, err := parseAmount("percent", args[2])
			if err != nil {
				return err
			}
			rec, err := a.edit.SetSplit(ctx, args[0], side, pct)
			if err != nil {
				return err
			}
			e.print(report.Records([]ledger.Record{rec}))
			return nil
		}),
	}
}

func newAmountCmd(e *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:     "amount <id> <amount>",
		Short:   "Change a record's amount and rescale its shares",
		Example: "  ledgersync amount tx-1 -- -80",
		Args:    cobra.ExactArgs(2),
		RunE: e.run(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			amt, err := parseAmount("amount", args[1])
			if err != nil {
				return err
			}
			rec, err := a.edit.SetAmount(ctx, args[0], amt)
			if err != nil {
				return err
			}
			e.print(report.Records([]ledger.Record{rec}))
			return nil
		}),
	}
}

func newReimburseCmd(e *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "reimburse <id> <amount>",
		Short: "Record money paid back on a shared record; 0 clears it",
		Args:  cobra.ExactArgs(2),
		RunE: e.run(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			amt, err := parseAmount("amount", args[1])
			if err != nil {
				return err
			}
			rec, err := a.edit.SetReimbursement(ctx, args[0], amt)
			if err != nil {
				return err
			}
			e.print(report.Records([]ledger.Record{rec}))
			return nil
		}),
	}
}

func newAnnotateCmd(e *cliEnv) *cobra.Command {
	var category, comment, tags string
	cmd := &cobra.Command{
		Use:   "annotate <id>",
		Short: "Edit a record's category, comment or tags",
		Args:  cobra.ExactArgs(1),
		RunE: e.run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			var ann service.Annotation
			if cmd.Flags().Changed("category") {
				ann.Category = &category
			}
			if cmd.Flags().Changed("comment") {
				ann.Comment = &comment
			}
			if cmd.Flags().Changed("tags") {
				ts := ledger.ParseTags(tags)
				ann.Tags = &ts
			}
			rec, err := a.edit.Annotate(ctx, args[0], ann)
			if err != nil {
				return err
			}
			e.print(report.Records([]ledger.Record{rec}))
			return nil
		}),
	}
	cmd.Flags().StringVar(&category, "category", "", "new category")
	cmd.Flags().StringVar(&comment, "comment", "", "new comment")
	cmd.Flags().StringVar(&tags, "tags", "", "comma separated tags, replacing the current ones")
	return cmd
}

func newDedupCmd(e *cliEnv) *cobra.Command {
	var institution string
	cmd := &cobra.Command{Use: "dedup", Short: "Find duplicated statement rows"}
	cmd.PersistentFlags().StringVar(&institution, "institution", "", "institution to scan (default: ingest.account)")
	inst := func(a *app) string {
		if institution != "" {
			return institution
		}
		return a.cfg.Ingest.Account
	}

	var window time.Duration
	scan := &cobra.Command{
		Use:   "scan",
		Short: "Tag rows imported twice and rows without a date",
		Args:  cobra.NoArgs,
		RunE: e.run(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			res, err := a.dedup.TagDuplicates(ctx, inst(a), window)
			if err != nil {
				return err
			}
			e.print(fmt.Sprintf("Tagged %d duplicates and %d rows with invalid dates.", res.Duplicates, res.InvalidDates))
			return nil
		}),
	}
	scan.Flags().DurationVar(&window, "window", service.DefaultDuplicateWindow, "how close two imports must be")

	var yes bool
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete rows tagged as duplicates after confirmation",
		Args:  cobra.NoArgs,
		RunE: e.run(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			rows, err := a.dedup.Tagged(ctx, inst(a))
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				e.print("No tagged duplicates.")
				return nil
			}
			n, err := a.dedup.DeleteTagged(ctx, inst(a), e.confirmer(yes, rows))
			if err != nil {
				return err
			}
			e.print(fmt.Sprintf("Deleted %d rows.", n))
			return nil
		}),
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	var (
		threshold float64
		days      int
	)
	near := &cobra.Command{
		Use:   "near",
		Short: "List pairs of rows that look alike for review",
		Args:  cobra.NoArgs,
		RunE: e.run(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			pairs, err := a.dedup.NearDuplicates(ctx, threshold, days)
			if err != nil {
				return err
			}
			e.print(report.NearDuplicates(pairs))
			return nil
		}),
	}
	near.Flags().Float64Var(&threshold, "threshold", 0.4, "largest normalised edit distance to report")
	near.Flags().IntVar(&days, "days", 3, "largest date gap in days")

	cmd.AddCommand(scan, del, near)
	return cmd
}

func newAutomateCmd(e *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "automate",
		Short: "Run the configured automation steps",
		Args:  cobra.NoArgs,
		RunE: e.run(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			results := a.automation.Run(ctx, a.steps())
			e.print(report.Steps(results))
			var failed int
			for _, r := range results {
				if !r.Success {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d steps failed", failed, len(results))
			}
			return nil
		}),
	}
}

func newResetCmd(e *cliEnv) *cobra.Command {
	var shared, yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all ledger data, keeping the schema and rules",
		Args:  cobra.NoArgs,
		RunE: e.run(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			ok, err := e.confirmer(yes, nil).Confirm("Delete all ledger data?")
			if err != nil {
				return err
			}
			if !ok {
				e.print("Reset cancelled.")
				return nil
			}
			if err := a.maintenance.Reset(ctx, shared); err != nil {
				return err
			}
			e.print("Ledger reset.")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&shared, "shared", false, "also clear the shared ledger table in the local database")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newMigrateCmd(e *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the ledger databases",
		Args:  cobra.NoArgs,
		RunE: e.run(func(_ context.Context, a *app, _ *cobra.Command, _ []string) error {
			e.print(fmt.Sprintf("Migrated %s.", a.cfg.Database.Path))
			return nil
		}),
	}
}
