package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jask/ledgersync/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "ledgersync",
		Short:         "Import statements and reconcile a shared household ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show skip reasons and failures")
	root.SetIn(in)
	root.SetOut(out)

	env := &cliEnv{in: in, out: out, verbose: &verbose}
	root.AddCommand(
		newIngestCmd(env),
		newTagCmd(env),
		newRulesCmd(env),
		newExportCmd(env),
		newImportCmd(env),
		newSyncCmd(env),
		newConflictsCmd(env),
		newMarkCmd(env),
		newSplitCmd(env),
		newAmountCmd(env),
		newReimburseCmd(env),
		newAnnotateCmd(env),
		newDedupCmd(env),
		newAutomateCmd(env),
		newResetCmd(env),
		newMigrateCmd(env),
	)
	return root
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
