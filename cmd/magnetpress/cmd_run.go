package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"magnetpress/internal/gate"
	"magnetpress/internal/orders"
	"magnetpress/internal/pipeline"
)

var (
	csvMode      bool
	allowMissing bool
)

// runCmd processes an order export end to end
var runCmd = &cobra.Command{
	Use:   "run [order-file]",
	Short: "Process an order export into print-ready PDFs",
	Long: `Parses the order file, matches characters against the image
library, renders each personalization, and assembles the print sheets
plus a master PDF.

The file is the raw text export from the marketplace mailbox. With
--csv it is instead a two-column character,name file for direct print
jobs that bypass the ledger.

Orders already marked complete in the ledger are skipped. If any item
cannot be matched to an image the run stops before rendering; resolve
the listed items and run again. If a matched image file is missing on
disk, --allow-missing proceeds without those items.`,
	Args: cobra.ExactArgs(1),
	RunE: runOrders,
}

// validateCmd checks an export without producing output
var validateCmd = &cobra.Command{
	Use:   "validate [order-file]",
	Short: "Parse and match an export without rendering anything",
	Args:  cobra.ExactArgs(1),
	RunE:  validateOrders,
}

func init() {
	runCmd.Flags().BoolVar(&csvMode, "csv", false, "input is a character,name CSV")
	runCmd.Flags().BoolVar(&allowMissing, "allow-missing", false, "proceed when matched image files are missing on disk")
	validateCmd.Flags().BoolVar(&csvMode, "csv", false, "input is a character,name CSV")
}

func runOrders(cmd *cobra.Command, args []string) error {
	return executeRun(args[0], pipeline.Options{AllowMissing: allowMissing})
}

func validateOrders(cmd *cobra.Command, args []string) error {
	return executeRun(args[0], pipeline.Options{DryRun: true})
}

func executeRun(path string, opts pipeline.Options) error {
	batch, malformed, err := loadBatch(path)
	if err != nil {
		return err
	}

	pipe, _, err := buildPipeline()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := pipe.Run(ctx, batch, malformed, opts)
	printReport(os.Stdout, report, opts)
	if err != nil {
		var unresolved *gate.UnresolvedError
		var missing *gate.MissingAssetsError
		if errors.As(err, &unresolved) || errors.As(err, &missing) {
			fmt.Fprintln(os.Stderr, err.Error())
			return fmt.Errorf("batch blocked, nothing was printed")
		}
		return err
	}
	return nil
}

// loadBatch reads and parses the order file.
func loadBatch(path string) ([]*orders.Order, []*orders.MalformedOrderError, error) {
	if csvMode {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()

		items, err := orders.ParseCSV(f)
		if err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if len(items) == 0 {
			return nil, nil, fmt.Errorf("%s contains no rows", path)
		}
		// CSV print jobs carry no order id and skip the ledger.
		return []*orders.Order{{Items: items}}, nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	res := orders.Parse(string(data))
	if len(res.Orders) == 0 && len(res.Malformed) == 0 {
		return nil, nil, fmt.Errorf("%s contains no order blocks", path)
	}
	return res.Orders, res.Malformed, nil
}

func printReport(w io.Writer, report *pipeline.Report, opts pipeline.Options) {
	if report == nil {
		return
	}

	fmt.Fprintf(w, "Run %s\n", report.RunID)
	fmt.Fprintf(w, "  orders: %d parsed, %d skipped (already complete), %d malformed\n",
		len(report.Orders), len(report.Skipped), len(report.Malformed))
	for _, m := range report.Malformed {
		fmt.Fprintf(w, "    block %d: %s\n", m.Block, m.Reason)
	}

	if report.Match != nil {
		if report.Match.ServiceError != nil {
			fmt.Fprintf(w, "  matching service unavailable: %v\n", report.Match.ServiceError)
		}
		for _, inc := range report.Match.Inconsistencies {
			fmt.Fprintf(w, "  matcher inconsistency: %s\n", inc)
		}
	}

	if report.Validation != nil && !report.Validation.Clean() {
		for _, u := range report.Validation.Unresolved {
			fmt.Fprintf(w, "  unresolved: %s\n", u)
		}
		for _, m := range report.Validation.MissingFiles {
			fmt.Fprintf(w, "  missing file: %s\n", m)
		}
	}

	if opts.DryRun {
		fmt.Fprintln(w, "  dry run, no output produced")
		return
	}

	fmt.Fprintf(w, "  faces rendered: %d\n", len(report.Faces))
	if report.Assembly != nil {
		fmt.Fprintf(w, "  sheets: %d\n", len(report.Assembly.Sheets))
		if report.Assembly.Master != "" {
			fmt.Fprintf(w, "  master: %s\n", report.Assembly.Master)
		}
		if report.Assembly.Leftover != "" {
			fmt.Fprintf(w, "  unpaired face (odd batch): %s\n", filepath.Base(report.Assembly.Leftover))
		}
	}
	if report.LedgerErr != nil {
		// The marks only exist in this process's memory; a fresh
		// process cannot flush them. Hand the operator the exact
		// command that re-marks the finished orders without
		// re-rendering anything.
		fmt.Fprintf(w, "  WARNING: completion marks not saved: %v\n", report.LedgerErr)
		if ids := unpersistedIDs(report); len(ids) > 0 {
			fmt.Fprintf(w, "  these orders ARE fulfilled; after fixing the ledger path, record them with:\n")
			fmt.Fprintf(w, "    magnetpress ledger mark %s\n", strings.Join(ids, " "))
		}
	}
}

// unpersistedIDs lists the orders that finished this run but whose
// completion marks never reached disk.
func unpersistedIDs(report *pipeline.Report) []string {
	var ids []string
	for id, state := range report.States {
		if id != "" && state == pipeline.StateCompleted {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
