package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"magnetpress/internal/ledger"
	"magnetpress/internal/orders"
)

var watchOrders bool

// ordersCmd lists the orders in an export with their ledger state
var ordersCmd = &cobra.Command{
	Use:   "orders [order-file]",
	Short: "List parsed orders and their completion state",
	Long: `Parses the order file and prints each order with its items and
whether the ledger already marks it complete.

With --watch the file is monitored and the listing reprints whenever
the export is updated, so the operator can leave it running while the
mailbox puller appends new sales.`,
	Args: cobra.ExactArgs(1),
	RunE: listOrders,
}

func init() {
	ordersCmd.Flags().BoolVarP(&watchOrders, "watch", "w", false, "reprint when the file changes")
}

func listOrders(cmd *cobra.Command, args []string) error {
	path := args[0]

	if err := printOrders(os.Stdout, path, cfg.Ledger.Path); err != nil {
		return err
	}
	if !watchOrders {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and the mailbox puller replace the
	// file rather than writing in place.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	logger.Info("watching for changes", zap.String("file", path))

	var debounce <-chan time.Time
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(250 * time.Millisecond)

		case <-debounce:
			fmt.Printf("\n--- %s updated ---\n", filepath.Base(path))
			if err := printOrders(os.Stdout, path, cfg.Ledger.Path); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			debounce = nil

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		}
	}
}

// printOrders loads the ledger fresh on every call so a long-lived
// --watch session sees completions recorded by runs that happened
// after it started.
func printOrders(w io.Writer, path, ledgerPath string) error {
	led, err := ledger.Load(ledgerPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res := orders.Parse(string(data))

	pending, completed := 0, 0
	for _, o := range res.Orders {
		state := "pending"
		if led.IsCompleted(o.ID) {
			state = "completed"
			completed++
		} else {
			pending++
		}
		fmt.Fprintf(w, "%s  [%s]  %s", o.ID, state, o.CustomerName)
		if o.City != "" || o.State != "" {
			fmt.Fprintf(w, "  (%s, %s)", o.City, o.State)
		}
		fmt.Fprintln(w)
		for _, li := range o.Items {
			name := li.Personalization
			if name == "" {
				name = "-"
			}
			fmt.Fprintf(w, "    %-30s %s\n", li.CharacterKey, name)
		}
	}
	for _, m := range res.Malformed {
		fmt.Fprintf(w, "malformed block %d: %s\n", m.Block, m.Reason)
	}
	fmt.Fprintf(w, "%d pending, %d completed, %d malformed\n", pending, completed, len(res.Malformed))
	return nil
}
