package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"magnetpress/internal/ledger"
)

// ledgerCmd groups completion ledger operations
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and edit the completion ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List completed order ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		led := mustLoadLedger()
		ids := led.CompletedIDs()
		for _, id := range ids {
			rec, _ := led.Get(id)
			fmt.Printf("%s  %s\n", id, rec.CompletedAt.Format("2006-01-02 15:04"))
		}
		fmt.Printf("%d completed\n", len(ids))
		return nil
	},
}

var ledgerMarkCmd = &cobra.Command{
	Use:   "mark [order-id...]",
	Short: "Manually mark orders complete",
	Long: `Marks orders complete without processing them, for fulfilment
done outside the pipeline. Marking an already-completed order is a
no-op and keeps its original completion date.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		led := mustLoadLedger()
		if err := led.MarkCompleted(args); err != nil {
			return err
		}
		fmt.Printf("marked %d order(s) complete\n", len(args))
		return nil
	},
}

var ledgerFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Rewrite the ledger file from current state",
	Long: `Forces a write of the ledger file. Use after a run reported that
completion marks could not be saved, once the underlying problem
(disk full, bad path, permissions) is fixed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		led := mustLoadLedger()
		if err := led.Flush(); err != nil {
			return err
		}
		fmt.Println("ledger written")
		return nil
	},
}

func init() {
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerMarkCmd)
	ledgerCmd.AddCommand(ledgerFlushCmd)
}

func mustLoadLedger() *ledger.Ledger {
	led, err := ledger.Load(cfg.Ledger.Path, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	return led
}
