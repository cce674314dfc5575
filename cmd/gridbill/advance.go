package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgoulah/gridbill/internal/ticker"
)

var (
	advanceSync    bool
	advancePublish bool
)

var advanceCmd = &cobra.Command{
	Use:   "advance",
	Short: "Advance to the next billing period",
	Long: `Moves the current period forward one month, generates that month's usage report for
every site and posts each site's bill to its ledger. Fails without changing anything if
the next month's report already exists.`,
	Args: cobra.NoArgs,
	RunE: runAdvance,
}

func init() {
	advanceCmd.Flags().BoolVar(&advanceSync, "sync", false, "Mirror the new report into the bill history database")
	advanceCmd.Flags().BoolVar(&advancePublish, "publish", false, "Publish the new bills over MQTT (implies --sync)")
	rootCmd.AddCommand(advanceCmd)
}

func runAdvance(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	from := a.settings.CurrentPeriod()
	res, err := a.ticker.AdvancePeriod(cmd.Context())
	if err != nil {
		return fmt.Errorf("advancing period: %w", err)
	}

	fmt.Printf("Advanced from %s to %s\n", from.Label(), res.Period.Label())
	fmt.Printf("Report: %d sites, %d bills sent (run %s)\n", res.Rows, res.Billed, res.RunID)

	return afterTick(a, res, advanceSync || advancePublish, advancePublish)
}

// afterTick optionally mirrors and publishes the report a tick produced
func afterTick(a *app, res ticker.TickResult, sync, publish bool) error {
	if !sync && !publish {
		return nil
	}

	db, err := a.openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	snap, found, err := a.reports.Get(res.Period)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("report for %s disappeared", res.Period.Label())
	}
	n, err := syncSnapshot(db, snap, res.RunID)
	if err != nil {
		return err
	}
	fmt.Printf("Synced %d bills to history\n", n)

	if publish {
		published, err := publishPending(a, db)
		if err != nil {
			return err
		}
		fmt.Printf("Published %d bills\n", published)
	}
	return nil
}
