package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jgoulah/gridbill/internal/period"
	"github.com/jgoulah/gridbill/pkg/models"
)

var (
	historySite   string
	historyPeriod string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query the bill history database",
}

var historySyncCmd = &cobra.Command{
	Use:   "sync [period]",
	Short: "Mirror reports into the bill history database",
	Long:  `Copies one report, or every report on disk when no period is given, into the SQLite bill history. Rows already present are left alone.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistorySync,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mirrored bills for a site or a period",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

func init() {
	historyListCmd.Flags().StringVar(&historySite, "site", "", "Show every period billed to this site")
	historyListCmd.Flags().StringVar(&historyPeriod, "period", "", "Show every site billed in this period (default: current)")
	historyCmd.AddCommand(historySyncCmd, historyListCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistorySync(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var periods []period.Period
	if len(args) == 1 {
		p, err := parsePeriodArg(args[0])
		if err != nil {
			return err
		}
		periods = append(periods, p)
	} else {
		periods, err = a.reports.List()
		if err != nil {
			return fmt.Errorf("listing reports: %w", err)
		}
	}

	db, err := a.openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	total := 0
	for _, p := range periods {
		snap, found, err := a.reports.Get(p)
		if err != nil {
			return err
		}
		if !found {
			fmt.Printf("No report for %s\n", p.Label())
			continue
		}
		n, err := syncSnapshot(db, snap, "")
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d new of %d rows\n", p.Label(), n, snap.Len())
		total += n
	}

	fmt.Printf("\nTotal new rows: %d\n", total)
	return nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := a.openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var records []models.BillRecord
	if historySite != "" {
		records, err = db.ListSite(historySite)
	} else {
		p := a.settings.CurrentPeriod()
		if historyPeriod != "" {
			if p, err = parsePeriodArg(historyPeriod); err != nil {
				return err
			}
		}
		records, err = db.ListPeriod(p.Year, int(p.Month))
	}
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No bills found")
		return nil
	}

	fmt.Println("------------------------------------------------------------------------------")
	fmt.Printf("%-8s  %-20s  %16s  %12s  %-9s  %s\n", "Period", "Site", "Usage", "Bill", "Published", "Synced")
	fmt.Println("------------------------------------------------------------------------------")
	for _, r := range records {
		published := "no"
		if r.Published {
			published = "yes"
		}
		fmt.Printf("%-8s  %-20s  %16s  %12s  %-9s  %s\n",
			r.PeriodID(), r.Site, formatKWh(r.UsageKWh), formatMoney(r.Bill), published, humanize.Time(r.CreatedAt))
	}
	fmt.Println("------------------------------------------------------------------------------")
	fmt.Printf("Total: %d records\n", len(records))
	return nil
}
