package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect monthly usage reports",
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List generated reports",
	Args:  cobra.NoArgs,
	RunE:  runReportList,
}

var reportShowCmd = &cobra.Command{
	Use:   "show [period]",
	Short: "Show a report (default: the current period)",
	Long:  `Shows the usage report of a period given as MM/YYYY, YYYY-MM or "Month YYYY".`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReportShow,
}

func init() {
	reportCmd.AddCommand(reportListCmd, reportShowCmd)
	rootCmd.AddCommand(reportCmd)
}

func runReportList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	periods, err := a.reports.List()
	if err != nil {
		return fmt.Errorf("listing reports: %w", err)
	}
	if len(periods) == 0 {
		fmt.Println("No reports found")
		return nil
	}

	current := a.settings.CurrentPeriod()
	for _, p := range periods {
		marker := ""
		if p == current {
			marker = "  (current)"
		}
		fmt.Printf("%-8s  %s%s\n", p.String(), p.Label(), marker)
	}
	return nil
}

func runReportShow(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p := a.settings.CurrentPeriod()
	if len(args) == 1 {
		if p, err = parsePeriodArg(args[0]); err != nil {
			return err
		}
	}

	snap, found, err := a.reports.Get(p)
	if err != nil {
		return fmt.Errorf("loading report: %w", err)
	}
	if !found {
		fmt.Printf("No report for %s\n", p.Label())
		return nil
	}
	rows, err := snap.Rows()
	if err != nil {
		return err
	}

	fmt.Printf("\n%s Energy Usage:\n", p.Label())
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("%-20s  %16s  %8s  %12s\n", "Site", "Usage", "Overuse", "Bill")
	fmt.Println("------------------------------------------------------------")

	for _, r := range rows {
		overuse := "no"
		if r.Overuse {
			overuse = "yes"
		}
		fmt.Printf("%-20s  %16s  %8s  %12s\n", r.Site, formatKWh(r.UsageKWh), overuse, formatMoney(r.Bill))
	}

	fmt.Println("------------------------------------------------------------")
	fmt.Printf("%d rows (building rows include their apartments)\n", len(rows))
	return nil
}
