package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgoulah/gridbill/internal/site"
)

var (
	siteType    string
	siteManager string
	siteParent  string
)

var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Manage billable sites",
}

var siteAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a home, building or apartment",
	Long: `Adds a site. Apartments must name their building with --parent.
A manager given with --manager must already have an account and takes ownership of the site.`,
	Args: cobra.ExactArgs(1),
	RunE: runSiteAdd,
}

var siteDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a site (and a building's apartments)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSiteDelete,
}

var siteRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a site, updating every reference to it",
	Args:  cobra.ExactArgs(2),
	RunE:  runSiteRename,
}

var siteShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one site's ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runSiteShow,
}

var siteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sites",
	Args:  cobra.NoArgs,
	RunE:  runSiteList,
}

func init() {
	siteAddCmd.Flags().StringVar(&siteType, "type", "home", "Site type (home, building or apartment)")
	siteAddCmd.Flags().StringVar(&siteManager, "manager", "", "Account that manages the site")
	siteAddCmd.Flags().StringVar(&siteParent, "parent", "", "Building an apartment belongs to")

	siteCmd.AddCommand(siteAddCmd, siteDeleteCmd, siteRenameCmd, siteShowCmd, siteListCmd)
	rootCmd.AddCommand(siteCmd)
}

func runSiteAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	typ, err := site.ParseType(siteType)
	if err != nil {
		return err
	}
	s, err := a.sites.Create(args[0], typ, siteManager, siteParent)
	if err != nil {
		return fmt.Errorf("adding site: %w", err)
	}

	fmt.Printf("Added %s %q\n", typ, s.Name())
	return nil
}

func runSiteDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.sites.Get(args[0])
	if err != nil {
		return err
	}
	children, err := a.sites.Children(s.Name())
	if err != nil {
		return err
	}
	if err := a.sites.Delete(s.Name()); err != nil {
		return fmt.Errorf("deleting site: %w", err)
	}

	if s.IsBuilding() && len(children) > 0 {
		fmt.Printf("Deleted building %q and %d apartments\n", s.Name(), len(children))
	} else {
		fmt.Printf("Deleted %s %q\n", s.Type(), s.Name())
	}
	return nil
}

func runSiteRename(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.sites.Rename(args[0], args[1]); err != nil {
		return fmt.Errorf("renaming site: %w", err)
	}
	fmt.Printf("Renamed %q to %q\n", args[0], args[1])
	return nil
}

func runSiteShow(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.sites.Get(args[0])
	if err != nil {
		return err
	}
	due, err := s.AmountDue()
	if err != nil {
		return err
	}
	total, err := s.BillTotal()
	if err != nil {
		return err
	}
	months, err := s.MonthsOverdue()
	if err != nil {
		return err
	}

	fmt.Printf("Site:            %s\n", s.Name())
	fmt.Printf("Type:            %s\n", s.Type())
	fmt.Printf("Manager:         %s\n", orDash(s.Manager()))
	if s.IsApartment() {
		fmt.Printf("Building:        %s\n", s.Parent())
	}
	fmt.Printf("Amount due:      %s\n", formatMoney(due))
	fmt.Printf("Bill total:      %s\n", formatMoney(total))
	fmt.Printf("Months overdue:  %d\n", months)

	if s.IsBuilding() {
		children, err := a.sites.Children(s.Name())
		if err != nil {
			return err
		}
		fmt.Printf("Apartments:      %d\n", len(children))
		for _, c := range children {
			fmt.Printf("  - %s (manager: %s)\n", c.Name(), orDash(c.Manager()))
		}
	}
	return nil
}

func runSiteList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sites := a.sites.All()
	if len(sites) == 0 {
		fmt.Println("No sites found")
		return nil
	}

	fmt.Println("------------------------------------------------------------------------------")
	fmt.Printf("%-20s  %-10s  %-12s  %-12s  %12s  %7s\n", "Site", "Type", "Manager", "Building", "Due", "Overdue")
	fmt.Println("------------------------------------------------------------------------------")
	for _, s := range sites {
		due, err := s.AmountDue()
		if err != nil {
			return err
		}
		months, err := s.MonthsOverdue()
		if err != nil {
			return err
		}
		fmt.Printf("%-20s  %-10s  %-12s  %-12s  %12s  %7d\n",
			s.Name(), s.Type(), orDash(s.Manager()), orDash(s.Parent()), formatMoney(due), months)
	}
	fmt.Println("------------------------------------------------------------------------------")
	fmt.Printf("Total: %d sites\n", len(sites))
	return nil
}
