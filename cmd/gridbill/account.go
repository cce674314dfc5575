package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage manager accounts",
}

var accountAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a manager account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountAdd,
}

var accountAssignCmd = &cobra.Command{
	Use:   "assign <username> <site>",
	Short: "Make an account the manager of a site",
	Long:  `Moves ownership of the site to the account. A manager owns one site at a time; any site it managed before is released.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runAccountAssign,
}

var accountDepositCmd = &cobra.Command{
	Use:   "deposit <username> <amount>",
	Short: "Add money to an account",
	Args:  cobra.ExactArgs(2),
	RunE:  runAccountDeposit,
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE:  runAccountList,
}

func init() {
	accountCmd.AddCommand(accountAddCmd, accountAssignCmd, accountDepositCmd, accountListCmd)
	rootCmd.AddCommand(accountCmd)
}

func runAccountAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	acct, err := a.accounts.Create(args[0])
	if err != nil {
		return fmt.Errorf("adding account: %w", err)
	}
	fmt.Printf("Added account %q\n", acct.Username)
	return nil
}

func runAccountAssign(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.sites.Assign(args[0], args[1]); err != nil {
		return fmt.Errorf("assigning site: %w", err)
	}
	fmt.Printf("%s now manages %s\n", args[0], args[1])
	return nil
}

func runAccountDeposit(cmd *cobra.Command, args []string) error {
	amount, err := parseMoney(args[1])
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.accounts.Credit(args[0], amount); err != nil {
		return fmt.Errorf("depositing: %w", err)
	}
	balance, err := a.accounts.Balance(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Deposited %s, %s now holds %s\n", formatMoney(amount), args[0], formatMoney(balance))
	return nil
}

func runAccountList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	accounts, err := a.accounts.All()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts found")
		return nil
	}

	fmt.Println("----------------------------------------------------")
	fmt.Printf("%-20s  %-15s  %12s\n", "Username", "Site", "Money")
	fmt.Println("----------------------------------------------------")
	for _, acct := range accounts {
		fmt.Printf("%-20s  %-15s  %12s\n", acct.Username, orDash(acct.UnitName), formatMoney(acct.Money))
	}
	fmt.Println("----------------------------------------------------")
	return nil
}
