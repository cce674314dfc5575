package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var payCmd = &cobra.Command{
	Use:   "pay <site> <payer> <amount>",
	Short: "Pay toward a site's balance from an account",
	Long: `Pays up to <amount> of the site's balance from the payer's account. The payment is capped
by what the payer holds and what is due. Apartment payments go to the building's manager;
all other payments are collected as global receipts.`,
	Args: cobra.ExactArgs(3),
	RunE: runPay,
}

func init() {
	rootCmd.AddCommand(payCmd)
}

func runPay(cmd *cobra.Command, args []string) error {
	amount, err := parseMoney(args[2])
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	paid, err := a.ledger.Pay(args[0], args[1], amount)
	if err != nil {
		return fmt.Errorf("paying: %w", err)
	}
	if paid.IsZero() {
		fmt.Printf("Nothing paid: %s has no balance due or %s has no money\n", args[0], args[1])
		return nil
	}

	s, err := a.sites.Get(args[0])
	if err != nil {
		return err
	}
	due, err := s.AmountDue()
	if err != nil {
		return err
	}
	fmt.Printf("Paid %s toward %s, %s still due\n", formatMoney(paid), args[0], formatMoney(due))
	return nil
}
