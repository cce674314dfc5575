package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgoulah/gridbill/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "View or change prices, threshold and the current period",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Changes one setting. Keys: PricePerKWh, OveruseThreshold, OverusePricePerKWh,
GlobalMoney, CurrentDate (as MM/YYYY).`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore default prices and threshold",
	Long:  `Restores the default price table. Global money and the current period are kept.`,
	Args:  cobra.NoArgs,
	RunE:  runSettingsReset,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsResetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rates := a.settings.Rates()
	fmt.Printf("Price per kWh:          %s\n", rates.PricePerKWh)
	fmt.Printf("Overuse threshold:      %s\n", formatKWh(rates.OveruseThresholdKWh))
	fmt.Printf("Overuse price per kWh:  %s\n", rates.OverusePricePerKWh)
	fmt.Printf("Global money:           %s\n", formatMoney(a.settings.GlobalMoney()))
	fmt.Printf("Current period:         %s\n", a.settings.CurrentPeriod().Label())
	fmt.Printf("\nStored in %s\n", a.settings.Path())
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.settings.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("updating settings: %w", err)
	}
	value, err := a.settings.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s = %s\n", args[0], value)
	return nil
}

func runSettingsReset(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.settings.Reset(); err != nil {
		return fmt.Errorf("resetting settings: %w", err)
	}
	fmt.Printf("Prices reset to defaults (%s/kWh, %s/kWh above %s)\n",
		settings.DefaultPricePerKWh, settings.DefaultOverusePricePerKWh, formatKWh(settings.DefaultOveruseThreshold))
	return nil
}
