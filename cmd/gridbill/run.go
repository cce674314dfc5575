package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgoulah/gridbill/internal/ticker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Advance billing periods on a timer until interrupted",
	Long: `Runs the period loop: every ticker.check_interval (default 1m) one check is counted, and
after ticker.tick_every checks (default 10) the period advances. Send SIGUSR1 to pause
and SIGUSR2 to resume; SIGINT or SIGTERM stops after any running advance completes.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	interval, err := a.cfg.GetCheckInterval()
	if err != nil {
		return err
	}

	loop := ticker.NewLoop(a.ticker, ticker.LoopConfig{
		CheckInterval: interval,
		TickEvery:     a.cfg.GetTickEvery(),
	}, a.log.Named("loop"))
	loop.OnTick(func(res ticker.TickResult) {
		fmt.Printf("Advanced to %s: %d sites, %d bills sent\n", res.Period.Label(), res.Rows, res.Billed)
		sync := a.cfg.Ticker.SyncHistory || a.cfg.Ticker.Publish
		if err := afterTick(a, res, sync, a.cfg.Ticker.Publish); err != nil {
			a.log.Error("post-advance sync failed", zap.String("run_id", res.RunID), zap.Error(err))
		}
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	control := make(chan os.Signal, 1)
	signal.Notify(control, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(control)

	fmt.Printf("Billing period is %s; advancing every %s\n",
		a.settings.CurrentPeriod().Label(), interval*time.Duration(a.cfg.GetTickEvery()))
	loop.Start(ctx)
	defer loop.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("Stopping...")
			return nil
		case sig := <-control:
			if sig == syscall.SIGUSR1 {
				loop.Pause()
				fmt.Println("Paused")
			} else {
				loop.Resume()
				fmt.Println("Resumed")
			}
		}
	}
}
