package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/gridbill/internal/publisher"
	"github.com/jgoulah/gridbill/pkg/models"
)

var (
	publishPeriod string
	publishAll    bool
	publishLimit  int
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish bills to MQTT",
	Long:  `Reads bills from the history database and publishes each one as a retained message on <prefix>/<site>/bill.`,
	Args:  cobra.NoArgs,
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishPeriod, "period", "", "Only publish this period (MM/YYYY, YYYY-MM or \"Month YYYY\")")
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Force republish records already published (requires --period)")
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "Limit number of records to publish (0 = no limit)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	if publishAll && publishPeriod == "" {
		return fmt.Errorf("--all requires --period")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.cfg.MQTT.Enabled {
		return fmt.Errorf("MQTT is not enabled in config")
	}

	db, err := a.openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var records []models.BillRecord
	if publishPeriod != "" {
		p, err := parsePeriodArg(publishPeriod)
		if err != nil {
			return err
		}
		all, err := db.ListPeriod(p.Year, int(p.Month))
		if err != nil {
			return fmt.Errorf("listing bills: %w", err)
		}
		for _, r := range all {
			if publishAll || !r.Published {
				records = append(records, r)
			}
		}
	} else {
		records, err = db.ListUnpublished()
		if err != nil {
			return fmt.Errorf("listing unpublished bills: %w", err)
		}
	}

	if len(records) == 0 {
		fmt.Println("No bills to publish")
		return nil
	}
	if publishLimit > 0 && len(records) > publishLimit {
		records = records[:publishLimit]
		fmt.Printf("Limiting to %d records (--limit flag)\n", publishLimit)
	}

	pub, err := publisher.New(a.cfg.MQTT, a.log.Named("publisher"))
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	published := publishRecords(pub, db, records)
	fmt.Printf("\nTotal records published: %d/%d\n", published, len(records))
	return nil
}
