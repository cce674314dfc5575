package main

import (
	"fmt"

	"github.com/jgoulah/gridbill/internal/database"
	"github.com/jgoulah/gridbill/internal/publisher"
	"github.com/jgoulah/gridbill/internal/snapshot"
	"github.com/jgoulah/gridbill/pkg/models"
)

// syncSnapshot mirrors a report into the bill history, returning how many rows were new
func syncSnapshot(db *database.DB, snap *snapshot.Snapshot, runID string) (int, error) {
	recs, err := snap.BillRecords(runID)
	if err != nil {
		return 0, fmt.Errorf("reading report %s: %w", snap.Period.ID(), err)
	}
	n, err := db.InsertBills(recs)
	if err != nil {
		return 0, fmt.Errorf("syncing report %s: %w", snap.Period.ID(), err)
	}
	return n, nil
}

// publishRecords publishes each record and marks it published, printing progress
func publishRecords(pub *publisher.Publisher, db *database.DB, recs []models.BillRecord) int {
	published := 0
	for i, rec := range recs {
		fmt.Printf("[%d/%d] Publishing %s %s (%s)... ", i+1, len(recs), rec.PeriodID(), rec.Site, formatMoney(rec.Bill))
		if err := pub.Publish(rec); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			continue
		}

		if err := db.MarkPublished(rec.ID); err != nil {
			fmt.Printf("✓ (warning: failed to mark as published: %v)\n", err)
		} else {
			fmt.Printf("✓\n")
		}
		published++
	}
	return published
}

// publishPending publishes every unpublished bill in the history
func publishPending(a *app, db *database.DB) (int, error) {
	pending, err := db.ListUnpublished()
	if err != nil {
		return 0, fmt.Errorf("listing unpublished bills: %w", err)
	}
	if len(pending) == 0 {
		fmt.Println("No unpublished bills")
		return 0, nil
	}

	pub, err := publisher.New(a.cfg.MQTT, a.log.Named("publisher"))
	if err != nil {
		return 0, fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	return publishRecords(pub, db, pending), nil
}
