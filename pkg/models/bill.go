package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillRecord is one site's line of a monthly report as mirrored into the
// bill history database and published to subscribers.
type BillRecord struct {
	ID        int             `json:"id"`
	RunID     string          `json:"run_id,omitempty"` // advance that produced the report, empty for manual syncs
	Year      int             `json:"year"`
	Month     int             `json:"month"`
	Site      string          `json:"site"`
	UsageKWh  float64         `json:"usage_kwh"`
	Overuse   bool            `json:"overuse"`
	Bill      decimal.Decimal `json:"bill"`
	CreatedAt time.Time       `json:"created_at"`
	Published bool            `json:"published"`
}

// PeriodID formats the record's period as "year-month".
func (b BillRecord) PeriodID() string {
	return time.Date(b.Year, time.Month(b.Month), 1, 0, 0, 0, 0, time.UTC).Format("2006-1")
}
