package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/jgoulah/gridbill/pkg/models"
)

// DB wraps the bill history database. It is a queryable copy of the monthly
// reports; the reports themselves stay the source of truth.
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bill_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL DEFAULT '',
		period_year INTEGER NOT NULL,
		period_month INTEGER NOT NULL,
		site_name TEXT NOT NULL,
		usage_kwh REAL NOT NULL,
		overuse INTEGER NOT NULL DEFAULT 0,
		bill TEXT NOT NULL,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		UNIQUE(period_year, period_month, site_name)
	);
	CREATE INDEX IF NOT EXISTS idx_bill_period ON bill_history(period_year, period_month);
	CREATE INDEX IF NOT EXISTS idx_bill_site ON bill_history(site_name);
	CREATE INDEX IF NOT EXISTS idx_bill_published ON bill_history(published);
	`

	_, err := db.conn.Exec(schema)
	return err
}

const insertBillQuery = `
	INSERT OR IGNORE INTO bill_history (run_id, period_year, period_month, site_name, usage_kwh, overuse, bill, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

// InsertBill inserts a bill record, ignoring duplicates. It reports whether
// a new row was written.
func (db *DB) InsertBill(rec *models.BillRecord) (bool, error) {
	res, err := db.conn.Exec(insertBillQuery, billArgs(rec)...)
	if err != nil {
		return false, fmt.Errorf("inserting bill record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting bill record: %w", err)
	}
	return n > 0, nil
}

// InsertBills inserts records in one transaction, ignoring duplicates, and
// returns how many were new.
func (db *DB) InsertBills(recs []models.BillRecord) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertBillQuery)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range recs {
		res, err := stmt.Exec(billArgs(&recs[i])...)
		if err != nil {
			return 0, fmt.Errorf("inserting bill record for %s: %w", recs[i].Site, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing bill records: %w", err)
	}
	return inserted, nil
}

func billArgs(rec *models.BillRecord) []any {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return []any{
		rec.RunID,
		rec.Year,
		rec.Month,
		rec.Site,
		rec.UsageKWh,
		rec.Overuse,
		rec.Bill.StringFixed(2),
		createdAt.UTC().Format(time.RFC3339),
	}
}

const selectBills = `
	SELECT id, run_id, period_year, period_month, site_name, usage_kwh, overuse, bill, created_at, published
	FROM bill_history
	`

// ListPeriod retrieves every bill of one period, ordered by site name
func (db *DB) ListPeriod(year, month int) ([]models.BillRecord, error) {
	return db.query(selectBills+`WHERE period_year = ? AND period_month = ? ORDER BY site_name`, year, month)
}

// ListSite retrieves the bill history of one site, oldest first
func (db *DB) ListSite(site string) ([]models.BillRecord, error) {
	return db.query(selectBills+`WHERE site_name = ? ORDER BY period_year, period_month`, site)
}

// ListUnpublished retrieves all bills not yet published, oldest first
func (db *DB) ListUnpublished() ([]models.BillRecord, error) {
	return db.query(selectBills+`WHERE published = 0 ORDER BY period_year, period_month, site_name`)
}

// HasPeriod checks if any bill exists for the given period
func (db *DB) HasPeriod(year, month int) (bool, error) {
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM bill_history WHERE period_year = ? AND period_month = ?`, year, month,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("counting bills: %w", err)
	}
	return n > 0, nil
}

// MarkPublished marks a bill record as published
func (db *DB) MarkPublished(id int) error {
	query := `UPDATE bill_history SET published = 1 WHERE id = ?`
	_, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("marking record as published: %w", err)
	}
	return nil
}

func (db *DB) query(query string, args ...any) ([]models.BillRecord, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bill history: %w", err)
	}
	defer rows.Close()

	var results []models.BillRecord
	for rows.Next() {
		var rec models.BillRecord
		var bill, createdAt string

		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Year, &rec.Month, &rec.Site, &rec.UsageKWh,
			&rec.Overuse, &bill, &createdAt, &rec.Published); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		rec.Bill, err = decimal.NewFromString(bill)
		if err != nil {
			return nil, fmt.Errorf("parsing bill: %w", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		results = append(results, rec)
	}

	return results, rows.Err()
}
