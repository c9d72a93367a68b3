// Command quota_audit reconciles the quota ledger against the usage trail.
// For each school it compares quota_used with the number of download events
// recorded in usage_reports; drift beyond the tolerance exits non-zero so the
// check can gate a cron alert.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type ledgerRow struct {
	SchoolID     string `db:"id"`
	Name         string `db:"name"`
	QuotaAllowed int    `db:"quota_allowed"`
	QuotaUsed    int    `db:"quota_used"`
	Downloads    int    `db:"downloads"`
}

func main() {
	var (
		dsn       string
		tolerance int
		timeout   time.Duration
	)

	flag.StringVar(&dsn, "dsn", os.Getenv("DATABASE_URL"), "PostgreSQL DSN")
	flag.IntVar(&tolerance, "tolerance", 0, "Allowed drift per school before the check fails")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Query timeout")
	flag.Parse()

	if dsn == "" {
		log.Fatal("no DSN given: set -dsn or DATABASE_URL")
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer db.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rows, err := loadLedger(ctx, db)
	if err != nil {
		log.Fatalf("failed to load ledger: %v", err)
	}

	drifted := printReport(rows, tolerance)
	if drifted > 0 {
		fmt.Printf("%d school(s) drifted beyond tolerance %d\n", drifted, tolerance)
		os.Exit(1)
	}
	fmt.Println("ledger and usage trail are consistent")
}

// A missing-file download charges the ledger without a trail event, so
// quota_used may legitimately run ahead of the download count. Running behind
// means events were written without a charge and is always suspect.
func loadLedger(ctx context.Context, db *sqlx.DB) ([]ledgerRow, error) {
	const query = `
		SELECT s.id, s.name, s.quota_allowed, s.quota_used,
		       COUNT(u.id) FILTER (WHERE u.action = 'download') AS downloads
		FROM schools s
		LEFT JOIN usage_reports u ON u.school_id = s.id
		WHERE s.active = TRUE
		GROUP BY s.id, s.name, s.quota_allowed, s.quota_used
		ORDER BY s.name`

	var rows []ledgerRow
	if err := db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

func printReport(rows []ledgerRow, tolerance int) int {
	fmt.Println("Quota Ledger Audit")
	fmt.Println("==================")

	drifted := 0
	for _, row := range rows {
		drift := row.QuotaUsed - row.Downloads
		status := "OK"
		if drift < 0 || drift > tolerance {
			status = "DRIFT"
			drifted++
		}
		fmt.Printf("[%s] %s\n", status, row.Name)
		fmt.Printf("  used: %d/%d | download events: %d | drift: %+d\n",
			row.QuotaUsed, row.QuotaAllowed, row.Downloads, drift)
	}
	return drifted
}
