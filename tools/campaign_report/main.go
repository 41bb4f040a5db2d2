// Campaign Report Tool summarizes delivery for one campaign from the
// ClickHouse event stream: totals, a daily breakdown and the creatives ranked
// by click-through rate.
//
// Usage:
//
//	go run ./tools/campaign_report -campaign-id=cmp-123 -days=30
//
// Configuration:
//
//	-campaign-id: Required. The campaign to report on
//	-days: Optional. Lookback window in days (default: 7)
//	-dsn: Optional. ClickHouse DSN; falls back to CLICKHOUSE_DSN
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/openadstack/addecide/internal/analytics"
	"github.com/openadstack/addecide/internal/config"
)

func main() {
	var (
		campaignID = flag.String("campaign-id", "", "campaign to report on")
		days       = flag.Int("days", 7, "lookback window in days")
		dsn        = flag.String("dsn", "", "ClickHouse DSN")
	)
	flag.Parse()

	if *campaignID == "" {
		fmt.Fprintln(os.Stderr, "campaign-id required")
		os.Exit(1)
	}
	if *dsn == "" {
		cfg := config.Load()
		*dsn = cfg.ClickHouseDSN
	}

	ch, err := sql.Open("clickhouse", *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = ch.Close() }()

	ctx := context.Background()
	since := time.Now().AddDate(0, 0, -*days)

	if err := printSummary(ctx, ch, *campaignID, since); err != nil {
		fmt.Fprintf(os.Stderr, "summary: %v\n", err)
		os.Exit(1)
	}
	if err := printDaily(ctx, ch, *campaignID, since); err != nil {
		fmt.Fprintf(os.Stderr, "daily breakdown: %v\n", err)
		os.Exit(1)
	}
	if err := printCreatives(ctx, ch, *campaignID, since); err != nil {
		fmt.Fprintf(os.Stderr, "creative breakdown: %v\n", err)
		os.Exit(1)
	}
}

func printSummary(ctx context.Context, ch *sql.DB, campaignID string, since time.Time) error {
	var served, impressions, clicks uint64
	err := ch.QueryRowContext(ctx, `
        SELECT
            countIf(event_type = ?),
            countIf(event_type = ?),
            countIf(event_type = ?)
        FROM ad_events
        WHERE campaign_id = ? AND timestamp >= ?`,
		analytics.EventAdServed, analytics.EventImpression, analytics.EventClick,
		campaignID, since).Scan(&served, &impressions, &clicks)
	if err != nil {
		return err
	}

	fmt.Printf("Campaign %s (since %s)\n", campaignID, since.Format("2006-01-02"))
	fmt.Printf("  served:      %d\n", served)
	fmt.Printf("  impressions: %d\n", impressions)
	fmt.Printf("  clicks:      %d\n", clicks)
	fmt.Printf("  ctr:         %s\n\n", ctr(clicks, impressions))
	return nil
}

func printDaily(ctx context.Context, ch *sql.DB, campaignID string, since time.Time) error {
	rows, err := ch.QueryContext(ctx, `
        SELECT
            toDate(timestamp) AS day,
            countIf(event_type = ?),
            countIf(event_type = ?)
        FROM ad_events
        WHERE campaign_id = ? AND timestamp >= ?
        GROUP BY day
        ORDER BY day`,
		analytics.EventImpression, analytics.EventClick, campaignID, since)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	fmt.Println("Daily:")
	for rows.Next() {
		var day time.Time
		var impressions, clicks uint64
		if err := rows.Scan(&day, &impressions, &clicks); err != nil {
			return err
		}
		fmt.Printf("  %s  impressions=%-8d clicks=%-6d ctr=%s\n",
			day.Format("2006-01-02"), impressions, clicks, ctr(clicks, impressions))
	}
	fmt.Println()
	return rows.Err()
}

func printCreatives(ctx context.Context, ch *sql.DB, campaignID string, since time.Time) error {
	rows, err := ch.QueryContext(ctx, `
        SELECT
            creative_id,
            countIf(event_type = ?) AS impressions,
            countIf(event_type = ?) AS clicks
        FROM ad_events
        WHERE campaign_id = ? AND timestamp >= ? AND creative_id IS NOT NULL
        GROUP BY creative_id
        ORDER BY clicks / greatest(impressions, 1) DESC`,
		analytics.EventImpression, analytics.EventClick, campaignID, since)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	fmt.Println("Creatives by CTR:")
	for rows.Next() {
		var creativeID sql.NullString
		var impressions, clicks uint64
		if err := rows.Scan(&creativeID, &impressions, &clicks); err != nil {
			return err
		}
		fmt.Printf("  %-40s impressions=%-8d clicks=%-6d ctr=%s\n",
			creativeID.String, impressions, clicks, ctr(clicks, impressions))
	}
	return rows.Err()
}

func ctr(clicks, impressions uint64) string {
	if impressions == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", float64(clicks)/float64(impressions)*100)
}
