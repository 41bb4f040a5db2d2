// Query Events Tool dumps every analytics event recorded for one decision
// request, in order. Useful when tracing a single ad request through the
// pipeline: the ad_request, ad_served/no_ad and any tracking events share a
// request ID.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/openadstack/addecide/internal/analytics"
	"github.com/openadstack/addecide/internal/config"
	"github.com/openadstack/addecide/internal/observability"
)

func main() {
	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var id string
	var dsn string
	flag.StringVar(&id, "id", "", "request ID")
	flag.StringVar(&dsn, "dsn", "", "ClickHouse DSN")
	flag.Parse()

	if id == "" {
		fmt.Fprintln(os.Stderr, "id required")
		os.Exit(1)
	}
	if dsn == "" {
		cfg := config.Load()
		dsn = cfg.ClickHouseDSN
	}

	a, err := analytics.InitClickHouse(dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	events, err := a.GetEventsByRequestID(context.Background(), id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query events: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		fmt.Fprintf(os.Stderr, "encode events: %v\n", err)
		os.Exit(1)
	}
}
