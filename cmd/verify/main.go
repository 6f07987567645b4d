// Command verify replays the stored runs of a sweep and reports any run whose
// stored summary or trades differ from a fresh simulation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"momentum-lab/internal/storage/clickhouse"
	pgstore "momentum-lab/internal/storage/postgres"
	"momentum-lab/internal/verification"
)

func main() {
	// Parse flags
	sweepID := flag.String("sweep-id", "", "Sweep to verify (required)")
	configID := flag.String("config-id", "", "Verify a single run only")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("MOMENTUM_LAB_POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("MOMENTUM_LAB_CLICKHOUSE_DSN"), "ClickHouse connection string")
	flag.Parse()

	if *sweepID == "" || *postgresDSN == "" || *clickhouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --sweep-id, --postgres-dsn and --clickhouse-dsn are required")
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	conn, err := clickhouse.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	v := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		ResultStore: pgstore.NewRunResultStore(pool),
		PriceStore:  clickhouse.NewPriceSeriesStore(conn),
		LotStore:    pgstore.NewLotSizeStore(pool),
	})

	var results []verification.VerificationResult
	if *configID != "" {
		r, err := v.VerifyRun(ctx, *sweepID, *configID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		results = append(results, *r)
	} else {
		report, err := v.VerifySweep(ctx, *sweepID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		results = report.Results
		fmt.Printf("Runs: %d | Matched: %d | Divergent: %d\n",
			report.TotalRuns, report.MatchedRuns, report.DivergentRuns)
	}

	divergent := 0
	for _, r := range results {
		if r.Match {
			continue
		}
		divergent++
		fmt.Printf("\n%s:\n", r.ConfigID)
		for _, d := range r.Divergences {
			fmt.Printf("  %-32s stored=%v replayed=%v\n", d.Field, d.Expected, d.Actual)
		}
	}

	if divergent > 0 {
		os.Exit(2)
	}
	fmt.Println("All runs reproduced.")
}
