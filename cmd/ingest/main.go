// Command ingest loads CSV price tables and lot sizes into the databases
// so sweeps can run with -from-store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"momentum-lab/internal/config"
	"momentum-lab/internal/loader"
	"momentum-lab/internal/storage"
	chstore "momentum-lab/internal/storage/clickhouse"
	"momentum-lab/internal/storage/migrations"
	pgstore "momentum-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Config file (YAML); supplies DSNs and default paths")
	pricesPath := flag.String("prices", "", "Price table CSV (overrides config)")
	lotsPath := flag.String("lots", "", "Lot size CSV (overrides config)")
	skipPrices := flag.Bool("skip-prices", false, "Only load lot sizes")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *pricesPath != "" {
		cfg.PricesPath = *pricesPath
	}
	if *lotsPath != "" {
		cfg.LotsPath = *lotsPath
	}

	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat).With().Str("cmd", "ingest").Logger()

	if cfg.PostgresDSN == "" || (!*skipPrices && cfg.ClickhouseDSN == "") {
		logger.Fatal().Msg("postgres_dsn and clickhouse_dsn are required (MOMENTUM_LAB_POSTGRES_DSN, MOMENTUM_LAB_CLICKHOUSE_DSN)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Lot sizes -> PostgreSQL
	lots, err := loader.LoadLotSizesFile(cfg.LotsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load lot sizes")
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to postgres")
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("postgres migrations")
	}
	if err := pgstore.NewLotSizeStore(pool).Upsert(ctx, lots); err != nil {
		logger.Fatal().Err(err).Msg("store lot sizes")
	}
	logger.Info().Int("symbols", len(lots)).Msg("lot sizes stored")

	if *skipPrices {
		return
	}

	// Prices -> ClickHouse
	u, err := loader.LoadUniverseFile(cfg.PricesPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load prices")
	}
	if err := lots.Validate(u); err != nil {
		logger.Fatal().Err(err).Msg("lot sizes do not cover the price table")
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("clickhouse migrations")
	}
	defer conn.Close()

	points := u.Points()
	if err := chstore.NewPriceSeriesStore(conn).InsertBulk(ctx, points); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			logger.Fatal().Err(err).Msg("prices already ingested")
		}
		logger.Fatal().Err(err).Msg("store prices")
	}

	logger.Info().
		Int("symbols", u.NumSymbols()).
		Int("ticks", u.Len()).
		Int("points", len(points)).
		Msg("prices stored")
}
